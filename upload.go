package valentine

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when an uploaded file does not decode as a
// JPEG, PNG, GIF, or WebP image.
var ErrNotImage = errors.New("uploaded file is not a decodable image")

// Uploads writes page photographs beneath a publicly served directory.
//
// Files are staged in a temporary directory and renamed into place only
// after every file of the page has been written and sniffed, so a create
// that fails halfway leaves no orphans behind.
type Uploads struct {
	dir string
}

// NewUploads ensures dir exists and returns an Uploads rooted there.
func NewUploads(dir string) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Uploads{dir: dir}, nil
}

// SavePage persists the files of one page and returns their public paths in
// upload order. On any error nothing is left in the uploads directory.
func (u *Uploads) SavePage(slug string, files []*multipart.FileHeader) ([]string, error) {
	stage, err := os.MkdirTemp(u.dir, ".stage-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	// After a full commit every file has been renamed out of the stage and
	// this removes an empty directory; on any failure it removes the
	// staged files with it.
	defer os.RemoveAll(stage)

	names := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := uploadName(slug, fh.Filename)
		if err != nil {
			return nil, err
		}
		if err := stageFile(fh, filepath.Join(stage, name)); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	for i, name := range names {
		if err := os.Rename(filepath.Join(stage, name), filepath.Join(u.dir, name)); err != nil {
			for _, committed := range names[:i] {
				os.Remove(filepath.Join(u.dir, committed))
			}
			return nil, fmt.Errorf("commit upload: %w", err)
		}
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = "/uploads/" + name
	}
	return paths, nil
}

// Remove deletes previously committed page images. Used to roll back a
// create whose record write failed after the files were already in place.
func (u *Uploads) Remove(paths []string) {
	for _, p := range paths {
		os.Remove(filepath.Join(u.dir, filepath.Base(p)))
	}
}

func stageFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("stage upload %q: %w", fh.Filename, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("stage upload %q: %w", fh.Filename, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("stage upload %q: %w", fh.Filename, err)
	}

	// Sniff the staged bytes. The server never re-encodes images, but it
	// refuses to publish files that no image decoder recognizes.
	f, err := os.Open(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("%w: %s", ErrNotImage, fh.Filename)
	}
	return nil
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]+$`)

// uploadName derives a collision-free public filename:
// <slug>-<unix-ms>-<nanoid><original extension>. The random suffix keeps
// repeated uploads for the same slug distinct even within one clock tick.
func uploadName(slug, original string) (string, error) {
	suffix, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate upload suffix: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(original))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%s-%d-%s%s", slug, time.Now().UnixMilli(), suffix, ext), nil
}
