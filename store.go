package valentine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested page does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrBadRecord is returned by SavePage for a record whose image, position,
// and zoom slices are not all exactly PageImageCount long.
var ErrBadRecord = errors.New("page record must carry exactly six images, positions, and zooms")

// Store keeps the slug → PageRecord mapping in a SQLite database. The slug
// is the primary key and saving an existing slug replaces the whole row, so
// concurrent creations for the same slug resolve to last-writer-wins without
// ever exposing a partially written record.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the pages table if needed.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets reads proceed during a write; the busy timeout makes a second
	// writer wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS pages (
    slug TEXT PRIMARY KEY,
    images TEXT NOT NULL,
    image_positions TEXT NOT NULL,
    image_zooms TEXT NOT NULL,
    relationship_years TEXT NOT NULL,
    youtube_url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
`)
	return err
}

// SavePage upserts a page record. Writing an existing slug replaces the
// entire record; nothing is merged from the previous version.
func (s *Store) SavePage(p PageRecord) error {
	if len(p.Images) != PageImageCount ||
		len(p.ImagePositions) != PageImageCount ||
		len(p.ImageZooms) != PageImageCount {
		return ErrBadRecord
	}
	if !ValidSlug(p.Slug) {
		return fmt.Errorf("save page: invalid slug %q", p.Slug)
	}
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	positions, err := json.Marshal(p.ImagePositions)
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	zooms, err := json.Marshal(p.ImageZooms)
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO pages (slug, images, image_positions, image_zooms, relationship_years, youtube_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, string(images), string(positions), string(zooms), p.RelationshipYears, p.YouTubeURL, p.CreatedAt)
	return err
}

// GetPage returns a single page by slug, or ErrNotFound.
func (s *Store) GetPage(slug string) (PageRecord, error) {
	var images, positions, zooms string
	p := PageRecord{Slug: slug}
	err := s.db.QueryRow(`SELECT images, image_positions, image_zooms, relationship_years, youtube_url, created_at FROM pages WHERE slug = ?`, slug).
		Scan(&images, &positions, &zooms, &p.RelationshipYears, &p.YouTubeURL, &p.CreatedAt)
	if err != nil {
		return PageRecord{}, err
	}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return PageRecord{}, fmt.Errorf("get page %q: %w", slug, err)
	}
	if err := json.Unmarshal([]byte(positions), &p.ImagePositions); err != nil {
		return PageRecord{}, fmt.Errorf("get page %q: %w", slug, err)
	}
	if err := json.Unmarshal([]byte(zooms), &p.ImageZooms); err != nil {
		return PageRecord{}, fmt.Errorf("get page %q: %w", slug, err)
	}
	return p, nil
}

// PageExists reports whether a record is stored under slug.
func (s *Store) PageExists(slug string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM pages WHERE slug = ?`, slug).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPages returns every stored page as a summary, newest first.
func (s *Store) ListPages() ([]PageSummary, error) {
	rows, err := s.db.Query(`SELECT slug, created_at FROM pages ORDER BY created_at DESC, slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []PageSummary{}
	for rows.Next() {
		var p PageSummary
		if err := rows.Scan(&p.Slug, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
