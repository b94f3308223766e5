package valentine

import (
	"regexp"
	"testing"
)

func TestUploadNameFormat(t *testing.T) {
	// <slug>-<unix-ms>-<nanoid><ext>; nanoid's default alphabet is
	// filename-safe.
	pattern := regexp.MustCompile(`^forever-us-\d{13,}-[A-Za-z0-9_-]{21}\.png$`)

	name, err := uploadName("forever-us", "IMG_0042.PNG")
	if err != nil {
		t.Fatalf("uploadName failed: %v", err)
	}
	if !pattern.MatchString(name) {
		t.Errorf("uploadName = %q, want match for %v", name, pattern)
	}
}

func TestUploadNameDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name, err := uploadName("same-slug", "photo.jpg")
		if err != nil {
			t.Fatalf("uploadName failed: %v", err)
		}
		if seen[name] {
			t.Fatalf("uploadName produced a duplicate: %q", name)
		}
		seen[name] = true
	}
}

func TestUploadNameStripsHostileExtension(t *testing.T) {
	cases := []string{"photo", "photo.", "shot.j pg", "weird.p/ng"}
	for _, original := range cases {
		name, err := uploadName("safe", original)
		if err != nil {
			t.Fatalf("uploadName failed: %v", err)
		}
		if got := regexp.MustCompile(`\.`).FindString(name); got != "" {
			t.Errorf("uploadName(%q) = %q, want no extension kept", original, name)
		}
	}
}
