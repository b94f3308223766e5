package valentine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestApp(t *testing.T, mutate func(*Config)) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		DatabasePath:  filepath.Join(dir, "pages.db"),
		UploadsDir:    filepath.Join(dir, "uploads"),
		LoginEmail:    "a@b.com",
		LoginPassword: "x",
		SessionSecret: "test-secret",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a := New(cfg)
	if err := a.setup(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func do(a *App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func loginRequestJSON(email, password string) *http.Request {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// operatorCookies logs in with the test credentials and returns the session
// cookies to attach to protected requests.
func operatorCookies(t *testing.T, a *App) []*http.Cookie {
	t.Helper()
	rec := do(a, loginRequestJSON("a@b.com", "x"))
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login issued no session cookie")
	}
	return cookies
}

// pngBytes returns a minimal valid PNG.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func sixImages(t *testing.T) [][]byte {
	t.Helper()
	images := make([][]byte, PageImageCount)
	for i := range images {
		images[i] = pngBytes(t)
	}
	return images
}

func createRequest(t *testing.T, slug string, images [][]byte, fields map[string]string, cookies []*http.Cookie) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if err := w.WriteField("slug", slug); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for i, img := range images {
		part, err := w.CreateFormFile("images", fmt.Sprintf("photo-%d.png", i))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(img); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/pages", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestLogin(t *testing.T) {
	a := newTestApp(t, nil)

	rec := do(a, loginRequestJSON("a@b.com", "x"))
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["success"] != true || body["email"] != "a@b.com" {
		t.Errorf("body = %v, want success + email echo", body)
	}

	rec = do(a, loginRequestJSON("a@b.com", "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", rec.Code)
	}
	rec = do(a, loginRequestJSON("other@b.com", "x"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad email = %d, want 401", rec.Code)
	}
	rec = do(a, loginRequestJSON("", ""))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields = %d, want 400", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	a := newTestApp(t, nil)

	for i := 0; i < 5; i++ {
		if rec := do(a, loginRequestJSON("a@b.com", "wrong")); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d, want 401", i+1, rec.Code)
		}
	}
	if rec := do(a, loginRequestJSON("a@b.com", "x")); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("attempt after limit = %d, want 429", rec.Code)
	}
}

func TestCreateRequiresSession(t *testing.T) {
	a := newTestApp(t, nil)

	rec := do(a, createRequest(t, "forever-us", sixImages(t), nil, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("create without session = %d, want 401", rec.Code)
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	fields := map[string]string{
		"imagePositions":    `["10% 20%","center center","center center","center center","center center","30% 40%"]`,
		"imageZooms":        `[1,1.2,1,1,2.5,1]`,
		"relationshipYears": "6",
		"youtubeUrl":        "https://youtu.be/abc123",
	}
	rec := do(a, createRequest(t, "forever-us", sixImages(t), fields, cookies))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["success"] != true || body["slug"] != "forever-us" {
		t.Errorf("create body = %v", body)
	}

	get := do(a, httptest.NewRequest(http.MethodGet, "/api/pages/forever-us", nil))
	if get.Code != http.StatusOK {
		t.Fatalf("get = %d, want 200", get.Code)
	}
	var record PageRecord
	if err := json.Unmarshal(get.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if len(record.Images) != PageImageCount ||
		len(record.ImagePositions) != PageImageCount ||
		len(record.ImageZooms) != PageImageCount {
		t.Fatalf("record shape = %d/%d/%d, want 6/6/6",
			len(record.Images), len(record.ImagePositions), len(record.ImageZooms))
	}
	if record.ImagePositions[0] != "10% 20%" {
		t.Errorf("ImagePositions[0] = %q", record.ImagePositions[0])
	}
	if record.ImageZooms[4] != 2.5 {
		t.Errorf("ImageZooms[4] = %v, want 2.5", record.ImageZooms[4])
	}
	if record.RelationshipYears != "6" {
		t.Errorf("RelationshipYears = %q, want 6", record.RelationshipYears)
	}
	if record.CreatedAt == "" {
		t.Error("CreatedAt not set")
	}

	// Every public path must resolve to a committed file.
	for _, p := range record.Images {
		if !strings.HasPrefix(p, "/uploads/forever-us-") {
			t.Errorf("image path %q missing slug-derived prefix", p)
		}
		if _, err := os.Stat(filepath.Join(a.Config.UploadsDir, filepath.Base(p))); err != nil {
			t.Errorf("image file for %q not on disk: %v", p, err)
		}
	}
}

func TestCreateInvalidSlug(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	for _, slug := range []string{"Forever-Us", "for ever", "love!", ""} {
		rec := do(a, createRequest(t, slug, sixImages(t), nil, cookies))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("slug %q = %d, want 400", slug, rec.Code)
		}
	}
}

func TestCreateWrongImageCount(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	for _, n := range []int{0, 5, 7} {
		images := make([][]byte, n)
		for i := range images {
			images[i] = pngBytes(t)
		}
		rec := do(a, createRequest(t, "forever-us", images, nil, cookies))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%d images = %d, want 400", n, rec.Code)
		}
	}
}

func TestCreateMalformedMetadataFallsBack(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	fields := map[string]string{
		"imagePositions": `["10% 20%"]`, // length 1 against 6 images
		"imageZooms":     `not json`,
	}
	rec := do(a, createRequest(t, "lenient", sixImages(t), fields, cookies))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	get := do(a, httptest.NewRequest(http.MethodGet, "/api/pages/lenient", nil))
	var record PageRecord
	if err := json.Unmarshal(get.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for i := 0; i < PageImageCount; i++ {
		if record.ImagePositions[i] != DefaultPosition {
			t.Errorf("ImagePositions[%d] = %q, want %q", i, record.ImagePositions[i], DefaultPosition)
		}
		if record.ImageZooms[i] != DefaultZoom {
			t.Errorf("ImageZooms[%d] = %v, want %v", i, record.ImageZooms[i], DefaultZoom)
		}
	}
}

func TestCreateFileTooLarge(t *testing.T) {
	a := newTestApp(t, func(cfg *Config) { cfg.MaxUploadBytes = 256 })
	cookies := operatorCookies(t, a)

	images := sixImages(t)
	images[3] = bytes.Repeat([]byte{0xff}, 1024)
	rec := do(a, createRequest(t, "too-big", images, nil, cookies))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize file = %d, want 413", rec.Code)
	}
}

func TestCreateRejectsNonImageAndLeavesNoOrphans(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	images := sixImages(t)
	images[5] = []byte("definitely not an image")
	rec := do(a, createRequest(t, "fake-photo", images, nil, cookies))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-image = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	entries, err := os.ReadDir(a.Config.UploadsDir)
	if err != nil {
		t.Fatalf("read uploads dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("uploads dir not empty after failed create: %v", entries)
	}
}

func TestCreateOverwriteReplace(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	rec := do(a, createRequest(t, "twice", sixImages(t), map[string]string{"relationshipYears": "1"}, cookies))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create = %d", rec.Code)
	}
	rec = do(a, createRequest(t, "twice", sixImages(t), map[string]string{"relationshipYears": "2"}, cookies))
	if rec.Code != http.StatusCreated {
		t.Fatalf("second create = %d, want 201 under replace policy", rec.Code)
	}

	get := do(a, httptest.NewRequest(http.MethodGet, "/api/pages/twice", nil))
	var record PageRecord
	if err := json.Unmarshal(get.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.RelationshipYears != "2" {
		t.Errorf("RelationshipYears = %q, want the second submission's value", record.RelationshipYears)
	}
}

func TestCreateOverwriteReject(t *testing.T) {
	a := newTestApp(t, func(cfg *Config) { cfg.OverwritePolicy = OverwriteReject })
	cookies := operatorCookies(t, a)

	rec := do(a, createRequest(t, "only-once", sixImages(t), nil, cookies))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create = %d", rec.Code)
	}
	rec = do(a, createRequest(t, "only-once", sixImages(t), nil, cookies))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second create = %d, want 409 under reject policy", rec.Code)
	}
}

func TestCreateDefaultRelationshipYears(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	if rec := do(a, createRequest(t, "plain", sixImages(t), nil, cookies)); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}
	get := do(a, httptest.NewRequest(http.MethodGet, "/api/pages/plain", nil))
	var record PageRecord
	if err := json.Unmarshal(get.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.RelationshipYears != "1" {
		t.Errorf("RelationshipYears = %q, want default \"1\"", record.RelationshipYears)
	}
	if record.YouTubeURL != "" {
		t.Errorf("YouTubeURL = %q, want empty", record.YouTubeURL)
	}
}

func TestGetUnknownPage(t *testing.T) {
	a := newTestApp(t, nil)

	rec := do(a, httptest.NewRequest(http.MethodGet, "/api/pages/no-such-page", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get = %d, want 404", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["error"] != "Page not found" {
		t.Errorf("body = %v", body)
	}
}

func TestListPages(t *testing.T) {
	a := newTestApp(t, nil)

	if rec := do(a, httptest.NewRequest(http.MethodGet, "/api/pages", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("list without session = %d, want 401", rec.Code)
	}

	cookies := operatorCookies(t, a)
	if rec := do(a, createRequest(t, "listed", sixImages(t), nil, cookies)); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pages", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := do(a, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d, want 200", rec.Code)
	}
	var out struct {
		Pages []PageSummary `json:"pages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(out.Pages) != 1 || out.Pages[0].Slug != "listed" {
		t.Errorf("pages = %v, want one entry for %q", out.Pages, "listed")
	}
}

func TestLogout(t *testing.T) {
	a := newTestApp(t, nil)
	cookies := operatorCookies(t, a)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if rec := do(a, req); rec.Code != http.StatusOK {
		t.Fatalf("logout = %d, want 200", rec.Code)
	}
}
