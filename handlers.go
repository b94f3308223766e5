package valentine

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func apiError(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// handleLogin checks the single operator credential pair and issues the
// session cookie every protected route verifies.
func (a *App) handleLogin(c echo.Context) error {
	if !a.loginLimiter.Check(c.RealIP()) {
		return apiError(c, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Email and password required")
	}
	if req.Email == "" || req.Password == "" {
		return apiError(c, http.StatusBadRequest, "Email and password required")
	}
	if req.Email != a.Config.LoginEmail || req.Password != a.Config.LoginPassword {
		a.loginLimiter.Record(c.RealIP())
		return apiError(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if err := setOperatorSession(c, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "email": req.Email})
}

func handleLogout(c echo.Context) error {
	if err := clearOperatorSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// handleCreatePage accepts the multipart create request: a slug, exactly
// six image files, and the optional layout metadata emitted by the editor.
func (a *App) handleCreatePage(c echo.Context) error {
	if !isOperator(c) {
		return apiError(c, http.StatusUnauthorized, "Login required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return apiError(c, http.StatusBadRequest, "Multipart form required")
	}

	slug := strings.TrimSpace(c.FormValue("slug"))
	if slug == "" {
		return apiError(c, http.StatusBadRequest, "Slug is required")
	}
	if !ValidSlug(slug) {
		return apiError(c, http.StatusBadRequest, "Invalid slug format. Lowercase letters, numbers, and hyphens only.")
	}

	files := form.File["images"]
	for _, fh := range files {
		if fh.Size > a.Config.MaxUploadBytes {
			return apiError(c, http.StatusRequestEntityTooLarge, "File too large. Max 100MB per image.")
		}
	}
	if len(files) != PageImageCount {
		return apiError(c, http.StatusBadRequest, "Exactly 6 images are required")
	}

	if a.Config.OverwritePolicy == OverwriteReject {
		exists, err := a.Store.PageExists(slug)
		if err != nil {
			return err
		}
		if exists {
			return apiError(c, http.StatusConflict, "Slug already exists")
		}
	}

	paths, err := a.Uploads.SavePage(slug, files)
	if err != nil {
		if errors.Is(err, ErrNotImage) {
			return apiError(c, http.StatusBadRequest, "Invalid image file")
		}
		return err
	}

	relationshipYears := strings.TrimSpace(c.FormValue("relationshipYears"))
	if relationshipYears == "" {
		relationshipYears = "1"
	}

	record := PageRecord{
		Slug:              slug,
		Images:            paths,
		ImagePositions:    NormalizePositions(c.FormValue("imagePositions"), len(paths)),
		ImageZooms:        NormalizeZooms(c.FormValue("imageZooms"), len(paths)),
		RelationshipYears: relationshipYears,
		YouTubeURL:        strings.TrimSpace(c.FormValue("youtubeUrl")),
		CreatedAt:         nowRFC3339(),
	}
	if err := a.Store.SavePage(record); err != nil {
		// The files are already public; take them back out rather than
		// leaving orphans for a page that was never recorded.
		a.Uploads.Remove(paths)
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{"success": true, "slug": slug})
}

// handleGetPage is the public read side: anyone holding the slug can fetch
// the record.
func (a *App) handleGetPage(c echo.Context) error {
	record, err := a.Store.GetPage(c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apiError(c, http.StatusNotFound, "Page not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, record)
}

// handleListPages returns the operator's pages, newest first.
func (a *App) handleListPages(c echo.Context) error {
	if !isOperator(c) {
		return apiError(c, http.StatusUnauthorized, "Login required")
	}
	pages, err := a.Store.ListPages()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"pages": pages})
}
