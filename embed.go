package valentine

import (
	"embed"
	"net/http"

	"github.com/labstack/echo/v4"
)

// EmbeddedAssets contains the single-page app served at /:
// index.html, app.js, style.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

// handleIndex serves the SPA shell. Every browser-facing route returns the
// same document; routing happens client-side.
func (a *App) handleIndex(c echo.Context) error {
	data, err := EmbeddedAssets.ReadFile("embedded/index.html")
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, data)
}

func assetHandler(name, contentType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := EmbeddedAssets.ReadFile("embedded/" + name)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, contentType, data)
	}
}
