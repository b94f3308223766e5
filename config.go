package valentine

// Overwrite policies for resubmitting an existing slug.
const (
	// OverwriteReplace lets a second creation under the same slug replace
	// the stored record wholesale.
	OverwriteReplace = "replace"
	// OverwriteReject fails a second creation under the same slug with 409.
	OverwriteReject = "reject"
)

// Config holds all configuration for a valentine server.
type Config struct {
	Addr         string // Listen address (default ":3002")
	SiteURL      string // Canonical URL used when printing share links
	DatabasePath string // SQLite path (default "data/pages.db")
	UploadsDir   string // Directory for uploaded images (default "uploads")

	LoginEmail    string // Required: operator email
	LoginPassword string // Required: operator password
	SessionSecret string // Required: session cookie encryption secret
	CookieSecure  bool   // Set true when serving over HTTPS

	// OverwritePolicy decides what a create for an existing slug does:
	// OverwriteReplace (default) or OverwriteReject.
	OverwritePolicy string

	// MaxUploadBytes caps each uploaded file (default 100 MiB).
	MaxUploadBytes int64
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3002"
	}
	if c.SiteURL == "" {
		c.SiteURL = "http://localhost:3002"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pages.db"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "uploads"
	}
	if c.OverwritePolicy == "" {
		c.OverwritePolicy = OverwriteReplace
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 100 << 20
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are set up, before the
// server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
