// Package valentine is a single-operator valentine page builder. One
// authenticated operator uploads six photographs with optional positioning
// and zoom metadata, and the server persists them under a URL-safe slug;
// anyone holding the slug can then view the generated page.
//
// The package is a library: construct an App from a Config and call Start.
// cmd/valentine wires it to environment variables.
package valentine

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
)

// App is the central valentine application. It wires together the store,
// upload directory, middleware, and HTTP routes.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Store   *Store
	Uploads *Uploads

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
}

// New creates a valentine App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start initializes the store, middleware, and routes, then serves until
// the listener fails. Startup errors are returned; fatal runtime errors
// crash the process so a supervisor can restart it.
func (a *App) Start() error {
	if err := a.setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// setup builds everything short of the listener. Split from Start so tests
// can drive a.Echo directly.
func (a *App) setup() error {
	if a.Config.LoginEmail == "" || a.Config.LoginPassword == "" {
		return fmt.Errorf("valentine: LoginEmail and LoginPassword are required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("valentine: SessionSecret is required")
	}
	if a.Config.OverwritePolicy != OverwriteReplace && a.Config.OverwritePolicy != OverwriteReject {
		return fmt.Errorf("valentine: unknown overwrite policy %q", a.Config.OverwritePolicy)
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("valentine: init store: %w", err)
	}
	a.Store = store

	uploads, err := NewUploads(a.Config.UploadsDir)
	if err != nil {
		return fmt.Errorf("valentine: init uploads: %w", err)
	}
	a.Uploads = uploads

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.POST("/api/login", a.handleLogin)
	e.POST("/api/logout", handleLogout)
	e.POST("/api/pages", a.handleCreatePage)
	e.GET("/api/pages", a.handleListPages)
	e.GET("/api/pages/:slug", a.handleGetPage)

	// Uploaded photographs are public by design: the page viewer is
	// unauthenticated and loads them directly.
	e.Static("/uploads", a.Config.UploadsDir)

	// Embedded single-page app: login, the builder, and the viewer all
	// share one HTML shell and route client-side.
	e.GET("/", a.handleIndex)
	e.GET("/create", a.handleIndex)
	e.GET("/v1/:slug", a.handleIndex)
	e.GET("/app.js", assetHandler("app.js", "application/javascript; charset=utf-8"))
	e.GET("/style.css", assetHandler("style.css", "text/css; charset=utf-8"))
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if
// empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally
// exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("valentine: required environment variable %s is not set", key)
	}
	return v
}
