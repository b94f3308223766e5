package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pixellab01/valentine"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			log.Fatal(err)
		}
	case "publish":
		if err := runPublish(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "list":
		if err := runList(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("valentine %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`valentine - a slug-addressed valentine page builder

Usage:
  valentine <command> [arguments]

Commands:
  serve                      Start the server (configured via environment)
  publish [flags] <6 images> Create a page on a running server
  list    [flags]            List published pages on a running server
  version                    Print the valentine version
  help                       Show this help message

Environment (serve):
  PORT, LOGIN_EMAIL, LOGIN_PASSWORD, SESSION_SECRET,
  DATABASE_PATH, UPLOADS_DIR, SITE_URL, COOKIE_SECURE, OVERWRITE_POLICY`)
}

func runServe() error {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := valentine.Config{
		Addr:            ":" + valentine.EnvOr("PORT", "3002"),
		SiteURL:         valentine.EnvOr("SITE_URL", ""),
		DatabasePath:    valentine.EnvOr("DATABASE_PATH", ""),
		UploadsDir:      valentine.EnvOr("UPLOADS_DIR", ""),
		LoginEmail:      valentine.MustEnv("LOGIN_EMAIL"),
		LoginPassword:   valentine.MustEnv("LOGIN_PASSWORD"),
		SessionSecret:   valentine.MustEnv("SESSION_SECRET"),
		CookieSecure:    strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		OverwritePolicy: valentine.EnvOr("OVERWRITE_POLICY", ""),
	}

	app := valentine.New(cfg)
	defer app.Close()
	return app.Start()
}
