package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/pixellab01/valentine"
	"github.com/pixellab01/valentine/editor"
)

// runPublish drives the editor state machine from the terminal: load six
// images into the slots, serialize them, and create the page on a running
// server.
func runPublish(args []string) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	server := fs.String("server", valentine.EnvOr("SITE_URL", "http://localhost:3002"), "server base URL")
	slug := fs.String("slug", "", "page slug (lowercase letters, numbers, hyphens)")
	years := fs.String("years", "", "relationship duration text")
	youtube := fs.String("youtube", "", "optional YouTube URL for the finale")
	email := fs.String("email", os.Getenv("LOGIN_EMAIL"), "operator email")
	password := fs.String("password", os.Getenv("LOGIN_PASSWORD"), "operator password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *slug == "" {
		return fmt.Errorf("-slug is required")
	}
	paths := fs.Args()
	if len(paths) != editor.SlotCount {
		return fmt.Errorf("exactly %d image paths are required, got %d", editor.SlotCount, len(paths))
	}

	ed := editor.New()
	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		err = ed.SelectFile(i, filepath.Base(p), f)
		f.Close()
		if err != nil {
			return err
		}
	}

	body, contentType, err := ed.Serialize(*slug, *years, *youtube)
	if err != nil {
		return err
	}

	client, err := login(*server, *email, *password)
	if err != nil {
		return err
	}

	resp, err := client.Post(*server+"/api/pages", contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create page: %s", responseError(resp))
	}
	fmt.Printf("Published %s/v1/%s\n", *server, *slug)
	return nil
}

// runList prints the slugs of every published page, newest first.
func runList(args []string) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	server := fs.String("server", valentine.EnvOr("SITE_URL", "http://localhost:3002"), "server base URL")
	email := fs.String("email", os.Getenv("LOGIN_EMAIL"), "operator email")
	password := fs.String("password", os.Getenv("LOGIN_PASSWORD"), "operator password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := login(*server, *email, *password)
	if err != nil {
		return err
	}

	resp, err := client.Get(*server + "/api/pages")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list pages: %s", responseError(resp))
	}
	var out struct {
		Pages []struct {
			Slug      string `json:"slug"`
			CreatedAt string `json:"createdAt"`
		} `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	for _, p := range out.Pages {
		fmt.Printf("%s\t%s/v1/%s\n", p.CreatedAt, *server, p.Slug)
	}
	return nil
}

// login authenticates against the server and returns a client carrying the
// session cookie.
func login(server, email, password string) (*http.Client, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("operator credentials required (-email/-password or LOGIN_EMAIL/LOGIN_PASSWORD)")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar}

	creds, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(server+"/api/login", "application/json", bytes.NewReader(creds))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login: %s", responseError(resp))
	}
	return client, nil
}

func responseError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Sprintf("%s (%s)", body.Error, resp.Status)
	}
	return resp.Status
}
