// Package web serves the player page: a single HTML document that loads the Spotify Web Playback SDK and relays it
// to the device bridge over a WebSocket.
//
// The page is the only place audio plays when spotui runs as its own Connect device. It holds no state of its own;
// tokens come from the server on demand and every SDK callback is forwarded as a frame.
package web

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
)

// DefaultSocketPath is where the bridge WebSocket is mounted.
const DefaultSocketPath = "/device/ws"

//go:embed player.html
var playerHTML string

var playerTemplate = template.Must(template.New("player").Parse(playerHTML))

// Page configures the player page.
type Page struct {
	Name       string // Connect device name, also the page title
	SocketPath string
}

// Render executes the page template.
func (p Page) Render() ([]byte, error) {
	if p.Name == "" {
		p.Name = "spotui"
	}
	if p.SocketPath == "" {
		p.SocketPath = DefaultSocketPath
	}

	var buf bytes.Buffer
	if err := playerTemplate.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("failed to render player page: %w", err)
	}
	return buf.Bytes(), nil
}

// Handler renders the page once and serves it for every request.
func Handler(p Page) (http.Handler, error) {
	body, err := p.Render()
	if err != nil {
		return nil, err
	}

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(body)
	}), nil
}
