package models

import (
	"fmt"
	"time"
)

// Track is a playable track. DurationMs is 0 when unknown.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int    `json:"duration_ms"`
	URI        string `json:"uri"`
	Explicit   bool   `json:"explicit,omitempty"`
}

// Duration returns the track length.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}

// String renders "Artist - Name".
func (t Track) String() string {
	if t.Artist == "" {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Name)
}

// Profile is the signed-in Spotify account.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product"` // premium, free, open
}

// Premium reports whether the account can control playback.
func (p Profile) Premium() bool {
	return p.Product == "premium"
}

// Playlist represents a playlist from the user's library.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	URI         string `json:"uri"`
}

// Device is a Spotify Connect playback device.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Active        bool   `json:"active"`
	Restricted    bool   `json:"restricted"`
	VolumePercent int    `json:"volume_percent"`
}

// Playback is the account's current playback on its active device.
type Playback struct {
	Device     Device `json:"device"`
	Track      *Track `json:"track,omitempty"`
	ProgressMs int    `json:"progress_ms"`
	IsPlaying  bool   `json:"is_playing"`
	Shuffle    bool   `json:"shuffle"`
	Repeat     string `json:"repeat"`
}

// TrackList is a titled list of tracks such as a search result or a playlist.
type TrackList struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Tracks      []Track `json:"tracks"`
}
