// package formatter renders track lists (search results, playlists, top tracks) as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/shared"
)

// Format names an export format.
type Format string

const (
	Text     Format = "text"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// Extension returns the file extension used by [WriteFile].
func (f Format) Extension() string {
	switch f {
	case CSV:
		return ".csv"
	case Markdown:
		return ".md"
	case JSON:
		return ".json"
	default:
		return ".txt"
	}
}

// ParseFormat accepts a format name, case-insensitively. "md" and "txt" are aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return Text, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, csv, markdown or json)", shared.ErrInvalidArgument, name)
	}
}

// Duration renders milliseconds as m:ss, or h:mm:ss from one hour up. Negative values render as 0:00.
func Duration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ExportToCSV converts a TrackList to CSV with columns: ID, Name, Artist, Album, Duration, URI
func ExportToCSV(list *models.TrackList) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artist", "Album", "Duration", "URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range list.Tracks {
		record := []string{
			track.ID,
			track.Name,
			track.Artist,
			track.Album,
			strconv.Itoa(track.DurationMs / 1000),
			track.URI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a TrackList to a Markdown document with a numbered track list.
func ExportToMarkdown(list *models.TrackList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", list.Title)
	if list.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", list.Description)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(list.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, track := range list.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		explicit := ""
		if track.Explicit {
			explicit = " `E`"
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s]%s\n", i+1, track, albumPart, Duration(track.DurationMs), explicit)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a TrackList to plain text, one numbered track per line.
func ExportToText(list *models.TrackList) ([]byte, error) {
	var buf bytes.Buffer

	if list.Title != "" {
		fmt.Fprintf(&buf, "%s\n", list.Title)
	}
	if list.Description != "" {
		fmt.Fprintf(&buf, "%s\n", list.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(list.Tracks))

	for i, track := range list.Tracks {
		fmt.Fprintf(&buf, "%d. %s (%s)\n   %s\n", i+1, track, Duration(track.DurationMs), track.URI)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a TrackList to indented JSON.
func ExportToJSON(list *models.TrackList) ([]byte, error) {
	return shared.MarshalJSON(list, true)
}

// Export renders list in format f.
func Export(list *models.TrackList, f Format) ([]byte, error) {
	switch f {
	case CSV:
		return ExportToCSV(list)
	case Markdown:
		return ExportToMarkdown(list)
	case JSON:
		return ExportToJSON(list)
	case Text, "":
		return ExportToText(list)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// Write renders list in format f to w.
func Write(w io.Writer, list *models.TrackList, f Format) error {
	data, err := Export(list, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s export: %w", f, err)
	}
	return nil
}

// WriteFile renders list to path and returns the path written.
//
// An empty path defaults to a slug of the list title plus the format's extension, in the working directory.
func WriteFile(list *models.TrackList, f Format, path string) (string, error) {
	if path == "" {
		path = Slug(list.Title) + f.Extension()
	}

	data, err := Export(list, f)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Slug lowercases s and joins its letters and digits with single dashes. An empty result becomes "tracks".
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "tracks"
	}
	return slug
}
