// package formatter renders remote listings and play history as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/shared"
)

// Format is an output format for exports.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
)

// ParseFormat accepts a format name or one of its aliases ("md", "text").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case CSV:
		return ".csv"
	case Markdown:
		return ".md"
	case Text:
		return ".txt"
	default:
		return ".json"
	}
}

func kind(o models.Object) string {
	if o.IsDir {
		return "dir"
	}
	return "file"
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ListingToCSV converts objects to CSV with columns: Path, Name, Type, Size, Modified
func ListingToCSV(objects []models.Object) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Path", "Name", "Type", "Size", "Modified"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range objects {
		record := []string{o.Path, o.Name, kind(o), strconv.FormatInt(o.Size, 10), timestamp(o.Modified)}
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

func totals(objects []models.Object) (dirs, files int, size int64) {
	for _, o := range objects {
		if o.IsDir {
			dirs++
			continue
		}
		files++
		size += o.Size
	}
	return dirs, files, size
}

// ListingToMarkdown renders objects as a Markdown table under a title heading.
func ListingToMarkdown(title string, objects []models.Object) ([]byte, error) {
	var buf bytes.Buffer
	dirs, files, size := totals(objects)

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Directories**: %d\n", dirs)
	fmt.Fprintf(&buf, "**Files**: %d (%s)\n\n", files, shared.FormatSize(size))

	buf.WriteString("| Path | Type | Size | Modified |\n")
	buf.WriteString("| --- | --- | --- | --- |\n")
	for _, o := range objects {
		sz := ""
		if !o.IsDir {
			sz = shared.FormatSize(o.Size)
		}
		fmt.Fprintf(&buf, "| %s | %s | %s | %s |\n", escapeCell(o.Path), kind(o), sz, timestamp(o.Modified))
	}
	return buf.Bytes(), nil
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

func escapeCell(s string) string { return cellEscaper.Replace(s) }

// ListingToText renders objects one per line, directories with a trailing slash.
func ListingToText(title string, objects []models.Object) ([]byte, error) {
	var buf bytes.Buffer
	dirs, files, size := totals(objects)

	fmt.Fprintf(&buf, "Listing: %s\n", title)
	fmt.Fprintf(&buf, "Directories: %d, Files: %d (%s)\n\n", dirs, files, shared.FormatSize(size))

	for _, o := range objects {
		if o.IsDir {
			fmt.Fprintf(&buf, "%s/\n", o.Path)
			continue
		}
		fmt.Fprintf(&buf, "%s  %s\n", o.Path, shared.FormatSize(o.Size))
	}
	return buf.Bytes(), nil
}

// HistoryToCSV converts play history to CSV.
func HistoryToCSV(entries []*models.PlayHistory) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Server", "Path", "Name", "Video", "Position", "Duration", "Plays", "Last Played"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, h := range entries {
		record := []string{
			h.ID(),
			h.ServerURL(),
			h.FilePath(),
			h.FileName(),
			strconv.FormatBool(h.IsVideo()),
			strconv.FormatInt(h.CurrentPosition(), 10),
			strconv.FormatInt(h.Duration(), 10),
			strconv.Itoa(h.PlayCount()),
			timestamp(h.LastPlayedAt()),
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

func position(h *models.PlayHistory) string {
	if h.Duration() <= 0 {
		return shared.FormatDuration(int(h.CurrentPosition()))
	}
	return fmt.Sprintf("%s / %s", shared.FormatDuration(int(h.CurrentPosition())), shared.FormatDuration(int(h.Duration())))
}

// HistoryToMarkdown renders play history as a numbered Markdown list.
func HistoryToMarkdown(entries []*models.PlayHistory) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Play History\n\n")
	fmt.Fprintf(&buf, "**Entries**: %d\n\n", len(entries))
	for i, h := range entries {
		fmt.Fprintf(&buf, "%d. %s (`%s`) [%s] played %dx, last %s\n",
			i+1, h.FileName(), h.FilePath(), position(h), h.PlayCount(), h.LastPlayedAt().Local().Format(time.DateTime))
	}
	return buf.Bytes(), nil
}

// HistoryToText renders play history one entry per line.
func HistoryToText(entries []*models.PlayHistory) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Play history: %d entries\n\n", len(entries))
	for i, h := range entries {
		fmt.Fprintf(&buf, "%d. %s [%s] %s\n", i+1, h.FilePath(), position(h), h.ServerURL())
	}
	return buf.Bytes(), nil
}

// RenderListing renders objects in format f.
func RenderListing(f Format, title string, objects []models.Object) ([]byte, error) {
	switch f {
	case CSV:
		return ListingToCSV(objects)
	case Markdown:
		return ListingToMarkdown(title, objects)
	case Text:
		return ListingToText(title, objects)
	default:
		return json.MarshalIndent(objects, "", "  ")
	}
}

// RenderHistory renders entries in format f.
func RenderHistory(f Format, entries []*models.PlayHistory) ([]byte, error) {
	switch f {
	case CSV:
		return HistoryToCSV(entries)
	case Markdown:
		return HistoryToMarkdown(entries)
	case Text:
		return HistoryToText(entries)
	default:
		if entries == nil {
			entries = []*models.PlayHistory{}
		}
		return json.MarshalIndent(entries, "", "  ")
	}
}

// WriteListing renders objects and writes them to path, creating parent directories.
//
// Defaults to listing{ext} in the working directory.
func WriteListing(f Format, title string, objects []models.Object, path string) (string, error) {
	if path == "" {
		path = "listing" + f.Extension()
	}

	data, err := RenderListing(f, title, objects)
	if err != nil {
		return "", fmt.Errorf("failed to render listing: %w", err)
	}
	return path, writeFile(path, data)
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
