package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/olx/internal/formatter"
)

// ExportOpts contains configuration for a tree export.
type ExportOpts struct {
	WalkOpts
	Format formatter.Format // Listing format: json, csv, markdown, txt
	Output string           // Listing file (default: olx_export_{epoch}{ext})
}

// ExportResult describes the files written by [Walker.Export].
type ExportResult struct {
	Walk         *WalkResult `json:"-"`
	ListingPath  string      `json:"listing"`
	ManifestPath string      `json:"manifest"`
}

type exportManifest struct {
	Root        string     `json:"root"`
	Format      string     `json:"format"`
	Listing     string     `json:"listing"`
	Directories int        `json:"directories"`
	Files       int        `json:"files"`
	TotalSize   int64      `json:"total_size"`
	Errors      []DirError `json:"errors,omitempty"`
	ExportedAt  time.Time  `json:"exported_at"`
}

// Export walks root and writes the listing in opts.Format, followed by a JSON
// manifest named after the listing ({name}_manifest.json).
//
// Directories that failed to list are reported in the manifest; a cancelled
// walk writes nothing.
func (w *Walker) Export(ctx context.Context, progress chan<- ProgressUpdate, root string, opts ExportOpts) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.JSON
	}
	if opts.Output == "" {
		opts.Output = fmt.Sprintf("olx_export_%d%s", time.Now().Unix(), opts.Format.Extension())
	}

	walk, err := w.Walk(ctx, progress, root, opts.WalkOpts)
	if err != nil {
		return nil, err
	}

	sendProgress(progress, writeExportUpdate(opts.Output))
	listing, err := formatter.WriteListing(opts.Format, walk.Root, walk.Entries, opts.Output)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Walk: walk, ListingPath: listing}

	manifestPath := strings.TrimSuffix(listing, opts.Format.Extension()) + "_manifest.json"
	manifest := exportManifest{
		Root:        walk.Root,
		Format:      string(opts.Format),
		Listing:     listing,
		Directories: walk.Directories,
		Files:       walk.Files,
		TotalSize:   walk.TotalSize,
		Errors:      walk.Errors,
		ExportedAt:  time.Now().UTC(),
	}
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	w.logger.Info("export written", "listing", listing, "entries", len(walk.Entries))
	return result, nil
}
