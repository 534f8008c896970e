package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Directories finished so far
	Total   int    // Directories discovered so far
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ListDirectory Phase = iota
	WalkComplete
	WriteExport
)

func (p Phase) String() string {
	switch p {
	case ListDirectory:
		return "list_directory"
	case WalkComplete:
		return "walk_complete"
	case WriteExport:
		return "write_export"
	default:
		return ""
	}
}

// sendProgress sends update without blocking. Updates are dropped when
// progress is nil or full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func listingUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListDirectory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Listing %s...", step, total, path),
	}
}

func listedUpdate(step, total int, path string, entries int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListDirectory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d entries)", step, total, path, entries),
	}
}

func listFailedUpdate(step, total int, path string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListDirectory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, path, err),
	}
}

func walkCompleteUpdate(r *WalkResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WalkComplete,
		Step:    r.Directories,
		Total:   r.Directories,
		Message: fmt.Sprintf("Walked %s: %d directories, %d files", r.Root, r.Directories, r.Files),
		Data:    r,
	}
}

func writeExportUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing %s...", path),
	}
}
