package shared

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// FormatSize renders a byte count using binary units (1.5 MiB).
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// CleanRemotePath normalizes a remote OpenList path: rooted, no trailing slash, no dot segments.
func CleanRemotePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// JoinRemotePath joins a remote directory and entry name.
func JoinRemotePath(dir, name string) string {
	return CleanRemotePath(path.Join(CleanRemotePath(dir), name))
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".ts": true, ".rmvb": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".wav": true, ".aac": true, ".ogg": true,
	".m4a": true, ".opus": true, ".wma": true, ".ape": true,
}

// IsVideo reports whether the file name has a known video extension.
func IsVideo(name string) bool {
	return videoExtensions[strings.ToLower(path.Ext(name))]
}

// IsAudio reports whether the file name has a known audio extension.
func IsAudio(name string) bool {
	return audioExtensions[strings.ToLower(path.Ext(name))]
}

// IsMedia reports whether the file is playable audio or video.
func IsMedia(name string) bool {
	return IsVideo(name) || IsAudio(name)
}
