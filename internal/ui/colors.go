package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/olx/internal/connectivity"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	status lipgloss.Style
	snack  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		status: NewStyle(h),
		snack:  NewBold("#FFFFFF").Background(lipgloss.Color(e)).Padding(0, 1),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// quality picks the indicator style for q.
func (p *Palette) quality(q connectivity.Quality) lipgloss.Style {
	switch q {
	case connectivity.Excellent, connectivity.Good:
		return p.ok
	case connectivity.Fair:
		return p.warn
	default:
		return p.err
	}
}
