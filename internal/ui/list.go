package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/shared"
)

var _ list.Item = objectItem{}

// objectItem wraps [models.Object] to implement [list.Item].
type objectItem struct {
	object models.Object
}

func (i objectItem) FilterValue() string { return i.object.Name }
func (i objectItem) Title() string {
	if i.object.IsDir {
		return i.object.Name + "/"
	}
	return i.object.Name
}
func (i objectItem) Description() string {
	modified := ""
	if !i.object.Modified.IsZero() {
		modified = i.object.Modified.Local().Format("2006-01-02 15:04")
	}
	if i.object.IsDir {
		return fmt.Sprintf("folder • %s", modified)
	}
	kind := "file"
	switch {
	case shared.IsVideo(i.object.Name):
		kind = "video"
	case shared.IsAudio(i.object.Name):
		kind = "audio"
	}
	return fmt.Sprintf("%s • %s • %s", kind, shared.FormatSize(i.object.Size), modified)
}

func objectItems(objects []models.Object) []list.Item {
	items := make([]list.Item, len(objects))
	for i, o := range objects {
		items[i] = objectItem{object: o}
	}
	return items
}
