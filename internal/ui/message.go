package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/olx/internal/auth"
	"github.com/desertthunder/olx/internal/connectivity"
	"github.com/desertthunder/olx/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgAuthChanged MsgKind = iota
	MsgNetworkChanged
	MsgListingFetched
	MsgObjectOpened
	MsgLoginFinished
	MsgAutoLoginFinished
	MsgSnackRequested
	MsgReloadRequested
	MsgStreamClosed
)

type listing struct {
	path   string
	result *models.ListResult
	err    error
}

type opened struct {
	object *models.Object
	err    error
}

// authChangedMsg is the constructor for [MsgAuthChanged]
func authChangedMsg(s auth.State) Msg {
	return Msg{kind: MsgAuthChanged, data: s}
}

// networkChangedMsg is the constructor for [MsgNetworkChanged]
func networkChangedMsg(info connectivity.NetworkInfo) Msg {
	return Msg{kind: MsgNetworkChanged, data: info}
}

// listingFetchedMsg is the constructor for [MsgListingFetched]
func listingFetchedMsg(path string, result *models.ListResult, err error) Msg {
	return Msg{kind: MsgListingFetched, data: listing{path, result, err}}
}

// objectOpenedMsg is the constructor for [MsgObjectOpened]
func objectOpenedMsg(obj *models.Object, err error) Msg {
	return Msg{kind: MsgObjectOpened, data: opened{obj, err}}
}

// loginFinishedMsg is the constructor for [MsgLoginFinished]
func loginFinishedMsg(s auth.AuthState) Msg {
	return Msg{kind: MsgLoginFinished, data: s}
}

// autoLoginFinishedMsg is the constructor for [MsgAutoLoginFinished]
func autoLoginFinishedMsg(s auth.AutoLoginState) Msg {
	return Msg{kind: MsgAutoLoginFinished, data: s}
}

// snackRequestedMsg is the constructor for [MsgSnackRequested]
func snackRequestedMsg(r snackRequest) Msg {
	return Msg{kind: MsgSnackRequested, data: r}
}

// reloadRequestedMsg is the constructor for [MsgReloadRequested]
func reloadRequestedMsg(path string) Msg {
	return Msg{kind: MsgReloadRequested, data: path}
}

// streamClosedMsg reports that a subscription channel was closed.
func streamClosedMsg() Msg {
	return Msg{kind: MsgStreamClosed}
}
