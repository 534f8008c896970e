// Package ui implements an interactive terminal file browser using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [LoginView] : Username and password form, prefilled from the saved credentials
//  2. [BrowserView] : Navigate the remote tree, open media and launch raw links
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the Msg union type.
// Authentication and connectivity changes arrive through subscriptions on [Authenticator] and [NetworkSource],
// so a session expiring anywhere in the process sends the user back to the login form.
//
// Errors are queued on a [notify.Manager] and drained through a [Snackbar], one at a time.
// A failed listing carries a retry action that re-fetches the directory when the user presses r.
//
// The status line shows the network quality, the signed in account and the last operation.
package ui
