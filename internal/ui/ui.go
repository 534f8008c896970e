package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/olx/internal/auth"
	"github.com/desertthunder/olx/internal/connectivity"
	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/notify"
	"github.com/desertthunder/olx/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoginView ViewState = iota
	BrowserView
)

// Browser is the remote file API used by the TUI.
type Browser interface {
	List(ctx context.Context, req models.ListRequest) (*models.ListResult, error)
	Stat(ctx context.Context, req models.GetRequest) (*models.Object, error)
	BaseURL() string
}

// Authenticator is the credential lifecycle seen by the TUI. [auth.Controller] implements it.
type Authenticator interface {
	State() auth.State
	Subscribe() (<-chan auth.State, func())
	Login(ctx context.Context, username, password string, remember bool) auth.AuthState
	Logout(ctx context.Context) auth.AuthState
	AttemptAutoLogin(ctx context.Context) auth.AutoLoginState
}

// NetworkSource publishes connectivity snapshots. [connectivity.Monitor] implements it.
type NetworkSource interface {
	Subscribe(buffer int) (<-chan connectivity.NetworkInfo, func())
}

// Recorder stores opened media.
type Recorder interface {
	Record(h *models.PlayHistory) (*models.PlayHistory, error)
}

// Deps are the collaborators of a [Model]. Network, History and Open are optional.
type Deps struct {
	Browser  Browser
	Auth     Authenticator
	Network  NetworkSource
	Errors   *notify.Manager
	History  Recorder
	Open     func(url string) error
	Snackbar *Snackbar
	Root     string
	Logger   *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	deps     Deps
	authCh   <-chan auth.State
	netCh    <-chan connectivity.NetworkInfo
	reloads  chan string
	stops    []func()
	state    auth.State
	network  connectivity.NetworkInfo
	path     string
	files    list.Model
	username textinput.Model
	password textinput.Model
	spinner  spinner.Model
	loading  bool
	status   string
	snack    *snackRequest
	width    int
	height   int
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model and subscribes to auth and network updates.
// Call [Model.Close] once the program exits.
func NewModel(ctx context.Context, deps Deps) *Model {
	if deps.Errors == nil {
		deps.Errors = notify.NewManager()
	}
	if deps.Snackbar == nil {
		deps.Snackbar = NewSnackbar()
	}
	if deps.Open == nil {
		deps.Open = shared.OpenURL
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}

	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "
	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword

	files := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	files.SetShowHelp(false)

	m := &Model{
		ctx:      ctx,
		view:     LoginView,
		deps:     deps,
		reloads:  make(chan string, 1),
		path:     shared.CleanRemotePath(deps.Root),
		files:    files,
		username: username,
		password: password,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keys:     newKeyMap(),
		network:  connectivity.Disconnected,
	}

	m.state = deps.Auth.State()
	m.username.SetValue(m.state.Credentials.Username)
	m.focusField(0)
	if m.state.Auth.Kind == auth.AuthAuthenticated {
		m.view = BrowserView
	}

	var stop func()
	m.authCh, stop = deps.Auth.Subscribe()
	m.stops = append(m.stops, stop)
	if deps.Network != nil {
		m.netCh, stop = deps.Network.Subscribe(1)
		m.stops = append(m.stops, stop)
	}
	return m
}

// Close releases the model's subscriptions.
func (m *Model) Close() {
	for _, stop := range m.stops {
		stop()
	}
}

// Init starts the listeners and either loads the root listing or tries a saved login.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.deps.Snackbar.wait(),
		m.waitAuth(),
		m.waitReload(),
		m.serveErrors(),
	}
	if m.netCh != nil {
		cmds = append(cmds, m.waitNetwork())
	}

	m.loading = true
	if m.view == BrowserView {
		cmds = append(cmds, m.fetchListing(m.path))
	} else {
		m.status = "signing in..."
		cmds = append(cmds, m.autoLogin())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.files.SetSize(msg.Width-4, msg.Height-6)
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.snack != nil {
			return m.handleSnackKeys(msg)
		}
		switch m.view {
		case LoginView:
			return m.handleLoginKeys(msg)
		case BrowserView:
			return m.handleBrowserKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == BrowserView {
		m.files, cmd = m.files.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgAuthChanged:
		return m, tea.Batch(m.applyAuth(msg.data.(auth.State)), m.waitAuth())

	case MsgNetworkChanged:
		m.network = msg.data.(connectivity.NetworkInfo)
		return m, m.waitNetwork()

	case MsgListingFetched:
		res := msg.data.(listing)
		m.loading = false
		if res.err != nil {
			m.status = fmt.Sprintf("failed to list %s", res.path)
			path := res.path
			m.deps.Errors.AddError(res.err, func() { m.requestReload(path) })
			return m, nil
		}
		m.path = res.path
		m.files.Title = res.path
		m.status = fmt.Sprintf("%d items", res.result.Total)
		return m, m.files.SetItems(objectItems(res.result.Content))

	case MsgObjectOpened:
		res := msg.data.(opened)
		m.loading = false
		if res.err != nil {
			m.status = "open failed"
			m.deps.Errors.AddError(res.err, nil)
			return m, nil
		}
		m.status = "opened " + res.object.Name
		return m, nil

	case MsgLoginFinished:
		m.loading = false
		if s := msg.data.(auth.AuthState); s.Kind == auth.AuthError {
			m.status = s.Message
		}
		return m, nil

	case MsgAutoLoginFinished:
		m.loading = false
		s := msg.data.(auth.AutoLoginState)
		switch s.Kind {
		case auth.AutoSuccess:
			m.status = ""
		case auth.AutoNoCredentials:
			m.status = "sign in to continue"
		default:
			m.status = s.String()
		}
		return m, nil

	case MsgSnackRequested:
		req := msg.data.(snackRequest)
		m.snack = &req
		return m, m.deps.Snackbar.wait()

	case MsgReloadRequested:
		m.loading = true
		return m, tea.Batch(m.fetchListing(msg.data.(string)), m.waitReload())
	}
	return m, nil
}

// applyAuth switches views on authentication changes.
func (m *Model) applyAuth(s auth.State) tea.Cmd {
	m.state = s
	switch s.Auth.Kind {
	case auth.AuthAuthenticated:
		if m.view != BrowserView {
			m.view = BrowserView
			m.password.SetValue("")
			m.loading = true
			return m.fetchListing(m.path)
		}
	case auth.AuthNotAuthenticated, auth.AuthError:
		if m.view != LoginView {
			m.view = LoginView
			m.files.SetItems(nil)
			m.focusField(0)
		}
		if s.Auth.Kind == auth.AuthError {
			m.status = s.Auth.Message
		}
	}
	return nil
}

func (m *Model) handleSnackKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.dismiss):
		m.snack.reply <- notify.Dismissed
		m.snack = nil
	case key.Matches(msg, m.keys.retry) && m.snack.action != "":
		m.snack.reply <- notify.ActionInvoked
		m.snack = nil
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) focusField(i int) {
	if i == 0 {
		m.username.Focus()
		m.password.Blur()
		return
	}
	m.username.Blur()
	m.password.Focus()
}

func (m *Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		if m.username.Focused() {
			m.focusField(1)
		} else {
			m.focusField(0)
		}
		return m, nil
	case "enter":
		if m.username.Focused() {
			m.focusField(1)
			return m, nil
		}
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.status = "signing in..."
		return m, m.login(m.username.Value(), m.password.Value())
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleBrowserKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.files.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.files, cmd = m.files.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if obj, ok := m.selected(); ok {
			m.loading = true
			if obj.IsDir {
				return m, m.fetchListing(shared.JoinRemotePath(m.path, obj.Name))
			}
			return m, m.openObject(obj, false)
		}
		return m, nil
	case key.Matches(msg, m.keys.launch):
		if obj, ok := m.selected(); ok && !obj.IsDir {
			m.loading = true
			return m, m.openObject(obj, true)
		}
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.path == "/" {
			return m, nil
		}
		m.loading = true
		return m, m.fetchListing(shared.CleanRemotePath(m.path + "/.."))
	case key.Matches(msg, m.keys.refresh):
		m.loading = true
		return m, m.fetchListing(m.path)
	case key.Matches(msg, m.keys.logout):
		m.loading = true
		m.status = "signing out..."
		return m, m.logout()
	}

	var cmd tea.Cmd
	m.files, cmd = m.files.Update(msg)
	return m, cmd
}

func (m *Model) selected() (models.Object, bool) {
	item, ok := m.files.SelectedItem().(objectItem)
	if !ok {
		return models.Object{}, false
	}
	return item.object, true
}

// requestReload is the retry action for a failed listing. It runs on the
// notification goroutine, so it only signals the program.
func (m *Model) requestReload(path string) {
	select {
	case m.reloads <- path:
	default:
	}
}

func (m *Model) waitReload() tea.Cmd {
	return func() tea.Msg {
		return reloadRequestedMsg(<-m.reloads)
	}
}

func (m *Model) waitAuth() tea.Cmd {
	ch := m.authCh
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg()
		}
		return authChangedMsg(s)
	}
}

func (m *Model) waitNetwork() tea.Cmd {
	ch := m.netCh
	return func() tea.Msg {
		info, ok := <-ch
		if !ok {
			return streamClosedMsg()
		}
		return networkChangedMsg(info)
	}
}

// serveErrors drains the notification queue through the snackbar for the life of the program.
func (m *Model) serveErrors() tea.Cmd {
	errs, snack, ctx, logger := m.deps.Errors, m.deps.Snackbar, m.ctx, m.deps.Logger
	return func() tea.Msg {
		if err := errs.Serve(ctx, snack); err != nil && ctx.Err() == nil {
			logger.Error("notification loop stopped", "err", err)
		}
		return nil
	}
}

func (m *Model) autoLogin() tea.Cmd {
	ctx, a := m.ctx, m.deps.Auth
	return func() tea.Msg {
		return autoLoginFinishedMsg(a.AttemptAutoLogin(ctx))
	}
}

func (m *Model) login(username, password string) tea.Cmd {
	ctx, a := m.ctx, m.deps.Auth
	return func() tea.Msg {
		return loginFinishedMsg(a.Login(ctx, username, password, true))
	}
}

func (m *Model) logout() tea.Cmd {
	ctx, a := m.ctx, m.deps.Auth
	return func() tea.Msg {
		return loginFinishedMsg(a.Logout(ctx))
	}
}

func (m *Model) fetchListing(path string) tea.Cmd {
	ctx, b := m.ctx, m.deps.Browser
	return func() tea.Msg {
		res, err := b.List(ctx, models.ListRequest{Path: path})
		return listingFetchedMsg(path, res, err)
	}
}

// openObject resolves obj's raw URL, records media in the play history and,
// when launch is set or obj is media, hands the URL to the system opener.
func (m *Model) openObject(obj models.Object, launch bool) tea.Cmd {
	ctx, d, path := m.ctx, m.deps, shared.JoinRemotePath(m.path, obj.Name)
	return func() tea.Msg {
		full, err := d.Browser.Stat(ctx, models.GetRequest{Path: path})
		if err != nil {
			return objectOpenedMsg(nil, err)
		}

		media := shared.IsMedia(full.Name) || full.Type == models.TypeVideo || full.Type == models.TypeAudio
		if media && d.History != nil {
			if _, err := d.History.Record(models.PlayHistoryFromObject(d.Browser.BaseURL(), *full)); err != nil {
				d.Logger.Warn("failed to record play history", "path", full.Path, "err", err)
			}
		}

		if launch || media {
			if full.RawURL == "" {
				return objectOpenedMsg(nil, fmt.Errorf("%w: no download link for %s", shared.ErrNotFound, full.Path))
			}
			if err := d.Open(full.RawURL); err != nil {
				return objectOpenedMsg(nil, err)
			}
		}
		return objectOpenedMsg(full, nil)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case LoginView:
		body = m.renderLogin()
	case BrowserView:
		body = m.renderBrowser()
	}

	parts := []string{body}
	if m.snack != nil {
		parts = append(parts, m.renderSnack())
	}
	parts = append(parts, m.renderStatus())
	return strings.Join(parts, "\n")
}

func (m *Model) renderLogin() string {
	title := styles.title.Render("Sign in to " + m.state.Credentials.ServerURL)
	helpKeys := []key.Binding{m.keys.next, key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sign in"))}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, m.username.View(), m.password.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderBrowser() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.launch, m.keys.logout, m.keys.quit}
	return fmt.Sprintf("%s\n%s", m.files.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSnack() string {
	actions := "[enter] dismiss"
	if m.snack.action != "" {
		actions += fmt.Sprintf("  [r] %s", m.snack.action)
	}
	return styles.snack.Render(m.snack.message + "  " + actions)
}

func (m *Model) renderStatus() string {
	n := m.network
	indicator := styles.quality(n.Quality).Render("●")
	network := fmt.Sprintf("%s %s %s", indicator, n.Type, n.Quality)
	if !n.Connected {
		network = fmt.Sprintf("%s offline", styles.err.Render("●"))
	}

	user := m.state.Auth.Kind.String()
	if m.state.Auth.Kind == auth.AuthAuthenticated {
		user = m.state.Credentials.Username + "@" + m.state.Credentials.ServerURL
	}

	status := m.status
	if m.loading {
		status = m.spinner.View() + " " + status
	}
	return styles.status.Render(fmt.Sprintf("%s │ %s │ %s", network, user, status))
}
