package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/checklist/internal/checklist"
	"github.com/five82/checklist/internal/pagestate"
	"github.com/five82/checklist/internal/prefs"
	"github.com/five82/checklist/internal/state"
)

// API is the backend surface the UI needs: the polling reads plus the two
// actions an operator can trigger.
type API interface {
	checklist.Fetcher
	ReviewMOP(ctx context.Context, id int64, decision, comment string) error
	StartAssessment(ctx context.Context, req checklist.AssessmentRequest) (int64, error)
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	API       API
	Store     *state.Store
	Pages     *pagestate.Manager
	Logger    *zap.Logger
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
	StartPage string
	LogPath   string
}

// Model is the root application state for Bubble Tea. Per-page view state
// (selection, filters, dialogs) lives in the page-state manager so it
// survives page switches and restarts; the model only keeps fetched data.
type Model struct {
	// Configuration
	ctx       context.Context
	api       API
	store     *state.Store
	pages     *pagestate.Manager
	logger    *zap.Logger
	prefsPath string
	logPath   string
	pollTick  time.Duration
	keys      keyMap

	// UI state
	theme  Theme
	page   page
	width  int
	height int
	ready  bool
	search textinput.Model
	flash  string
	failed bool

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time
	mops        checklist.MOPList
	history     checklist.HistoryPage
	progress    checklist.AssessmentStatus
	results     checklist.AssessmentResults
	logLines    []string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.Defaults().Theme
	}

	search := textinput.New()
	search.Prompt = "/"
	search.CharLimit = 120

	m := Model{
		ctx:       ctx,
		api:       opts.API,
		store:     opts.Store,
		pages:     opts.Pages,
		logger:    logger,
		prefsPath: opts.PrefsPath,
		logPath:   opts.LogPath,
		pollTick:  pollTick,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(themeName),
		search:    search,
	}
	if m.pages != nil {
		RegisterFlags(m.pages)
	}
	m.page, _ = pageFromKey(opts.StartPage)
	if m.pages != nil {
		m.pages.Navigate(m.page.Key())
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick), m.loadPage()}
	if m.store != nil && m.page != pageDashboard {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		if !m.snapshot.LastUpdated.IsZero() {
			m.lastUpdated = m.snapshot.LastUpdated
		}
		return m, nil

	case mopsMsg:
		if msg.err != nil {
			return m.fail("load MOPs", msg.err), nil
		}
		m.mops = msg.list
		return m, nil

	case historyMsg:
		if msg.err != nil {
			return m.fail("load history", msg.err), nil
		}
		m.history = msg.page
		return m, nil

	case assessmentMsg:
		if msg.err != nil {
			return m.fail("load assessment", msg.err), nil
		}
		if msg.id != int64(m.view(pageAssessments).Int(attrAssessment, 0)) {
			return m, nil
		}
		m.progress = msg.status
		m.results = msg.results
		return m, nil

	case logLinesMsg:
		if msg.err != nil {
			return m.fail("read log", msg.err), nil
		}
		m.logLines = msg.lines
		return m, nil

	case actionMsg:
		if msg.err != nil {
			return m.fail(msg.text, msg.err), nil
		}
		m.flash, m.failed = msg.text, false
		if msg.assessmentID != 0 {
			m.setOn(pageAssessments, map[string]any{
				attrAssessment: msg.assessmentID,
				attrSelected:   0,
				attrPage:       1,
			})
			m.progress = checklist.AssessmentStatus{}
			m.results = checklist.AssessmentResults{}
			m.switchTo(pageAssessments)
		}
		return m, m.loadPage()
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	ps := m.view(m.page)
	switch {
	case ps.Bool(attrShowHelp):
		return m.renderHelp()
	case ps.Bool(attrShowConfirm):
		return m.renderConfirm(ps)
	case ps.Bool(attrShowFilter):
		return m.renderFilterModal(ps)
	}
	return m.renderMain()
}

// switchTo makes p the active page. The manager closes any dialog that was
// left open on p, and the choice is remembered for the next launch.
func (m *Model) switchTo(p page) {
	m.page = p
	if m.pages != nil {
		m.pages.Navigate(p.Key())
	}
	m.flash = ""
	m.search.Blur()
	m.savePrefs()
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, LastPage: m.page.Key()}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.Warn("save preferences failed", zap.Error(err))
	}
}

func (m Model) fail(what string, err error) Model {
	if errors.Is(err, context.Canceled) {
		return m
	}
	m.logger.Warn(what+" failed", zap.Error(err))
	m.flash = what + ": " + classifyConnectionError(err)
	m.failed = true
	return m
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	switch m.page {
	case pageAssessments:
		if id := m.view(pageAssessments).Int(attrAssessment, 0); id != 0 && !m.progress.Done() {
			cmds = append(cmds, m.fetchAssessment(int64(id)))
		}
	case pageLogs:
		if followLogs(m.view(pageLogs)) {
			cmds = append(cmds, m.readLogs())
		}
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// loadPage fetches whatever the current page displays.
func (m Model) loadPage() tea.Cmd {
	switch m.page {
	case pageMOPs:
		return m.fetchMOPs()
	case pageAssessments:
		if id := m.view(pageAssessments).Int(attrAssessment, 0); id != 0 {
			return m.fetchAssessment(int64(id))
		}
	case pageHistory:
		return m.fetchHistory()
	case pageLogs:
		return m.readLogs()
	default:
		if m.store != nil {
			return fetchSnapshotCmd(m.store)
		}
	}
	return nil
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	if footer := m.renderFooter(); footer != "" {
		b.WriteString("\n")
		b.WriteString(footer)
	}
	return b.String()
}

// renderContent renders the main content area based on current page.
func (m Model) renderContent() string {
	switch m.page {
	case pageMOPs:
		return m.renderMOPs()
	case pageAssessments:
		return m.renderAssessments()
	case pageHistory:
		return m.renderHistory()
	case pageLogs:
		return m.renderLogs()
	default:
		return m.renderDashboard()
	}
}

// contentHeight is the number of lines left for the page body.
func (m Model) contentHeight() int {
	h := m.height - 4
	if h < 3 {
		return 3
	}
	return h
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type mopsMsg struct {
	list checklist.MOPList
	err  error
}

type historyMsg struct {
	page checklist.HistoryPage
	err  error
}

type assessmentMsg struct {
	id      int64
	status  checklist.AssessmentStatus
	results checklist.AssessmentResults
	err     error
}

type logLinesMsg struct {
	lines []string
	err   error
}

// actionMsg reports the outcome of a review or run request.
type actionMsg struct {
	text         string
	assessmentID int64
	err          error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, RequestTimeout)
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
