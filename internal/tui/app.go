package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runwatch/runwatch/internal/format"
	"github.com/runwatch/runwatch/internal/models"
	"github.com/runwatch/runwatch/internal/poller"
	"github.com/runwatch/runwatch/internal/render"
	"github.com/runwatch/runwatch/internal/timeline"
)

// Source is where runs come from: the live backend client or a local
// recording store.
type Source interface {
	poller.Fetcher
	ListRuns(ctx context.Context, repository string) ([]*models.AgentRun, error)
}

type View int

const (
	ViewRunList View = iota
	ViewTimeline
)

type App struct {
	source     Source
	repository string
	interval   time.Duration

	view        View
	runs        []*models.AgentRun
	selectedIdx int

	// timeline view state; ctrl is owned by this view and stopped on exit
	ctrl     *poller.Controller
	run      *models.AgentRun
	entries  []models.TimelineEntry
	correl   *timeline.Correlator
	showMeta bool
	notice   string

	viewport   viewport.Model
	spinner    spinner.Model
	refreshing bool

	width  int
	height int
	err    error
}

func NewApp(source Source, repository string, interval time.Duration) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &App{
		source:     source,
		repository: repository,
		interval:   interval,
		view:       ViewRunList,
		spinner:    sp,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadRuns, a.tickCmd())
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(a.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) hasActiveRuns() bool {
	for _, run := range a.runs {
		if run.Status.Active() {
			return true
		}
	}
	return false
}

type tickMsg time.Time

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = msg.Width
		a.viewport.Height = maxInt(1, msg.Height-timelineChromeLines)
		if a.view == ViewTimeline {
			a.viewport.SetContent(a.renderTimeline())
		}
		return a, nil

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) && a.selectedIdx > 0 {
			a.selectedIdx = len(a.runs) - 1
		}
		return a, nil

	case tickMsg:
		// The run list refreshes on a coarse tick while something is live;
		// the timeline view has its own polling controller instead.
		if a.view == ViewRunList && a.hasActiveRuns() {
			return a, tea.Batch(a.loadRuns, a.tickCmd())
		}
		return a, a.tickCmd()

	case runOpenedMsg:
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.err = nil
		a.notice = ""
		if a.ctrl != nil && a.ctrl != msg.ctrl {
			a.ctrl.Stop()
		}
		a.ctrl = msg.ctrl
		a.correl = timeline.NewCorrelator()
		a.applySnapshot(msg.run)
		a.view = ViewTimeline
		a.viewport.GotoTop()
		return a, tea.Batch(waitUpdate(msg.ctrl), waitErr(msg.ctrl))

	case runUpdatedMsg:
		if a.view == ViewTimeline && a.ctrl == msg.ctrl {
			atBottom := a.viewport.AtBottom()
			a.applySnapshot(msg.run)
			if atBottom {
				a.viewport.GotoBottom()
			}
			return a, waitUpdate(msg.ctrl)
		}
		return a, nil

	case pollErrMsg:
		if a.view == ViewTimeline && a.ctrl == msg.ctrl {
			a.notice = fmt.Sprintf("background refresh failed: %v", msg.err)
			return a, waitErr(msg.ctrl)
		}
		return a, nil

	case pollStoppedMsg:
		return a, nil

	case refreshedMsg:
		a.refreshing = false
		if msg.err != nil {
			a.notice = fmt.Sprintf("refresh failed: %v", msg.err)
			return a, nil
		}
		a.notice = ""
		if a.view == ViewTimeline {
			a.applySnapshot(msg.run)
		}
		return a, nil

	case spinner.TickMsg:
		if a.refreshing {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

// applySnapshot replaces the run snapshot and rebuilds the display timeline.
// Normalization sees the full transcript before system entries are filtered,
// and the correlator only walks the appended tail.
func (a *App) applySnapshot(run *models.AgentRun) {
	a.run = run
	normalized := timeline.Normalize(run.Conversation)
	a.correl.Consume(normalized)
	a.entries = timeline.DisplayEntries(normalized)
	a.viewport.SetContent(a.renderTimeline())
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewRunList:
		return a.handleRunListKey(msg)
	case ViewTimeline:
		return a.handleTimelineKey(msg)
	}
	return a, nil
}

func (a *App) handleRunListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.openRun(a.runs[a.selectedIdx].ID)
		}

	case "r":
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleTimelineKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.closeTimeline()
		return a, a.loadRuns

	case "ctrl+c":
		a.closeTimeline()
		return a, tea.Quit

	case "r":
		if a.ctrl != nil && !a.refreshing {
			a.refreshing = true
			return a, tea.Batch(a.spinner.Tick, refreshNow(a.ctrl))
		}

	case "m":
		a.showMeta = !a.showMeta
		a.viewport.SetContent(a.renderTimeline())

	default:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	return a, nil
}

// closeTimeline tears the detail view down. Stopping the controller is
// idempotent, so leaving an already-finished run is a no-op.
func (a *App) closeTimeline() {
	if a.ctrl != nil {
		a.ctrl.Stop()
		a.ctrl = nil
	}
	a.view = ViewRunList
	a.run = nil
	a.entries = nil
	a.correl = nil
	a.notice = ""
	a.refreshing = false
}

func (a *App) View() string {
	switch a.view {
	case ViewRunList:
		return a.viewRunList()
	case ViewTimeline:
		return a.viewTimeline()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	roleUserStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	roleAssistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	roleToolStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	roleUnknownStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("243"))

	codeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	errorPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Padding(0, 1)

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// lines above and below the viewport in the timeline view
const timelineChromeLines = 6

func (a *App) viewRunList() string {
	s := titleStyle.Render("runwatch") + "\n\n"

	if a.err != nil {
		s += statusFailed.Render(fmt.Sprintf("Error: %v", a.err)) + "\n\n"
	}

	if len(a.runs) == 0 {
		s += "No agent runs found.\n"
	} else {
		s += fmt.Sprintf("Agent Runs — %s\n", a.repository)
		s += "──────────────────\n"

		for i, run := range a.runs {
			line := a.formatRunLine(run)
			isSelected := i == a.selectedIdx

			if isSelected {
				line = selectedStyle.Render("▶ " + line)
			} else if !run.Status.Active() {
				line = "  " + dimStyle.Render(line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] watch  [r] refresh  [q] quit")

	return s
}

func (a *App) formatRunLine(run *models.AgentRun) string {
	status := formatStatus(run.Status)
	age := format.RelativeTime(run.CreatedAt)
	title := truncate(run.IssueTitle, 40)
	issue := run.IssueID
	if issue == "" {
		issue = fmt.Sprintf("%s#%d", run.Repository, run.IssueNumber)
	}
	line := fmt.Sprintf("%-24s %s  %-10s it:%-3d %s", issue, status, age, run.Iteration, title)
	if run.PRURL != "" {
		line += "  " + dimStyle.Render("PR ready")
	}
	return line
}

func formatStatus(status models.RunStatus) string {
	switch status {
	case models.RunStatusRunning:
		return statusRunning.Render("● running")
	case models.RunStatusCompleted:
		return statusCompleted.Render("✓ completed")
	case models.RunStatusFailed:
		return statusFailed.Render("✗ failed")
	case models.RunStatusPending:
		return statusPending.Render("○ pending")
	default:
		return string(status)
	}
}

func (a *App) viewTimeline() string {
	if a.run == nil {
		return "No run selected"
	}
	run := a.run

	header := fmt.Sprintf("Run %s", run.ID)
	if run.IssueTitle != "" {
		header = truncate(run.IssueTitle, 60)
	}
	s := titleStyle.Render(header) + "  " + formatStatus(run.Status)
	if a.refreshing {
		s += "  " + a.spinner.View()
	}
	s += "\n"

	s += labelStyle.Render("iterations: ") + fmt.Sprintf("%d", run.Iteration) +
		labelStyle.Render("   tokens: ") + fmt.Sprintf("%d", run.TokensUsed) +
		labelStyle.Render("   tool calls: ") + fmt.Sprintf("%d", run.ToolCallsMade) +
		labelStyle.Render("   elapsed: ") + format.Duration(run.ElapsedSeconds) + "\n"

	if run.PRURL != "" {
		s += labelStyle.Render("PR: ") + run.PRURL + "\n"
	} else if run.BranchName != "" {
		s += labelStyle.Render("branch: ") + run.BranchName + "\n"
	} else {
		s += "\n"
	}

	if a.notice != "" {
		s += noticeStyle.Render(a.notice) + "\n"
	} else {
		s += "\n"
	}

	s += a.viewport.View() + "\n"
	s += helpStyle.Render("[↑/↓] scroll  [r] refresh  [m] metadata  [esc] back  [q] quit")

	return s
}

// renderTimeline flattens the display entries into viewport content.
func (a *App) renderTimeline() string {
	var b strings.Builder

	if a.run != nil && a.run.Error != "" {
		b.WriteString(errorPanelStyle.Render("run error: "+a.run.Error) + "\n\n")
	}

	for i, e := range a.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.renderEntry(e))
	}

	if a.run != nil && a.run.FinalSummary != "" {
		b.WriteString("\n" + roleAssistantStyle.Render("summary") + "\n")
		b.WriteString(a.run.FinalSummary + "\n")
	}

	return b.String()
}

func (a *App) renderEntry(e models.TimelineEntry) string {
	var b strings.Builder

	switch e.Role {
	case models.RoleUser:
		b.WriteString(roleUserStyle.Render("user") + "\n")
		if e.Content != "" {
			b.WriteString(e.Content + "\n")
		}

	case models.RoleAssistant:
		b.WriteString(roleAssistantStyle.Render("assistant") + "\n")
		if e.Content != "" {
			b.WriteString(e.Content + "\n")
		}
		for _, tc := range e.ToolCalls {
			b.WriteString(roleToolStyle.Render("→ "+tc.Name) + "\n")
			b.WriteString(a.renderRendering(render.ToolCallArgs(tc.Arguments)))
		}

	case models.RoleTool:
		name := timeline.UnknownTool
		if a.correl != nil {
			name = a.correl.Resolve(e.ToolCallID)
		}
		r := render.ToolResult(name, e.Content)
		label := "⇠ " + name
		switch r.Status {
		case render.StatusSuccess:
			label += "  " + statusCompleted.Render("ok")
		case render.StatusFailed:
			label += "  " + statusFailed.Render("failed")
		}
		b.WriteString(roleToolStyle.Render(label) + "\n")
		b.WriteString(a.renderRendering(r))

	default:
		b.WriteString(roleUnknownStyle.Render(string(e.Role)) + "\n")
		if e.Content != "" {
			b.WriteString(dimStyle.Render(e.Content) + "\n")
		}
	}

	return b.String()
}

// renderRendering draws a display plan as styled panels. Code segment text
// is stored fence-escaped; boxes aren't fences, so the original text is
// restored for display.
func (a *App) renderRendering(r render.Rendering) string {
	var b strings.Builder

	for _, seg := range r.Segments {
		switch seg.Kind {
		case render.SegmentPath:
			b.WriteString(labelStyle.Render(seg.Text) + "\n")
		case render.SegmentExitCode:
			b.WriteString(dimStyle.Render("exit code: "+seg.Text) + "\n")
		case render.SegmentCode:
			text := strings.TrimRight(format.UnescapeFences(seg.Text), "\n")
			block := text
			if seg.Language != "" && seg.Language != "text" {
				block = dimStyle.Render(seg.Language) + "\n" + text
			}
			b.WriteString(codeStyle.Render(block) + "\n")
		}
	}

	if r.Error != "" {
		b.WriteString(errorPanelStyle.Render("error: "+r.Error) + "\n")
	}

	if r.Metadata != "" {
		if a.showMeta {
			b.WriteString(dimStyle.Render("metadata") + "\n")
			b.WriteString(dimStyle.Render(r.Metadata) + "\n")
		} else {
			b.WriteString(dimStyle.Render("▸ metadata (m to expand)") + "\n")
		}
	}

	return b.String()
}

// Messages

type runsLoadedMsg struct {
	runs []*models.AgentRun
	err  error
}

type runOpenedMsg struct {
	ctrl *poller.Controller
	run  *models.AgentRun
	err  error
}

type runUpdatedMsg struct {
	ctrl *poller.Controller
	run  *models.AgentRun
}

type pollErrMsg struct {
	ctrl *poller.Controller
	err  error
}

type pollStoppedMsg struct{}

type refreshedMsg struct {
	run *models.AgentRun
	err error
}

// Commands

func (a *App) loadRuns() tea.Msg {
	runs, err := a.source.ListRuns(context.Background(), a.repository)
	return runsLoadedMsg{runs: runs, err: err}
}

// openRun starts a dedicated polling controller for the selected run. The
// initial fetch is foreground: an error here is a blocking one.
func (a *App) openRun(id string) tea.Cmd {
	return func() tea.Msg {
		ctrl := poller.New(a.source, a.interval)
		run, err := ctrl.Start(context.Background(), id)
		if err != nil {
			return runOpenedMsg{err: err}
		}
		return runOpenedMsg{ctrl: ctrl, run: run}
	}
}

// waitUpdate bridges the controller's update channel into the message loop.
func waitUpdate(ctrl *poller.Controller) tea.Cmd {
	return func() tea.Msg {
		run, ok := <-ctrl.Updates()
		if !ok {
			return pollStoppedMsg{}
		}
		return runUpdatedMsg{ctrl: ctrl, run: run}
	}
}

func waitErr(ctrl *poller.Controller) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-ctrl.Errors()
		if !ok {
			return pollStoppedMsg{}
		}
		return pollErrMsg{ctrl: ctrl, err: err}
	}
}

func refreshNow(ctrl *poller.Controller) tea.Cmd {
	return func() tea.Msg {
		run, err := ctrl.RefreshNow(context.Background())
		return refreshedMsg{run: run, err: err}
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
