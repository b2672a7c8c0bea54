// Package dashboard provides the Bubble Tea dashboard for enrollments, events, and progress history.
package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/madrasa/internal/api"
	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/progress"
	"github.com/verte-zerg/madrasa/internal/report"
)

const (
	tabEnrollments = iota
	tabEvents
	tabHistory
)

const (
	requestTimeout = 20 * time.Second
	detailBarWidth = 30
	historyLimit   = 60
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#2E8B57"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	detailStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// Source is the backend data the dashboard reads and writes.
type Source interface {
	MyEnrollments(ctx context.Context) ([]model.Enrollment, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	RSVP(ctx context.Context, eventID int64, status string) error
}

// History records and reads progress snapshots.
type History interface {
	InsertSnapshots(ctx context.Context, snaps []model.Snapshot) error
	ListSnapshots(ctx context.Context, filter model.HistoryFilter) ([]model.Snapshot, error)
}

type enrollmentsMsg struct {
	enrollments []model.Enrollment
	fetchedAt   time.Time
	err         error
}

type eventsMsg struct {
	events []model.Event
	err    error
}

type historyMsg struct {
	enrollmentID int64
	snaps        []model.Snapshot
	err          error
}

type rsvpMsg struct {
	eventID int64
	status  string
	err     error
}

// Model implements the Bubble Tea dashboard.
type Model struct {
	source  Source
	history History
	policy  progress.Policy
	now     func() time.Time

	tabs      []string
	activeTab int

	report      report.Report
	events      []model.Event
	snaps       []model.Snapshot
	historyID   int64
	lastFetched time.Time
	loading     int

	enrollTable table.Model
	eventTable  table.Model
	historyView viewport.Model

	errMsg    string
	noticeMsg string
	signedOut bool

	width  int
	height int
}

// NewModel constructs a dashboard model.
func NewModel(source Source, history History, p progress.Policy) *Model {
	return &Model{
		source:      source,
		history:     history,
		policy:      p,
		now:         time.Now,
		tabs:        []string{"Enrollments", "Events", "History"},
		enrollTable: newTable(enrollmentColumns(0)),
		eventTable:  newTable(eventColumns(0)),
		historyView: viewport.New(0, 0),
	}
}

// SignedOut reports whether the session ended with a 401 while the dashboard ran.
func (m *Model) SignedOut() bool {
	return m.signedOut
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.refresh()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case enrollmentsMsg:
		m.doneLoading()
		if m.handleErr(msg.err) {
			return m, nil
		}
		m.report = report.Build(msg.enrollments, m.policy)
		m.lastFetched = msg.fetchedAt
		m.enrollTable.SetRows(enrollmentRows(m.report))
		return m, m.recordSnapshots(msg.fetchedAt)
	case eventsMsg:
		m.doneLoading()
		if m.handleErr(msg.err) {
			return m, nil
		}
		m.events = msg.events
		m.eventTable.SetRows(eventRows(m.events, m.now()))
		return m, nil
	case historyMsg:
		if m.handleErr(msg.err) {
			return m, nil
		}
		m.historyID = msg.enrollmentID
		m.snaps = msg.snaps
		m.renderHistory()
		return m, nil
	case rsvpMsg:
		if m.handleErr(msg.err) {
			return m, nil
		}
		m.noticeMsg = fmt.Sprintf("RSVP saved: %s", msg.status)
		m.loading++
		return m, m.loadEvents()
	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
		return m, tea.Quit
	}
	switch msg.String() {
	case "left", "h":
		return m, m.moveTab(-1)
	case "right", "l", "tab":
		return m, m.moveTab(1)
	case "r":
		m.errMsg = ""
		m.noticeMsg = ""
		return m, m.refresh()
	}

	switch m.activeTab {
	case tabEnrollments:
		if msg.String() == "enter" {
			if row, ok := m.selectedRow(); ok {
				if row.Enrollment.ID == 0 {
					m.noticeMsg = "No history for an enrollment without an id."
					return m, nil
				}
				m.activeTab = tabHistory
				m.focusActive()
				return m, m.loadHistory(row.Enrollment.ID)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.enrollTable, cmd = m.enrollTable.Update(msg)
		return m, cmd
	case tabEvents:
		if status, ok := rsvpKeys[msg.String()]; ok {
			if ev, ok := m.selectedEvent(); ok {
				m.noticeMsg = ""
				return m, m.sendRSVP(ev.ID, status)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.eventTable, cmd = m.eventTable.Update(msg)
		return m, cmd
	default:
		var cmd tea.Cmd
		m.historyView, cmd = m.historyView.Update(msg)
		return m, cmd
	}
}

var rsvpKeys = map[string]string{
	"y": model.RSVPGoing,
	"m": model.RSVPMaybe,
	"n": model.RSVPNotGoing,
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) handleErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, api.ErrUnauthorized) {
		m.signedOut = true
		m.errMsg = "Session expired. Run: madrasa login"
		return true
	}
	m.errMsg = err.Error()
	return true
}

func (m *Model) doneLoading() {
	if m.loading > 0 {
		m.loading--
	}
}

func (m *Model) refresh() tea.Cmd {
	m.loading += 2
	return tea.Batch(m.loadEnrollments(), m.loadEvents())
}

func (m *Model) loadEnrollments() tea.Cmd {
	source, now := m.source, m.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		enrollments, err := source.MyEnrollments(ctx)
		return enrollmentsMsg{enrollments: enrollments, fetchedAt: now(), err: err}
	}
}

func (m *Model) loadEvents() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		events, err := source.ListEvents(ctx)
		return eventsMsg{events: events, err: err}
	}
}

func (m *Model) loadHistory(enrollmentID int64) tea.Cmd {
	if m.history == nil {
		return nil
	}
	history := m.history
	return func() tea.Msg {
		snaps, err := history.ListSnapshots(context.Background(), model.HistoryFilter{EnrollmentID: enrollmentID, Last: historyLimit})
		return historyMsg{enrollmentID: enrollmentID, snaps: snaps, err: err}
	}
}

func (m *Model) recordSnapshots(at time.Time) tea.Cmd {
	if m.history == nil {
		return nil
	}
	history, snaps := m.history, m.report.Snapshots(at)
	return func() tea.Msg {
		if err := history.InsertSnapshots(context.Background(), snaps); err != nil {
			return historyMsg{err: fmt.Errorf("failed to record progress: %w", err)}
		}
		return nil
	}
}

func (m *Model) sendRSVP(eventID int64, status string) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return rsvpMsg{eventID: eventID, status: status, err: source.RSVP(ctx, eventID, status)}
	}
}

func (m *Model) selectedRow() (report.Row, bool) {
	idx := m.enrollTable.Cursor()
	if idx < 0 || idx >= len(m.report.Rows) {
		return report.Row{}, false
	}
	return m.report.Rows[idx], true
}

func (m *Model) selectedEvent() (model.Event, bool) {
	idx := m.eventTable.Cursor()
	events := sortedEvents(m.events)
	if idx < 0 || idx >= len(events) {
		return model.Event{}, false
	}
	return events[idx], true
}

func (m *Model) moveTab(delta int) tea.Cmd {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.focusActive()
	if m.activeTab == tabHistory && m.historyID == 0 {
		if row, ok := m.selectedRow(); ok && row.Enrollment.ID != 0 {
			return m.loadHistory(row.Enrollment.ID)
		}
	}
	return nil
}

func (m *Model) focusActive() {
	m.enrollTable.Blur()
	m.eventTable.Blur()
	switch m.activeTab {
	case tabEnrollments:
		m.enrollTable.Focus()
	case tabEvents:
		m.eventTable.Focus()
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" || m.noticeMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	detailHeight := lipgloss.Height(detailStyle.Render("x\nx"))
	m.enrollTable.SetColumns(enrollmentColumns(m.width))
	m.enrollTable.SetWidth(m.width)
	m.enrollTable.SetHeight(maxInt(1, bodyHeight-detailHeight-1))
	m.eventTable.SetColumns(eventColumns(m.width))
	m.eventTable.SetWidth(m.width)
	m.eventTable.SetHeight(maxInt(1, bodyHeight-1))
	m.historyView.Width = m.width
	m.historyView.Height = bodyHeight
	m.renderHistory()
}

func (m *Model) renderHeader() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	tabs := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return tabs + "\n" + headerStyle.Render(truncateLine(m.statusLine(), m.width))
}

func (m *Model) statusLine() string {
	synced := "never"
	if !m.lastFetched.IsZero() {
		synced = humanize.RelTime(m.lastFetched, m.now(), "ago", "from now")
	}
	s := m.report.Summary
	line := fmt.Sprintf("Enrollments: %d  Mean: %d%%  Fallback: %s  Synced: %s", s.Total, s.MeanProgress, m.policy, synced)
	if m.loading > 0 {
		line += "  Loading..."
	}
	return line
}

func (m *Model) renderBody() string {
	switch m.activeTab {
	case tabEnrollments:
		if len(m.report.Rows) == 0 {
			return "No enrollments found."
		}
		return m.enrollTable.View() + "\n" + m.renderDetail()
	case tabEvents:
		if len(m.events) == 0 {
			return "No upcoming events."
		}
		return m.eventTable.View()
	default:
		return m.historyView.View()
	}
}

func (m *Model) renderDetail() string {
	row, ok := m.selectedRow()
	if !ok {
		return ""
	}
	color := row.Result.Band.Color()
	bar := lipgloss.NewStyle().Foreground(color).Render(report.ProgressBar(row.Result.Progress, detailBarWidth))
	band := lipgloss.NewStyle().Foreground(color).Bold(true).Render(row.Result.Band.String())
	line1 := fmt.Sprintf("%s  %s %d%%  %s", row.Enrollment.CourseName, bar, row.Result.Progress, band)
	basis := "attendance"
	if progress.IsMemorization(row.Enrollment) {
		basis = "completion"
	}
	line2 := fmt.Sprintf("Teacher: %s  Basis: %s  Enter: history", dash(row.Enrollment.TeacherName), basis)
	return detailStyle.Render(line1 + "\n" + line2)
}

func (m *Model) renderHistory() {
	if m.width <= 0 {
		return
	}
	if m.historyID == 0 {
		m.historyView.SetContent("Select an enrollment and press Enter to see its history.")
		return
	}
	var buf bytes.Buffer
	if err := report.RenderHistory(&buf, m.snaps, m.now()); err != nil {
		m.historyView.SetContent(fmt.Sprintf("Failed to render history: %v", err))
		return
	}
	m.historyView.SetContent(strings.TrimRight(buf.String(), "\n"))
	m.historyView.GotoTop()
}

func (m *Model) renderFooter() string {
	help := "Tabs: left/right  Move: up/down  Refresh: r  Quit: q"
	switch m.activeTab {
	case tabEnrollments:
		help = "Tabs: left/right  Move: up/down  History: enter  Refresh: r  Quit: q"
	case tabEvents:
		help = "Tabs: left/right  Move: up/down  RSVP: y/m/n  Refresh: r  Quit: q"
	}
	out := headerStyle.Render(help)
	if m.errMsg != "" {
		out += "\n" + errorStyle.Render(truncateLine(m.errMsg, m.width))
	} else if m.noticeMsg != "" {
		out += "\n" + noticeStyle.Render(truncateLine(m.noticeMsg, m.width))
	}
	return out
}

func newTable(cols []table.Column) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func enrollmentColumns(width int) []table.Column {
	fixed := 12 + 10 + 9 + 22
	name := maxInt(16, width-fixed-5)
	return []table.Column{
		{Title: "Course", Width: name},
		{Title: "Type", Width: 12},
		{Title: "Status", Width: 10},
		{Title: "Progress", Width: 9},
		{Title: "", Width: 22},
	}
}

func enrollmentRows(r report.Report) []table.Row {
	rows := make([]table.Row, 0, len(r.Rows))
	for _, row := range r.Rows {
		status := row.Enrollment.Status
		if status == "" {
			status = model.StatusActive
		}
		rows = append(rows, table.Row{
			row.Enrollment.CourseName,
			dash(progress.Category(row.Enrollment)),
			status,
			strconv.Itoa(row.Result.Progress) + "%",
			report.ProgressBar(row.Result.Progress, 20),
		})
	}
	return rows
}

func eventColumns(width int) []table.Column {
	fixed := 24 + 16 + 10
	title := maxInt(16, width-fixed-4)
	return []table.Column{
		{Title: "Event", Width: title},
		{Title: "When", Width: 24},
		{Title: "Where", Width: 16},
		{Title: "RSVP", Width: 10},
	}
}

func eventRows(events []model.Event, now time.Time) []table.Row {
	sorted := sortedEvents(events)
	rows := make([]table.Row, 0, len(sorted))
	for _, e := range sorted {
		when := "-"
		if !e.StartsAt.IsZero() {
			when = humanize.RelTime(e.StartsAt, now, "ago", "from now")
		}
		rows = append(rows, table.Row{e.Title, when, dash(e.Location), dash(e.MyRSVP)})
	}
	return rows
}

func sortedEvents(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
