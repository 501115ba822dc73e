package audit

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Lines per item in the list view (title + subtitle + blank separator).
const itemHeight = 3

const (
	panePending = iota
	paneAnalyzed
)

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

// Analyzer previews the analysis of a pending posting. Nothing is delivered
// or written to the ledger.
type Analyzer interface {
	Analyze(ctx context.Context, p model.Posting) (string, error)
}

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>|）)」]+`)

// previewDoneMsg is sent when an async analysis preview completes.
type previewDoneMsg struct {
	index    int
	analysis string
	err      error
}

type browserModel struct {
	pending       []Pending
	entries       []Entry
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	view           viewState
	detailViewport viewport.Model

	analyzer       Analyzer
	previews       map[int]string
	previewLoading bool
	previewError   string
	frame          int
}

func (m browserModel) Init() tea.Cmd {
	return nil
}

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case previewDoneMsg:
		m.previewLoading = false
		if msg.err != nil {
			m.previewError = fmt.Sprintf("preview failed: %v", msg.err)
		} else {
			m.previewError = ""
			m.previews[msg.index] = msg.analysis
		}
		if m.view == viewDetail {
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case spinnerTickMsg:
		if !m.previewLoading {
			return m, nil
		}
		m.frame++
		if m.view == viewDetail {
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, spinnerTick()

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browserModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "left", "right", "h", "l":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == panePending {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m browserModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		if u := urlPattern.FindString(m.detailText()); u != "" {
			openURL(u)
		}
		return m, nil
	case "p":
		if m.canPreview() {
			m.previewLoading = true
			m.previewError = ""
			m.detailViewport.SetContent(m.renderDetail())
			return m, tea.Batch(m.previewCmd(m.leftCursor), spinnerTick())
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m browserModel) canPreview() bool {
	if m.analyzer == nil || m.previewLoading || m.activePane != panePending || len(m.pending) == 0 {
		return false
	}
	_, done := m.previews[m.leftCursor]
	return !done
}

func (m browserModel) previewCmd(index int) tea.Cmd {
	analyzer := m.analyzer
	p := m.pending[index].Posting
	return func() tea.Msg {
		analysis, err := analyzer.Analyze(context.Background(), p)
		return previewDoneMsg{index: index, analysis: analysis, err: err}
	}
}

func (m *browserModel) moveCursor(delta int) {
	if m.activePane == panePending {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.pending)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.entries)-1, 0))
	}
}

func (m *browserModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == panePending {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * itemHeight
	cursorBottom := cursorTop + itemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m browserModel) openDetailView() (tea.Model, tea.Cmd) {
	if m.activePane == panePending && len(m.pending) == 0 {
		return m, nil
	}
	if m.activePane == paneAnalyzed && len(m.entries) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.previewError = ""
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *browserModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *browserModel) recalcContent() {
	m.leftViewport.SetContent(renderPending(m.pending, m.leftCursor, m.activePane == panePending, m.leftViewport.Width))
	m.rightViewport.SetContent(renderEntries(m.entries, m.rightCursor, m.activePane == paneAnalyzed, m.rightViewport.Width))
}

func (m browserModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browserModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" Pending (%d)", len(m.pending))
	rightHeader := fmt.Sprintf(" Analyzed (%d)", len(m.entries))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == panePending {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %d pending | %d analyzed    Tab switch  j/k cursor  Enter detail  q quit",
		len(m.pending), len(m.entries))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m browserModel) viewDetail() string {
	title := detailTitleStyle.Render("Analyzed Company")
	if m.activePane == panePending {
		title = detailTitleStyle.Render("Pending Posting")
	}

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open link  esc/backspace back  ↑/↓ scroll  q quit"
	if m.canPreview() {
		statusText = " p preview analysis  o open link  esc/backspace back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

// detailText is the raw body shown in the detail view, used for link lookup.
func (m browserModel) detailText() string {
	if m.activePane == panePending {
		if len(m.pending) == 0 {
			return ""
		}
		return m.pending[m.leftCursor].Posting.Text + "\n" + m.previews[m.leftCursor]
	}
	if len(m.entries) == 0 {
		return ""
	}
	return m.entries[m.rightCursor].Analysis
}

func (m browserModel) renderDetail() string {
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-runewidth.StringWidth(label), 3))
		return dividerStyle.Render(label + fill)
	}

	if m.activePane == paneAnalyzed {
		if len(m.entries) == 0 {
			return ""
		}
		e := m.entries[m.rightCursor]
		addField("Key", string(e.Key))
		addField("Analyzed At", e.Timestamp)
		b.WriteByte('\n')
		b.WriteString(divider("── Analysis ") + "\n\n")
		b.WriteString(bodyStyle.Render(runewidth.Wrap(e.Analysis, wrapWidth)) + "\n")
		return b.String()
	}

	if len(m.pending) == 0 {
		return ""
	}
	p := m.pending[m.leftCursor]
	if p.HasKey {
		addField("Key", string(p.Key))
	} else {
		addField("Key", "(no identity, will be skipped)")
	}
	if p.Excluded {
		addField("Status", "excluded by filter")
	}
	addField("Position", fmt.Sprintf("%d", p.Posting.Index+1))
	b.WriteByte('\n')
	b.WriteString(divider("── Posting ") + "\n\n")
	b.WriteString(bodyStyle.Render(runewidth.Wrap(p.Posting.Text, wrapWidth)) + "\n")

	if preview, ok := m.previews[m.leftCursor]; ok {
		b.WriteByte('\n')
		b.WriteString(divider("── Preview (not saved) ") + "\n\n")
		b.WriteString(bodyStyle.Render(runewidth.Wrap(preview, wrapWidth)) + "\n")
	} else if m.previewLoading {
		b.WriteByte('\n')
		b.WriteString(renderSpinner(m.frame) + hintStyle.Render(" analyzing company...") + "\n")
	} else if m.analyzer != nil && p.HasKey {
		b.WriteByte('\n')
		b.WriteString(hintStyle.Render("  press p to preview the analysis") + "\n")
	}

	if m.previewError != "" {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render("⚠ "+m.previewError) + "\n")
	}

	return b.String()
}

func renderPending(items []Pending, cursor int, isActive bool, width int) string {
	if len(items) == 0 {
		return "  (nothing pending)"
	}

	var b strings.Builder
	next := true
	for i, p := range items {
		status := "queued"
		switch {
		case !p.HasKey:
			status = "no identity"
		case p.Excluded:
			status = "excluded"
		case next:
			status = "next"
			next = false
		}
		first, _, _ := strings.Cut(p.Posting.Text, "\n")
		writeItem(&b, p.Label(), fmt.Sprintf("%s · %s", status, first), isActive && i == cursor, width)
		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderEntries(entries []Entry, cursor int, isActive bool, width int) string {
	if len(entries) == 0 {
		return "  (ledger is empty)"
	}

	var b strings.Builder
	for i, e := range entries {
		writeItem(&b, string(e.Key), e.Timestamp, isActive && i == cursor, width)
		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func writeItem(b *strings.Builder, title, subtitle string, selected bool, width int) {
	titleSt := itemTitleStyle
	subtitleSt := itemSubtitleStyle
	prefix := "  "
	if selected {
		titleSt = selectedTitleStyle
		subtitleSt = selectedSubtitleStyle
		prefix = "> "
	}
	limit := max(width-2, 10)

	b.WriteString(prefix)
	b.WriteString(titleSt.Render(runewidth.Truncate(title, limit, "…")))
	b.WriteByte('\n')
	b.WriteString(prefix)
	b.WriteString(subtitleSt.Render(runewidth.Truncate(subtitle, limit, "…")))
	b.WriteByte('\n')
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

func newBrowserModel(entries []Entry, pending []Pending, analyzer Analyzer) browserModel {
	return browserModel{
		pending:  pending,
		entries:  entries,
		analyzer: analyzer,
		previews: map[int]string{},
	}
}

// RunLedgerBrowser launches the split-pane ledger browser: pending postings
// on the left, analyzed companies on the right. analyzer may be nil; when
// set, 'p' previews the analysis of a pending posting without saving it.
func RunLedgerBrowser(entries []Entry, pending []Pending, analyzer Analyzer) error {
	p := tea.NewProgram(newBrowserModel(entries, pending, analyzer), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
