package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"traceview/internal/types"
)

var (
	styleStatusLive  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleStatusWait  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleStatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleBadge       = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true)
	styleSelected    = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	styleDim         = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleRoleUser    = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	styleRoleAgent   = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	styleRoleTool    = lipgloss.NewStyle().Foreground(lipgloss.Color("180")).Bold(true)
	styleHotkeys     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	var b strings.Builder
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	sidebar := m.renderSidebar()
	content := m.viewport.View()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", content))
	b.WriteString("\n")
	b.WriteString(styleHotkeys.Render("j/k traces  enter view  a all  G latest  p follow  c clear  y copy  q quit"))
	return b.String()
}

func (m Model) statusLine() string {
	indicator := m.connIndicator()
	blocks := m.session.Reconciler.Size()
	line := fmt.Sprintf("%s  %d blocks", indicator, blocks)
	if pending := m.follow.PendingNew(); pending > 0 {
		line += "  " + styleBadge.Render(fmt.Sprintf("%d new ↓", pending))
	}
	if m.status != "" {
		line += "  " + styleDim.Render(m.status)
	}
	return line
}

func (m Model) connIndicator() string {
	if m.streamDead {
		return styleStatusError.Render("● error")
	}
	state := m.session.ConnState()
	switch state.Phase {
	case types.ConnOpen:
		return styleStatusLive.Render("● live")
	case types.ConnConnecting, types.ConnReconnecting:
		return styleStatusWait.Render(m.loader.View() + "connecting")
	case types.ConnClosed:
		return styleStatusError.Render("● closed")
	default:
		return styleStatusWait.Render("● idle")
	}
}

func (m Model) renderSidebar() string {
	width := m.sidebarWidth()
	height := m.viewport.Height
	lines := make([]string, 0, height)
	for i, group := range m.groups {
		if len(lines) >= height {
			break
		}
		label := shortID(group.ID)
		if !group.StartTime.IsZero() {
			label += " " + group.StartTime.Local().Format("15:04:05")
		}
		label = runewidth.Truncate(label, width-2, "…")
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
			label = styleSelected.Render(label)
		} else if group.ID == m.selectedTraceID {
			label = styleRoleUser.Render(label)
		}
		lines = append(lines, prefix+label)
	}
	if len(lines) == 0 {
		lines = append(lines, styleDim.Render("  no traces yet"))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	gap := width - lipgloss.Width(line)
	if gap <= 0 {
		return line
	}
	return line + strings.Repeat(" ", gap)
}

// renderTranscript renders blocks for the viewport; group separation comes
// from the flattened order itself, not from re-sorting here.
func renderTranscript(blocks []types.Block, width int) string {
	if len(blocks) == 0 {
		return styleDim.Render("Waiting for trace activity.")
	}
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	lastTrace := ""
	for _, block := range blocks {
		if block.TraceID != lastTrace {
			if lastTrace != "" {
				b.WriteString("\n")
			}
			b.WriteString(styleDim.Render("── trace " + shortID(block.TraceID) + " ──"))
			b.WriteString("\n")
			lastTrace = block.TraceID
		}
		b.WriteString(renderBlockHeader(block))
		b.WriteString("\n")
		b.WriteString(renderBlockBody(block, width))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBlockHeader(block types.Block) string {
	style := styleRoleTool
	switch block.Role {
	case "user":
		style = styleRoleUser
	case "assistant":
		style = styleRoleAgent
	}
	header := style.Render(block.Role)
	if block.Model != "" {
		header += styleDim.Render(" · " + block.Model)
	}
	if !block.Timestamp.IsZero() {
		header += styleDim.Render(" · " + block.Timestamp.Local().Format("15:04:05"))
	}
	return header
}

func renderBlockBody(block types.Block, width int) string {
	switch block.Role {
	case "user", "assistant":
		return renderMarkdown(block.Content, width)
	default:
		// Tool payloads are shown verbatim, minus any control sequences.
		text := xansi.Strip(block.Content)
		return xansi.Hardwrap(strings.TrimRight(text, "\n"), width, true)
	}
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
