package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/unklstewy/santa-scope/pkg/canvas"
	"github.com/unklstewy/santa-scope/pkg/chat"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	recenterStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	captionStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("226"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	santaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// layerStyles colours braille cells by the topmost layer drawn into them.
var layerStyles = map[canvas.Layer]lipgloss.Style{
	canvas.LayerNone:    lipgloss.NewStyle(),
	canvas.LayerLimb:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	canvas.LayerLand:    lipgloss.NewStyle().Foreground(lipgloss.Color("66")),
	canvas.LayerFuture:  lipgloss.NewStyle().Foreground(lipgloss.Color("136")),
	canvas.LayerVisited: lipgloss.NewStyle().Foreground(lipgloss.Color("221")).Bold(true),
	canvas.LayerPulse:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	canvas.LayerMarker:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// oceanBackground fills cells on the globe disc.
const oceanBackground = lipgloss.Color("234")

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	snap := m.engine.State().Snapshot()

	header := titleStyle.Render("🎅 Santa Tracker")
	if snap.Current != nil {
		header += " " + labelStyle.Render(fmt.Sprintf("stop %d of %d", snap.Index+1, len(snap.Route)))
	}

	var side string
	if m.chatMode {
		side = m.renderChat()
	} else {
		side = m.renderStatus(snap)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderGlobe(), " ", side)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

// renderGlobe colours the braille raster, batching runs of equal style.
func (m model) renderGlobe() string {
	if !m.haveFrame {
		blank := strings.Repeat(" ", m.cols)
		lines := make([]string, m.rows)
		for i := range lines {
			lines[i] = blank
		}
		if m.rows > 0 {
			msg := "Loading the globe..."
			pad := max(0, (m.cols-len(msg))/2)
			lines[m.rows/2] = strings.Repeat(" ", pad) + msg
		}
		return strings.Join(lines, "\n")
	}

	var out strings.Builder
	var run strings.Builder
	for row := 0; row < m.rows; row++ {
		if row > 0 {
			out.WriteByte('\n')
		}
		var cur canvas.Cell
		flush := func() {
			if run.Len() == 0 {
				return
			}
			out.WriteString(cellStyle(cur).Render(run.String()))
			run.Reset()
		}
		for col := 0; col < m.cols; col++ {
			c := m.raster.Cell(col, row)
			if col > 0 && (c.Layer != cur.Layer || c.Inside != cur.Inside) {
				flush()
			}
			cur = c
			run.WriteRune(c.Rune)
		}
		flush()
	}
	return out.String()
}

func cellStyle(c canvas.Cell) lipgloss.Style {
	s := layerStyles[c.Layer]
	if c.Inside {
		s = s.Background(oceanBackground)
	}
	return s
}

func (m model) renderStatus(snap tracker.Snapshot) string {
	width := panelWidth - 4
	var b strings.Builder

	b.WriteString(headerStyle.Render("Current location"))
	b.WriteString("\n")
	if snap.Current == nil {
		b.WriteString(labelStyle.Render("No route loaded"))
		b.WriteString("\n")
	} else {
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(snap.Current.Name))
		b.WriteString("\n")
		if snap.Current.ScheduledLabel != "" {
			b.WriteString(labelStyle.Render("Arrival  ") + snap.Current.ScheduledLabel + "\n")
		}
		b.WriteString(labelStyle.Render("Position ") +
			fmt.Sprintf("%.2f°, %.2f°", snap.Current.Lat, snap.Current.Lng) + "\n")
		if snap.Next != nil && len(snap.Route) > 1 {
			b.WriteString(labelStyle.Render("Next     ") + snap.Next.Name + "\n")
			b.WriteString(labelStyle.Render("         ") +
				fmt.Sprintf("%s km, heading %03.0f°", humanize.Comma(int64(snap.DistanceNextKm)), snap.HeadingDeg) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(captionStyle.Width(width).Render(fmt.Sprintf("“%s”", snap.Caption.Text)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Sleigh telemetry"))
	b.WriteString("\n")
	t := snap.Telemetry
	b.WriteString(labelStyle.Render("Speed     ") + humanize.Comma(int64(t.SpeedKmh)) + " km/h\n")
	b.WriteString(labelStyle.Render("Delivered ") + humanize.Comma(t.Delivered) + " gifts\n")
	b.WriteString(labelStyle.Render("Outside   ") + fmt.Sprintf("%.1f °C", t.TemperatureC) + "\n")
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Camera"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Mode  ") + snap.Follow.String() + "\n")
	b.WriteString(labelStyle.Render("Zoom  ") + fmt.Sprintf("%.0f", snap.Camera.Scale) + "\n")
	if snap.RecenterVisible {
		b.WriteString("\n")
		b.WriteString(recenterStyle.Render("[c] Back to Santa"))
	}

	return panelStyle.Width(panelWidth - 2).Height(m.rows - 2).Render(b.String())
}

func (m model) renderChat() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Chat with Santa"))
	b.WriteString("\n")
	b.WriteString(m.history.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return panelStyle.Width(panelWidth - 2).Height(m.rows - 2).Render(b.String())
}

// renderHistory formats the conversation, with the message still waiting
// for a reply appended at the end.
func renderHistory(msgs []chat.Message, width int, pending string) string {
	wrap := lipgloss.NewStyle().Width(max(10, width-1))
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString(userStyle.Render("You"))
		case chat.RoleSanta:
			b.WriteString(santaStyle.Render("Santa"))
		default:
			b.WriteString(labelStyle.Render("•"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(msg.Text))
		b.WriteString("\n\n")
	}
	if pending != "" {
		b.WriteString(userStyle.Render("You"))
		b.WriteString("\n")
		b.WriteString(wrap.Render(pending))
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Santa is typing..."))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) renderFooter() string {
	if m.status != "" {
		return statusStyle.Render(m.status)
	}
	if m.chatMode {
		return helpStyle.Render("enter: send • ctrl+r: new chat • tab/esc: globe • ctrl+c: quit")
	}
	return helpStyle.Render("←→↑↓/drag: spin • +/-/wheel: zoom • c: back to Santa • r: reload route • tab: chat • q: quit")
}
