package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("250"))

	faintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	connectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	totalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	logStyles = map[domain.LogType]lipgloss.Style{
		domain.LogInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		domain.LogSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		domain.LogWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.LogError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	agentStyles = map[domain.AgentState]lipgloss.Style{
		domain.AgentIdle:         faintStyle,
		domain.AgentInitializing: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.AgentActive:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		domain.AgentError:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// brandStyle renders text in a store's colors.
func brandStyle(store string) lipgloss.Style {
	b := viewmodel.BrandFor(store)
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(b.Strong)).
		Background(lipgloss.Color(b.Light)).
		Padding(0, 1)
}

// View renders the whole screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.taskLine())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderAgents(m.snap.AgentStatus))
	b.WriteString("\n\n")

	if m.snap.CurrentURL != "" {
		view := viewmodel.BuildBrowserView(m.snap.CurrentURL, m.snap.ShoppingList)
		b.WriteString(panelStyle.Width(max(m.width-2, minLogWidth)).Render(renderBrowser(view)))
		b.WriteString("\n")
	}

	b.WriteString(sectionStyle.Render("Agent console"))
	b.WriteString("\n")
	b.WriteString(m.logs.View())
	b.WriteString("\n\n")

	b.WriteString(renderResults(viewmodel.BuildResults(m.snap.ShoppingList, m.group)))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("enter submit • ctrl+x stop • tab group by store/category • pgup/pgdn scroll • esc quit"))
	return b.String()
}

func (m Model) header() string {
	conn := disconnectedStyle.Render("● offline")
	if m.snap.Connected {
		conn = connectedStyle.Render("● live")
	}
	return titleStyle.Render("Shopping Assistant") + "  " + conn
}

func (m Model) taskLine() string {
	task := m.snap.CurrentTask
	if task == "" {
		task = domain.TaskInitializing
	}
	if m.snap.Processing {
		return m.spinner.View() + " " + task
	}
	if domain.IsErrorTask(task) {
		return logStyles[domain.LogError].Render(task)
	}
	return faintStyle.Render(task)
}

func renderAgents(status domain.AgentStatusMap) string {
	parts := make([]string, 0, len(domain.AgentNames))
	for _, name := range domain.AgentNames {
		state, ok := status[name]
		if !ok {
			continue
		}
		style, ok := agentStyles[state]
		if !ok {
			style = faintStyle
		}
		parts = append(parts, style.Render(viewmodel.AgentLabel(name)))
	}
	if len(parts) == 0 {
		return faintStyle.Render("No agents reported yet")
	}
	return strings.Join(parts, faintStyle.Render(" · "))
}

func renderLogs(entries []domain.LogEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return faintStyle.Render("Waiting for a query...")
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		style, ok := logStyles[e.Type]
		if !ok {
			style = logStyles[domain.LogInfo]
		}
		lines[i] = faintStyle.Render(viewmodel.FormatLogTime(e, loc)) + " " + style.Render(e.Message)
	}
	return strings.Join(lines, "\n")
}

func renderBrowser(v viewmodel.BrowserView) string {
	var b strings.Builder
	b.WriteString(brandStyle(v.ActiveStore).Render(v.ActiveStore))
	b.WriteString(" ")
	b.WriteString(v.Title)
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(v.URL))
	for _, item := range v.Items {
		fmt.Fprintf(&b, "\n  %s  %s", item.Name, viewmodel.FormatPrice(item.Price))
	}
	return b.String()
}

func renderResults(r viewmodel.Results) string {
	if r.Empty() {
		return faintStyle.Render("No results yet")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", sectionStyle.Render(r.Title), faintStyle.Render(fmt.Sprintf("(%d items, by %s)", r.ItemCount, r.GroupedBy)))
	for _, g := range r.Groups {
		name := g.Name
		if r.GroupedBy == viewmodel.GroupByStore && name != viewmodel.OtherGroup {
			name = brandStyle(name).Render(name)
		} else {
			name = sectionStyle.Render(name)
		}
		fmt.Fprintf(&b, "%s %s\n", name, faintStyle.Render(viewmodel.FormatPrice(g.Subtotal)))
		for _, line := range g.Lines {
			fmt.Fprintf(&b, "  %-32s %-12s %10s\n", line.Item.Name, viewmodel.FormatQuantity(line.Item), viewmodel.FormatPrice(line.Total))
		}
	}
	fmt.Fprintf(&b, "%s  [%s]", totalStyle.Render("Total "+viewmodel.FormatPrice(r.GrandTotal)), r.CheckoutLabel)
	return b.String()
}
