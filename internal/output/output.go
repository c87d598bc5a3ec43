// Package output renders session data as colored lines and tables for the
// headless CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

// UI provides colored output.
type UI struct {
	Verbose  bool
	Out      io.Writer
	ErrOut   io.Writer
	Location *time.Location
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	faint         = color.New(color.Faint).SprintFunc()
	bold          = color.New(color.Bold).SprintFunc()
)

// AgentStateColor colors an agent state.
func AgentStateColor(state domain.AgentState) string {
	s := string(state)
	switch state {
	case domain.AgentActive:
		return green(s)
	case domain.AgentInitializing:
		return yellow(s)
	case domain.AgentError:
		return red(s)
	default:
		return faint(s)
	}
}

// TaskColor colors a current-task label by its meaning.
func TaskColor(task string) string {
	switch {
	case task == domain.TaskCompleted:
		return green(task)
	case task == domain.TaskStoppedByUser:
		return yellow(task)
	case domain.IsErrorTask(task):
		return red(task)
	default:
		return cyan(task)
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

// Log prints one agent console line with its time of day.
func (u *UI) Log(entry domain.LogEntry) {
	ts := faint(viewmodel.FormatLogTime(entry, u.Location))
	switch entry.Type {
	case domain.LogSuccess:
		fmt.Fprintf(u.Out, "%s %s %s\n", ts, successPrefix, entry.Message)
	case domain.LogWarning:
		fmt.Fprintf(u.Out, "%s %s %s\n", ts, warningPrefix, entry.Message)
	case domain.LogError:
		fmt.Fprintf(u.Out, "%s %s %s\n", ts, errorPrefix, entry.Message)
	default:
		fmt.Fprintf(u.Out, "%s %s %s\n", ts, infoPrefix, entry.Message)
	}
}

// Task prints a current-task change.
func (u *UI) Task(task string) {
	fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, TaskColor(task))
}

// Navigation prints a simulated browser navigation.
func (u *UI) Navigation(rawURL string) {
	fmt.Fprintf(u.Out, "%s %s %s\n", verbosePrefix, bold(viewmodel.PageTitle(rawURL)), faint(rawURL))
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Results prints grouped results with subtotals and the grand total.
func (u *UI) Results(r viewmodel.Results) error {
	if r.Empty() {
		u.Info("No results")
		return nil
	}
	fmt.Fprintf(u.Out, "%s (%d items, grouped by %s)\n", bold(r.Title), r.ItemCount, r.GroupedBy)

	table := u.Table([]string{"Group", "Item", "Qty", "Price", "Total", "Details"})
	for _, g := range r.Groups {
		for i, line := range g.Lines {
			name := ""
			if i == 0 {
				name = cyan(g.Name)
			}
			details := line.Item.Specs
			if details == "" {
				details = line.Item.Category
			}
			if err := table.Append([]string{
				name,
				line.Item.Name,
				viewmodel.FormatQuantity(line.Item),
				viewmodel.FormatPrice(line.Item.Price),
				viewmodel.FormatPrice(line.Total),
				details,
			}); err != nil {
				return err
			}
		}
		if err := table.Append([]string{"", "", "", "", faint(viewmodel.FormatPrice(g.Subtotal)), faint("subtotal")}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(u.Out, "%s %s  [%s]\n", bold("Total:"), green(viewmodel.FormatPrice(r.GrandTotal)), r.CheckoutLabel)
	return nil
}

// AgentStatus prints the agent state table in the canonical agent order.
func (u *UI) AgentStatus(status domain.AgentStatusMap) error {
	table := u.Table([]string{"Agent", "State"})
	for _, name := range domain.AgentNames {
		state, ok := status[name]
		if !ok {
			continue
		}
		if err := table.Append([]string{viewmodel.AgentLabel(name), AgentStateColor(state)}); err != nil {
			return err
		}
	}
	return table.Render()
}

// RecentQueries prints recent queries.
func (u *UI) RecentQueries(queries []domain.RecentQuery) error {
	if len(queries) == 0 {
		u.Info("No recent queries")
		return nil
	}
	table := u.Table([]string{"When", "Kind", "Query"})
	for _, q := range queries {
		if err := table.Append([]string{
			q.CreatedAt.In(u.location()).Format(time.DateTime),
			string(q.Kind),
			q.Query,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// History prints recorded browser navigations.
func (u *UI) History(records []domain.HistoryRecord) error {
	if len(records) == 0 {
		u.Info("No browser history")
		return nil
	}
	table := u.Table([]string{"When", "Title", "URL"})
	for _, rec := range records {
		if err := table.Append([]string{
			rec.VisitedAt.In(u.location()).Format(time.DateTime),
			rec.Title,
			faint(rec.URL),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Order prints a checkout confirmation.
func (u *UI) Order(order *domain.Order) {
	u.Success("Order %s placed: %d items, %s", order.ID, len(order.Items), viewmodel.FormatPrice(order.Total))
}

func (u *UI) location() *time.Location {
	if u.Location == nil {
		return time.Local
	}
	return u.Location
}
