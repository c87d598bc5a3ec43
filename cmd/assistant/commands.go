package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/output"
	"github.com/ashureev/shopping-assistant/internal/transport"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

var historyLimit int

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask for options directly, without running the agents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeLog, err := httpClient()
		if err != nil {
			return err
		}
		defer closeLog()
		res, err := c.Query(cmd.Context(), strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		ui.Info("%s (%s)", res.Response, res.QueryType)
		return ui.Results(viewmodel.BuildResults(res.Items, viewmodel.ParseGroupKey(viper.GetString("group"))))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent queries and browser history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeLog, err := httpClient()
		if err != nil {
			return err
		}
		defer closeLog()
		ctx := cmd.Context()
		queries, err := c.RecentQueries(ctx, historyLimit)
		if err != nil {
			return err
		}
		if err := ui.RecentQueries(queries); err != nil {
			return err
		}
		fmt.Fprintln(ui.Out)
		records, err := c.BrowserHistory(ctx, historyLimit)
		if err != nil {
			return err
		}
		return ui.History(records)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the backend's current run state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeLog, err := httpClient()
		if err != nil {
			return err
		}
		defer closeLog()
		rs, err := c.AgentStatus(cmd.Context())
		if err != nil {
			return err
		}
		state := "idle"
		if rs.IsRunning {
			state = "running"
		}
		ui.Info("%s: %s", state, output.TaskColor(rs.CurrentTask))
		return ui.AgentStatus(rs.AgentStatus)
	},
}

var catalogCmd = &cobra.Command{
	Use:       "catalog <tech|travel|finance|saved>",
	Short:     "List catalog items or the saved shopping list",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"tech", "travel", "finance", "saved"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeLog, err := httpClient()
		if err != nil {
			return err
		}
		defer closeLog()
		items, err := catalogItems(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		return ui.Results(viewmodel.BuildResults(items, viewmodel.ParseGroupKey(viper.GetString("group"))))
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeLog, err := httpClient()
		if err != nil {
			return err
		}
		defer closeLog()
		if err := c.Health(cmd.Context()); err != nil {
			return err
		}
		ui.Success("Backend at %s is healthy", c.BaseURL())
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 10, "Maximum rows per table")
}

func catalogItems(ctx context.Context, c *transport.Client, name string) ([]domain.ShoppingItem, error) {
	switch name {
	case "tech":
		return c.TechProducts(ctx)
	case "travel":
		return c.TravelOptions(ctx)
	case "finance":
		return c.FinancialAdvice(ctx)
	case "saved":
		return c.SavedShoppingList(ctx)
	default:
		return nil, fmt.Errorf("unknown catalog %q", name)
	}
}

// httpClient builds a plain API client for one-shot commands.
func httpClient() (*transport.Client, func(), error) {
	cfg, err := clientConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, closeLog, err := newLogger(false)
	if err != nil {
		return nil, nil, err
	}
	return transport.NewClient(cfg.APIURL,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithLogger(logger),
	), closeLog, nil
}
