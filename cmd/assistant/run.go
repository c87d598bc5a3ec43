package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashureev/shopping-assistant/internal/session"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

var (
	runCheckout bool
	runSave     bool
	runWait     time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a query headlessly and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	runCmd.Flags().BoolVar(&runCheckout, "checkout", false, "Place an order for the results")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Save the results as the shopping list")
	runCmd.Flags().DurationVar(&runWait, "wait", 5*time.Minute, "Give up waiting for the run after this long")
}

func runRun(ctx context.Context, query string) error {
	cfg, err := clientConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	c, err := newClients(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	c.connect(ctx, cfg)

	if !c.store.Submit(query) {
		return errors.New("query is empty")
	}
	ui.Info("Submitted %q", query)

	snap, err := follow(ctx, c.store, runWait)
	if err != nil {
		return err
	}
	if snap.LastError != nil {
		return fmt.Errorf("run failed: %w", snap.LastError)
	}

	// Without the push channel nothing was streamed; show the backend log instead.
	if !snap.Connected && len(snap.Logs) == 0 && ctx.Err() == nil {
		if logs, err := c.http.Logs(ctx); err == nil {
			for _, entry := range logs {
				ui.Log(entry)
			}
		} else {
			ui.VerboseLog("Could not fetch logs: %v", err)
		}
	}

	results := viewmodel.BuildResults(snap.ShoppingList, viewmodel.ParseGroupKey(viper.GetString("group")))
	if err := ui.Results(results); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return nil
	}
	if runSave && !results.Empty() {
		if _, err := c.http.SaveShoppingList(ctx, snap.ShoppingList); err != nil {
			return fmt.Errorf("save shopping list: %w", err)
		}
		ui.Success("Saved %d items", len(snap.ShoppingList))
	}
	if runCheckout && !results.Empty() {
		order, err := c.http.Checkout(ctx, snap.ShoppingList)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		ui.Order(order)
	}
	return nil
}

// follow prints session progress until the run ends, ctx is cancelled, or
// wait elapses. Cancelling asks the backend to stop and keeps following so
// the stopped state is reported.
func follow(ctx context.Context, s *session.Store, wait time.Duration) (session.Snapshot, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	var (
		printedLogs int
		printedNavs int
		lastTask    string
		stopping    bool
	)
	done := ctx.Done()

	for {
		snap := s.Snapshot()
		for ; printedLogs < len(snap.Logs); printedLogs++ {
			ui.Log(snap.Logs[printedLogs])
		}
		for ; printedNavs < len(snap.BrowserHistory); printedNavs++ {
			ui.Navigation(snap.BrowserHistory[printedNavs].URL)
		}
		if snap.CurrentTask != lastTask {
			lastTask = snap.CurrentTask
			ui.Task(lastTask)
		}
		if !snap.Processing {
			return snap, nil
		}

		select {
		case <-s.Changes():
		case <-done:
			if !stopping {
				stopping = true
				done = nil
				ui.Warning("Interrupted, stopping the run")
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := s.Stop(stopCtx)
				cancel()
				if err != nil {
					return snap, fmt.Errorf("stop run: %w", err)
				}
			}
		case <-deadline.C:
			return snap, fmt.Errorf("run did not finish within %s", wait)
		}
	}
}
