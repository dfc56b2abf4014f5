package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/griptape/internal/events"
	"github.com/aristath/griptape/internal/orchestrator"
	"github.com/aristath/griptape/internal/tui"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		useTUI    bool
		showTasks bool
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline> [args...]",
		Short: "Run a configured pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus := events.NewEventBus()
			defer bus.Close()

			runner := orchestrator.NewRunner(orchestrator.RunnerConfig{Config: a.cfg, Bus: bus})
			defer runner.Close()

			if useTUI {
				return runWithTUI(ctx, stop, runner, bus, args[0], args[1:])
			}

			res, err := runner.Run(ctx, args[0], args[1:]...)
			if res != nil && showTasks {
				out := cmd.OutOrStdout()
				for _, t := range res.Tasks {
					fmt.Fprintf(out, "== %s (%s) %s\n%s\n\n", t.ID, t.Kind, t.State, t.Output)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useTUI, "tui", false, "Monitor the run in a terminal UI")
	cmd.Flags().BoolVar(&showTasks, "show-tasks", false, "Print every task's output, not just the last")
	return cmd
}

// runWithTUI runs the pipeline in the background while the monitor is shown.
// The monitor stays up after the run ends until the user quits.
func runWithTUI(ctx context.Context, stop context.CancelFunc, runner *orchestrator.Runner, bus *events.EventBus, name string, args []string) error {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	runErr := make(chan error, 1)
	go func() {
		_, err := runner.Run(runCtx, name, args...)
		runErr <- err
	}()

	select {
	case err := <-errChan:
		// User quit; abandon the run if it is still going.
		cancelRun()
		if err != nil {
			return err
		}
		select {
		case err := <-runErr:
			return err
		case <-time.After(10 * time.Second):
			return context.Canceled
		}

	case <-ctx.Done():
		// Restore default signal handling so a second Ctrl+C force-exits.
		stop()
		slog.Info("shutdown signal received, cleaning up")

		if err := runner.Close(); err != nil {
			slog.Error("error killing subprocesses", "error", err)
		}
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		select {
		case err := <-errChan:
			if err != nil {
				slog.Error("tui exit error", "error", err)
			}
		case <-shutdownCtx.Done():
			slog.Warn("shutdown timeout exceeded, forcing exit")
		}
		return ctx.Err()
	}
}
