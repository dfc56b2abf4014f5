package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/griptape/internal/orchestrator"
	"github.com/aristath/griptape/internal/structure"
	"github.com/aristath/griptape/internal/task"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pipeline]",
		Short: "Check the configuration, or build one pipeline and resolve its links",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if err := a.cfg.Validate(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "config ok: %d drivers, %d pipelines\n", len(a.cfg.Drivers), len(a.cfg.Pipelines))
				return nil
			}

			runner := orchestrator.NewRunner(orchestrator.RunnerConfig{Config: a.cfg})
			defer runner.Close()

			p, err := runner.Build(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := p.ResolveRelationships(); err != nil {
				return err
			}
			printChain(cmd, p)
			return nil
		},
	}
}

func printChain(cmd *cobra.Command, p *structure.Pipeline) {
	out := cmd.OutOrStdout()
	for i, t := range p.Tasks() {
		b := t.Base()
		parent := "-"
		if len(b.ParentIDs) > 0 {
			parent = b.ParentIDs[0]
		}
		fmt.Fprintf(out, "%d. %s (%s) parent=%s\n", i+1, b.ID(), task.Kind(t), parent)
	}
}
