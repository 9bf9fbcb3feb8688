package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/DocFlow/internal/api"
	"github.com/BTreeMap/DocFlow/internal/capture"
	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/workflow"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the DocFlow HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.API.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := api.NewServer(api.Deps{
				Router:       a.router,
				Engine:       a.engine,
				Orchestrator: a.orchestrator,
				Agents:       a.agents,
				AutoSession:  a.autoSession,
			}, api.WithAddr(cfg.API.Addr), api.WithLogger(logger))
			if err != nil {
				return err
			}

			agentColor.Fprint(cmd.OutOrStdout(), "▶ ")
			fmt.Fprintf(cmd.OutOrStdout(), "DocFlow API on http://%s (state %s)\n", cfg.API.Addr, cfg.StateDir)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides api.addr)")
	return cmd
}

func newPhasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "List the workflow phases and what each one requires",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printPhases(cmd.OutOrStdout(), workflow.DescribeAll())
		},
	}
}

func printPhases(w io.Writer, phases []workflow.PhaseDescription) {
	for i, p := range phases {
		agentColor.Fprintf(w, "%d. %s", i+1, p.Phase)
		noteColor.Fprintf(w, "  (%s, about %s)\n", p.RecommendedAgent, p.EstimatedDuration)
		fmt.Fprintf(w, "   sections: %s\n", strings.Join(p.RequiredSections, ", "))
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <from> <to>",
		Short: "Check whether moving between two phases makes sense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := workflow.NewOrchestrator(nil)
			v := o.ValidatePhaseTransition(models.WorkflowPhase(args[0]), models.WorkflowPhase(args[1]))
			printValidation(cmd.OutOrStdout(), v)
			if !v.Valid {
				return fmt.Errorf("invalid transition %s -> %s", args[0], args[1])
			}
			return nil
		},
	}
}

func printValidation(w io.Writer, v models.TransitionValidation) {
	if v.Valid {
		agentColor.Fprintln(w, "Transition is valid.")
	} else {
		errColor.Fprintln(w, "Transition is not valid.")
	}
	for _, e := range v.Errors {
		errColor.Fprintf(w, "  x %s\n", e)
	}
	for _, warn := range v.Warnings {
		warnColor.Fprintf(w, "  ! %s\n", warn)
	}
	for _, rec := range v.Recommendations {
		noteColor.Fprintf(w, "  - %s\n", rec)
	}
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <phase> <document>",
		Short: "Score a document against a phase's required sections",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := root.loadConfig(); err != nil {
				return err
			}
			phase, ok := models.ParsePhase(args[0])
			if !ok {
				return fmt.Errorf("unknown phase %q", args[0])
			}
			c := capture.NewMarkdownCapture()
			o := workflow.NewOrchestrator(c, workflow.WithQualityAssessor(c))
			st, err := o.EvaluatePhaseCompletion(cmd.Context(), phase, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printPhaseStatus(out, st)
			s := o.SuggestNextPhase(phase, st)
			fmt.Fprintf(out, "Suggestion: %s with %s (confidence %.1f). %s\n", s.NextPhase, s.RecommendedAgent, s.Confidence, s.Reason)
			return nil
		},
	}
}
