package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-console/internal/config"
	"github.com/miradorstack/mirador-console/internal/console"
	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/store"
	"github.com/miradorstack/mirador-console/internal/utils"
)

type app struct {
	configPath string
	baseURL    string
	logLevel   string
	logJSON    bool
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "mirador-console",
		Short:         "Operations console view model for the Mirador monitoring backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to configuration file (default $MIRADOR_CONSOLE_CONFIG)")
	cmd.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "backend base URL override")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "emit JSON logs")

	cmd.AddCommand(
		newServeCmd(a),
		newSnapshotCmd(a),
		newControlCmd(a),
		newFeedbackCmd(a),
	)
	return cmd
}

// loadConfig reads the file, then applies flag overrides on top of env overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.baseURL != "" {
		cfg.Backend.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logJSON {
		cfg.Logging.JSON = true
	}
	return cfg, nil
}

func (a *app) watchPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return os.Getenv("MIRADOR_CONSOLE_CONFIG")
}

// oneShot builds an unmounted console for a single command; logs go to stderr so
// stdout stays machine readable.
func (a *app) oneShot() (*console.Console, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := utils.NewLoggerTo(a.stderr, cfg.Logging.Level, cfg.Logging.JSON)
	return console.Build(cfg, logger), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSnapshotCmd(a *app) *cobra.Command {
	var tab string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load a tab once and print the resulting snapshot as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := store.ParseTab(tab)
			if err != nil {
				return fmt.Errorf("--tab %q: %w", tab, err)
			}
			con, err := a.oneShot()
			if err != nil {
				return err
			}
			st := con.Store()
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := st.SetTab(ctx, t); err != nil {
				return err
			}
			return a.printJSON(st.Snapshot())
		},
	}
	cmd.Flags().StringVar(&tab, "tab", string(store.TabOverview), "tab to load")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	return cmd
}

func newControlCmd(a *app) *cobra.Command {
	var form store.ControlForm
	var jobID string
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Send a control command, or trigger a planned automation job with --job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			con, err := a.oneShot()
			if err != nil {
				return err
			}
			st := con.Store()
			defer st.Close()

			var res models.ControlResult
			if jobID != "" {
				res, err = st.RunAutomation(cmd.Context(), jobID)
			} else {
				if form.Action == "" {
					return fmt.Errorf("--action is required")
				}
				res, err = st.SendControlAction(cmd.Context(), form)
			}
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&form.Target, "target", "", "control target")
	cmd.Flags().StringVar(&form.Action, "action", "", "control action")
	cmd.Flags().StringVar(&form.Note, "note", "", "operator note")
	cmd.Flags().BoolVar(&form.DryRun, "dry-run", false, "ask the executor for a dry run")
	cmd.Flags().StringVar(&form.Payload, "payload", "", "JSON object merged over the named fields")
	cmd.Flags().StringVar(&jobID, "job", "", "automation job id to trigger")
	return cmd
}

func newFeedbackCmd(a *app) *cobra.Command {
	var fb models.Feedback
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record an operator verdict on an incident recommendation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fb.IncidentID == "" {
				return fmt.Errorf("--incident is required")
			}
			con, err := a.oneShot()
			if err != nil {
				return err
			}
			st := con.Store()
			defer st.Close()

			ack, err := st.SubmitFeedback(cmd.Context(), fb)
			if err != nil {
				return err
			}
			return a.printJSON(ack)
		},
	}
	cmd.Flags().StringVar(&fb.IncidentID, "incident", "", "incident id")
	cmd.Flags().StringVar(&fb.SourceID, "source", "", "source id")
	cmd.Flags().BoolVar(&fb.Accepted, "accepted", false, "recommendation accepted")
	cmd.Flags().BoolVar(&fb.Correct, "correct", false, "diagnosis was correct")
	cmd.Flags().StringVar(&fb.Action, "action", "", "action taken")
	cmd.Flags().StringVar(&fb.Notes, "notes", "", "free-form notes")
	return cmd
}
