package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/runwatch/runwatch/internal/client"
	"github.com/runwatch/runwatch/internal/config"
	"github.com/runwatch/runwatch/internal/filter"
	"github.com/runwatch/runwatch/internal/format"
	"github.com/runwatch/runwatch/internal/models"
	"github.com/runwatch/runwatch/internal/poller"
	"github.com/runwatch/runwatch/internal/render"
	"github.com/runwatch/runwatch/internal/replay"
	"github.com/runwatch/runwatch/internal/store"
	"github.com/runwatch/runwatch/internal/timeline"
	"github.com/runwatch/runwatch/internal/tui"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})

func main() {
	rootCmd := &cobra.Command{
		Use:   "runwatch",
		Short: "Watch background coding-agent runs",
		Long:  "Runwatch reconstructs an agent run's conversation into a live timeline of reasoning, tool calls, and tool results.",
		RunE:  runTUI,
	}

	rootCmd.PersistentFlags().String("repo", "", "repository (owner/repo), defaults to RUNWATCH_REPO")
	rootCmd.PersistentFlags().Bool("local", false, "read recorded runs from the local database instead of the backend")

	rootCmd.AddCommand(newTimelineCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newRecordCommand())
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newSource builds the run source the command will read from: the live
// backend, or the local recording store with --local.
func newSource(cmd *cobra.Command, cfg *config.Config) (tui.Source, func(), error) {
	local, _ := cmd.Flags().GetBool("local")
	if !local {
		return client.New(cfg.APIURL, cfg.Token), func() {}, nil
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, func() { st.Close() }, nil
}

func repository(cmd *cobra.Command, cfg *config.Config) string {
	if repo, _ := cmd.Flags().GetString("repo"); repo != "" {
		return repo
	}
	return cfg.Repository
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	source, cleanup, err := newSource(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	app := tui.NewApp(source, repository(cmd, cfg), cfg.PollInterval)
	p := tea.NewProgram(app, tea.WithAltScreen())

	_, err = p.Run()
	return err
}

func newTimelineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline <run-id>",
		Short: "Print a run's timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			source, cleanup, err := newSource(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var entryFilter *filter.Filter
			if expr, _ := cmd.Flags().GetString("filter"); expr != "" {
				entryFilter, err = filter.New(expr)
				if err != nil {
					return err
				}
				defer entryFilter.Close()
			}

			follow, _ := cmd.Flags().GetBool("follow")
			return printTimeline(cmd.Context(), source, args[0], cfg, entryFilter, follow)
		},
	}
	cmd.Flags().String("filter", "", "Lua predicate over entries, e.g. 'entry.role == \"tool\"'")
	cmd.Flags().Bool("follow", false, "keep polling and print new entries until the run finishes")
	return cmd
}

func printTimeline(ctx context.Context, source tui.Source, id string, cfg *config.Config, entryFilter *filter.Filter, follow bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := poller.New(source, cfg.PollInterval)
	run, err := ctrl.Start(ctx, id)
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	fmt.Printf("run %s  %s  status=%s\n", run.ID, run.IssueID, run.Status)
	if run.StartedAt != nil {
		fmt.Printf("started %s  elapsed %s\n", format.Absolute(*run.StartedAt), format.Duration(run.ElapsedSeconds))
	}
	fmt.Println()

	correl := timeline.NewCorrelator()
	printed := 0
	printNew := func(run *models.AgentRun) error {
		normalized := timeline.Normalize(run.Conversation)
		correl.Consume(normalized)
		if printed > len(normalized) {
			printed = 0 // snapshot shrank; reprint from the start
		}
		for _, e := range normalized[printed:] {
			if e.Role == models.RoleSystem {
				continue
			}
			if err := printEntry(e, correl, entryFilter); err != nil {
				return err
			}
		}
		printed = len(normalized)
		return nil
	}

	if err := printNew(run); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	updates := ctrl.Updates()
	pollErrs := ctrl.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case pollErr, ok := <-pollErrs:
			if !ok {
				pollErrs = nil // closed channels are always ready; stop selecting on it
				continue
			}
			logger.Warn("background refresh failed", "err", pollErr)
		case update, ok := <-updates:
			if !ok {
				final := ctrl.Snapshot()
				if final != nil {
					fmt.Printf("\nrun finished: %s\n", final.Status)
					if final.Error != "" {
						fmt.Printf("error: %s\n", final.Error)
					}
				}
				return nil
			}
			if err := printNew(update); err != nil {
				return err
			}
		}
	}
}

func printEntry(e models.TimelineEntry, correl *timeline.Correlator, entryFilter *filter.Filter) error {
	tool := ""
	if e.IsToolResult() {
		tool = correl.Resolve(e.ToolCallID)
	}

	if entryFilter != nil {
		match, err := entryFilter.Match(e, tool)
		if err != nil {
			return err
		}
		if !match {
			return nil
		}
	}

	switch e.Role {
	case models.RoleTool:
		r := render.ToolResult(tool, e.Content)
		header := "[tool] " + tool
		if r.Status != render.StatusNone {
			header += " " + string(r.Status)
		}
		fmt.Println(header)
		fmt.Print(r.Markdown())
	case models.RoleAssistant:
		fmt.Println("[assistant]")
		if e.Content != "" {
			fmt.Println(e.Content)
		}
		for _, tc := range e.ToolCalls {
			fmt.Printf("-> %s\n", tc.Name)
			fmt.Print(render.ToolCallArgs(tc.Arguments).Markdown())
		}
	default:
		fmt.Printf("[%s]\n", e.Role)
		if e.Content != "" {
			fmt.Println(e.Content)
		}
	}
	fmt.Println()
	return nil
}

func newRunsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [repository]",
		Short: "List agent runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			source, cleanup, err := newSource(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			repo := repository(cmd, cfg)
			if len(args) == 1 {
				repo = args[0]
			}

			runs, err := source.ListRuns(cmd.Context(), repo)
			if err != nil {
				return err
			}

			for _, run := range runs {
				pr := "-"
				if run.PRURL != "" {
					pr = run.PRURL
				}
				fmt.Printf("%-36s  %-9s  %-24s  it:%-3d tok:%-7d %s\n",
					run.ID, run.Status, run.IssueID, run.Iteration, run.TokensUsed, pr)
			}
			return nil
		},
	}
}

func newRecordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record <run-id>",
		Short: "Snapshot a run from the backend into the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}

			c := client.New(cfg.APIURL, cfg.Token)
			run, err := c.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SaveRun(run); err != nil {
				return err
			}

			fmt.Printf("Recorded run %s (%s, %d transcript entries)\n", run.ID, run.Status, len(run.Conversation))
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded runs over the backend API shape",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			addr, _ := cmd.Flags().GetString("addr")
			logger.Info("serving recorded runs", "addr", addr, "db", cfg.DBPath)

			return replay.New(st, logger).Echo().Start(addr)
		},
	}
	cmd.Flags().String("addr", ":8000", "listen address")
	return cmd
}
