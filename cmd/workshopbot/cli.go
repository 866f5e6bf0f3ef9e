package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugoworkshops/workshopbot/pkg/channels"
	"github.com/hugoworkshops/workshopbot/pkg/config"
	"github.com/hugoworkshops/workshopbot/pkg/logger"
	"github.com/hugoworkshops/workshopbot/pkg/tracklog"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var (
		configPath  string
		debug       bool
		showVersion bool
	)

	root := &cobra.Command{
		Use:   "workshopbot",
		Short: "Discord Q&A bot over workshop transcripts with token-budgeted retrieval",
		Long: strings.TrimSpace(`workshopbot answers questions about course workshops from their transcripts.

Questions are routed to the most relevant workshops by keyword scoring, with
an LLM fallback for ambiguous phrasing. Retrieved transcript sections are
fitted to the answering model's context window before generation.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logger.SetLevel(logger.DEBUG)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config file")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newAskCommand(&configPath))
	root.AddCommand(newRouteCommand(&configPath))
	root.AddCommand(newIndexCommand(&configPath))
	root.AddCommand(newStatusCommand(&configPath))
	root.AddCommand(newOnboardCommand(&configPath))
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the Discord bot",
		Long:    "Start the Discord channel, answer engine, and tracklog retention sweeper.",
		Example: "  workshopbot serve --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Discord.Token == "" {
				return fmt.Errorf("discord token is not configured (set %s)", "WORKSHOPBOT_DISCORD_TOKEN")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := buildRuntime(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer deps.close()

			channel, err := channels.NewDiscordChannel(cfg.Discord, deps.engine, deps.trail)
			if err != nil {
				return err
			}
			if err := channel.Start(ctx); err != nil {
				return err
			}

			sweeper, err := tracklog.NewSweeper(deps.trail, cfg.Tracklog.SweepCron, cfg.Tracklog.RetentionDays)
			if err != nil {
				return err
			}
			go sweeper.Run(ctx)

			logger.InfoC("main", "workshopbot is running, press Ctrl+C to stop")
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), channels.StopTimeout)
			defer cancel()
			return channel.Stop(stopCtx)
		},
	}
}

func newAskCommand(configPath *string) *cobra.Command {
	var (
		model        string
		maxWorkshops int
		chunks       int
		filter       []string
		showDiag     bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question from the terminal",
		Long:  "Answer one question, or start an interactive session when no question is given.",
		Example: strings.Join([]string{
			"  workshopbot ask \"what is prompt engineering?\"",
			"  workshopbot ask --workshops WS2,WS3 \"how do we evaluate outputs?\"",
			"  workshopbot ask",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := buildRuntime(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer deps.close()

			opts := askOptions{
				model:        model,
				maxWorkshops: maxWorkshops,
				chunks:       chunks,
				filter:       filter,
				showDiag:     showDiag,
			}
			if len(args) > 0 {
				return askOnce(ctx, deps, strings.Join(args, " "), opts)
			}
			return askInteractive(ctx, deps, opts)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Answering model (overrides config)")
	cmd.Flags().IntVar(&maxWorkshops, "max-workshops", 0, "Max workshops to retrieve from")
	cmd.Flags().IntVar(&chunks, "chunks", 0, "Chunks per workshop")
	cmd.Flags().StringSliceVarP(&filter, "workshops", "w", nil, "Restrict to these workshop ids")
	cmd.Flags().BoolVar(&showDiag, "diagnostics", false, "Print routing and budget diagnostics")

	return cmd
}

func newRouteCommand(configPath *string) *cobra.Command {
	var maxWorkshops int

	cmd := &cobra.Command{
		Use:     "route <question>",
		Short:   "Show routing for a question without answering it",
		Example: "  workshopbot route \"how do I chunk documents for RAG?\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return routeQuestion(cmd.Context(), cfg, strings.Join(args, " "), maxWorkshops)
		},
	}

	cmd.Flags().IntVar(&maxWorkshops, "max-workshops", 0, "Max workshops to route to")
	return cmd
}

func newIndexCommand(configPath *string) *cobra.Command {
	var (
		workshopID   string
		targetTokens int
	)

	cmd := &cobra.Command{
		Use:     "index <transcript.vtt> [more.vtt...]",
		Short:   "Index workshop transcripts into the vector store",
		Long:    "Parse WebVTT transcripts, chunk them to roughly uniform token size, embed, and store.",
		Example: "  workshopbot index --workshop WS3 ws3-session.vtt",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if workshopID == "" {
				return fmt.Errorf("--workshop is required")
			}
			return indexTranscripts(cmd.Context(), cfg, workshopID, targetTokens, args)
		},
	}

	cmd.Flags().StringVarP(&workshopID, "workshop", "w", "", "Workshop id the transcripts belong to (e.g. WS3)")
	cmd.Flags().IntVar(&targetTokens, "target-tokens", 0, "Target chunk size in tokens")

	return cmd
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and index readiness",
		Example: "  workshopbot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return showStatus(cmd.Context(), cfg)
		},
	}
}

func newOnboardCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Write a default config file",
		Example: "  workshopbot onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*configPath); err == nil {
				return fmt.Errorf("config already exists at %s", *configPath)
			}
			cfg := config.DefaultConfig()
			if err := config.SaveConfig(*configPath, cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("Wrote default config to %s\n", *configPath)
			fmt.Println("Set the Discord token and OpenAI API key before running serve.")
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  workshopbot version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
