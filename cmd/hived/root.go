package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"hive/internal/app"
)

type cliOptions struct {
	configPath string
	jsonOutput bool
	logger     *zap.Logger
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	opts := cliOptions{
		configPath: "hive.yaml",
		logger:     logger,
	}

	root := &cobra.Command{
		Use:           "hived",
		Short:         "Tool connection resolver and automation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			applyRootFlagBindings(cmd, &opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to runtime config file (empty for defaults)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newServeCmd(&opts),
		newValidateCmd(&opts),
		newSeedCmd(&opts),
		newResolveCmd(&opts),
		newPreviewCmd(&opts),
		newVersionCmd(&opts),
	)

	return root
}

func applyRootFlagBindings(cmd *cobra.Command, opts *cliOptions) {
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config":
			opts.configPath, _ = flags.GetString("config")
		case "json":
			opts.jsonOutput, _ = flags.GetBool("json")
		}
	})
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, automation worker and schedule runner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application := app.New(opts.logger)
			return application.Serve(cmd.Context(), app.ServeConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the runtime config without starting services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application := app.New(opts.logger)
			cfg, err := application.ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: storage=%s http=%s\n", cfg.Storage.Path, cfg.HTTP.ListenAddress)
			return nil
		},
	}
}

func newSeedCmd(opts *cliOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import tools, connections and automations from a fixture file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application := app.New(opts.logger)
			summary, err := application.Seed(cmd.Context(), app.SeedConfig{
				ConfigPath: opts.configPath,
				File:       file,
			})
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded tools=%d states=%d elements=%d connections=%d automations=%d\n",
				summary.Tools, summary.States, summary.Elements, summary.Connections, summary.Automations)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed fixture (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newResolveCmd(opts *cliOptions) *cobra.Command {
	var (
		spaceID     string
		bypassCache bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <instance-id>",
		Short: "Resolve a tool instance's inbound connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(opts.logger)
			report, err := application.Resolve(cmd.Context(), app.ResolveConfig{
				ConfigPath:  opts.configPath,
				InstanceID:  args[0],
				SpaceID:     spaceID,
				BypassCache: bypassCache,
			})
			if err != nil {
				return err
			}
			return printResolveReport(cmd.OutOrStdout(), report, opts.jsonOutput)
		},
	}
	cmd.Flags().StringVar(&spaceID, "space", "", "restrict to connections of this space")
	cmd.Flags().BoolVar(&bypassCache, "bypass-cache", false, "ignore cached values")
	return cmd
}

func newPreviewCmd(opts *cliOptions) *cobra.Command {
	var (
		userID       string
		deploymentID string
		mockState    string
	)
	cmd := &cobra.Command{
		Use:   "preview <automation-id>",
		Short: "Dry-run an automation without executing its actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mock, err := parseMockState(mockState)
			if err != nil {
				return err
			}
			application := app.New(opts.logger)
			result, err := application.Preview(cmd.Context(), app.PreviewConfig{
				ConfigPath:   opts.configPath,
				AutomationID: args[0],
				UserID:       userID,
				DeploymentID: deploymentID,
				MockState:    mock,
			})
			if err != nil {
				return err
			}
			return printPreview(cmd.OutOrStdout(), result, opts.jsonOutput)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user requesting the preview")
	cmd.Flags().StringVar(&deploymentID, "deployment", "", "expected deployment of the automation")
	cmd.Flags().StringVar(&mockState, "mock-state", "", "JSON object replacing stored state, or @file")
	return cmd
}

func newVersionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": app.Version, "build": app.Build})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hived %s (%s)\n", app.Version, app.Build)
			return nil
		},
	}
}

// parseMockState accepts inline JSON or @path to a JSON file.
func parseMockState(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	data := []byte(raw)
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		read, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mock state: %w", err)
		}
		data = read
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse mock state: %w", err)
	}
	return state, nil
}
