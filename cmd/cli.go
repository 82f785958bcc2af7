// SPDX-License-Identifier: MIT

// Package cmd parses the command line into the command to run and the
// effective configuration.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"nowplaying/internal/config"
	"nowplaying/pkg/build"
)

// Commands selected by ParseArgs.
const (
	CommandNone    = ""
	CommandRun     = "run"
	CommandList    = "list"
	CommandVersion = "version"
)

// Options is the parsed command line.
type Options struct {
	Command    string
	ConfigPath string
	Verbose    bool
	DryRun     bool
	Record     bool
	TUI        bool
	Backend    string

	// set when the corresponding flag was given
	dryRunSet, recordSet, tuiSet bool
}

// ParseArgs executes the command tree over args. Help and --version leave
// Command empty; the caller should exit.
func ParseArgs(args []string) (*Options, *config.Config, error) {
	info := build.Get()
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			opts.dryRunSet = cmd.Flags().Changed("dry-run")
			opts.recordSet = cmd.Flags().Changed("record")
			opts.tuiSet = cmd.Flags().Changed("tui")
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audio endpoints and their ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVar(&opts.TUI, "tui", false, "Browse the endpoints in a terminal UI")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandVersion
			return nil
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "",
		"Path to the YAML configuration (default $"+config.PathEnv+" or ./config.yaml)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log at debug level")
	pf.StringVarP(&opts.Backend, "backend", "b", "", "Capture backend: portaudio or malgo")

	f := rootCmd.Flags()
	f.BoolVarP(&opts.DryRun, "dry-run", "n", false,
		"Use in-memory routing and media session instead of the OS")
	f.BoolVarP(&opts.Record, "record", "r", false, "Record the captured stream to a WAV file")
	f.BoolVar(&opts.TUI, "tui", false, "Show the now-playing view in the terminal")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, nil, err
	}
	if opts.Command == CommandNone || opts.Command == CommandVersion {
		return opts, nil, nil
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if err := opts.apply(cfg); err != nil {
		return nil, nil, err
	}
	return opts, cfg, nil
}

// apply lets flags override file and environment values.
func (o *Options) apply(cfg *config.Config) error {
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if o.Backend != "" {
		cfg.Capture.Backend = o.Backend
	}
	if o.dryRunSet {
		cfg.DryRun = o.DryRun
	}
	if o.recordSet {
		cfg.Recording.Enabled = o.Record
	}
	if o.tuiSet {
		cfg.Transport.TUI = o.TUI
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
