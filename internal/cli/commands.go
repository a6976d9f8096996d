package cli

import (
	"time"

	"github.com/spf13/cobra"
)

type RunOptions struct {
	Config   string
	Base     string
	DryRun   bool
	Schedule string
	Watch    bool
	Debounce time.Duration
}

func NewRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the process described by a configuration file",
		RunE: func(c *cobra.Command, args []string) error {
			return runCommand(c.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Path to the process configuration")
	cmd.Flags().StringVarP(&opts.Base, "base", "b", "", "Path to the base configuration (default $MAPFLOW_BASE_CONFIG)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Read and count batches without writing")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "Cron expression; run repeatedly until interrupted")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Run again whenever a configuration file changes")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 500*time.Millisecond, "Quiet period before a watched change triggers a run")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagsMutuallyExclusive("schedule", "watch")

	return cmd
}

type MappingOptions struct {
	Config string
	Base   string
	Writer string
	Entity string
	Fields []string
}

func NewMappingCmd() *cobra.Command {
	opts := &MappingOptions{}

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Print the resolved output mapping of a writer and entity",
		RunE: func(c *cobra.Command, args []string) error {
			return printMapping(c.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Path to the process configuration")
	cmd.Flags().StringVarP(&opts.Base, "base", "b", "", "Path to the base configuration")
	cmd.Flags().StringVarP(&opts.Writer, "writer", "w", "", "Writer name")
	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "Source entity name")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "Source fields (default <reader>_<entity>_source_fields)")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("writer")
	cmd.MarkFlagRequired("entity")

	return cmd
}

func NewEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a configuration value with $MAPFLOW_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return encryptValue(c.OutOrStdout(), args[0])
		},
	}
}

func NewTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the available reader, writer, filter and mapper types",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, args []string) {
			listTypes(c.OutOrStdout())
		},
	}
}
