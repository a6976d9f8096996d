// Package cli handles the command-line interface logic
// using the Cobra library.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/logger"

	// built-in readers and writers register themselves
	_ "github.com/BartekS5/mapflow/internal/readers"
	_ "github.com/BartekS5/mapflow/internal/writers"
)

func NewRootCmd() *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "mapflow",
		Short: "mapflow - config driven ETL runs",
		Long: `mapflow reads entities from one configured source, normalizes their
values and delivers them in batches to any number of writers. Output
fields are declared as formula mappings per writer and entity.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logger.INFO
			if debug {
				level = logger.DEBUG
			}
			if file := config.LoadEnv().LogFile; file != "" {
				return logger.InitLogger(file, level)
			}
			logger.SetOutput(os.Stderr, level)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewRunCmd(), NewMappingCmd(), NewEncryptCmd(), NewTypesCmd())

	return rootCmd
}
