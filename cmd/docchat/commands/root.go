// Package commands defines all Cobra CLI commands for the docchat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/docchat-go/internal/audit"
	"github.com/54b3r/docchat-go/internal/config"
	"github.com/54b3r/docchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envPath holds the --env-file flag value.
var envPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docchat",
		Short: "docchat answers questions about your documents",
		Long: `docchat is a retrieval-augmented chat service over a local document folder.

Documents are split into overlapping chunks, embedded, and stored in a vector
index. Questions are answered by retrieving the most similar chunks and
streaming a grounded answer from the configured language model.

Settings come from a YAML config file (~/.docchat/config.yaml), a .env file,
and the process environment, with the environment always winning.
See 'docchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			if err := config.LoadDotEnv(envPath, log); err != nil {
				return err
			}

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docchat/config.yaml)")
	root.PersistentFlags().StringVar(&envPath, "env-file", ".env", "Path to a .env file; a missing file is ignored")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewResetCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
