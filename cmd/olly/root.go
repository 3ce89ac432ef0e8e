package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "olly",
		Short: "Chat with Claude, Perplexity and Ollama from the terminal",
		Long: `olly sends prompts to Claude, Perplexity or a local Ollama server and
streams the answers back, citations included.

API keys are read from the OS keyring, the obfuscated key files under
~/.olly/keys, {PROVIDER}_API_KEY environment variables and the legacy
~/.olly/config.env file, in that order. Keys found outside secure storage
are migrated into it on first use.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, cmd.Annotations[annotationSkipMigration] == "true")
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.olly/config.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load environment variables from this file (default is ./.env when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newAskCmd(a),
		newStreamCmd(a),
		newKeysCmd(a),
		newMigrateCmd(a),
		newModelsCmd(a),
	)
	return root
}

// annotationSkipMigration marks commands that run the legacy migration
// themselves.
const annotationSkipMigration = "olly/skip-migration"
