package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Move keys from the legacy config.env into secure storage",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipMigration: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.gateway.MigrateLegacy(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.Migrated) == 0 && len(report.Stripped) == 0 {
				fmt.Fprintf(out, "Nothing to migrate from %s.\n", a.cfg.LegacyConfig)
				return nil
			}
			for _, provider := range report.Stripped {
				fmt.Fprintf(out, "%s key was already in secure storage; removed it from %s.\n", provider.DisplayName(), a.cfg.LegacyConfig)
			}
			if report.RewriteErr != nil {
				return fmt.Errorf("keys were stored but %s could not be rewritten: %w", a.cfg.LegacyConfig, report.RewriteErr)
			}
			return nil
		},
	}
}
