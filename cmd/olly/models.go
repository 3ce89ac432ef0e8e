package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/childreth/Olly/providers/ai"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider]",
		Short: "List available models for one provider or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				models []ai.ModelInfo
				err    error
			)
			if len(args) == 1 {
				provider, perr := a.provider(args[0])
				if perr != nil {
					return perr
				}
				models, err = a.gateway.ListModels(cmd.Context(), provider)
			} else {
				models, err = a.gateway.ListAllModels(cmd.Context())
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tNAME\tSIZE")
			for _, model := range models {
				size := model.ParameterSize
				if size == "" {
					size = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", model.Provider, model.ID, model.Name, size)
			}
			return w.Flush()
		},
	}
}
