package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
	}
	cmd.AddCommand(
		newKeysSetCmd(a),
		newKeysGetCmd(a),
		newKeysDeleteCmd(a),
		newKeysListCmd(a),
		newKeysInfoCmd(a),
		newKeysValidateCmd(a),
	)
	return cmd
}

func newKeysSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key in secure storage (reads stdin when key is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.provider(args[0])
			if err != nil {
				return err
			}
			secret := ""
			if len(args) == 2 {
				secret = args[1]
			} else if secret, err = readSecret(cmd.InOrStdin()); err != nil {
				return err
			}
			if err := a.gateway.StoreCredential(cmd.Context(), provider, secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key.\n", provider.DisplayName())
			return nil
		},
	}
}

func readSecret(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read key: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("no key given")
	}
	return secret, nil
}

func newKeysGetCmd(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <provider>",
		Short: "Show the key that would be used for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.provider(args[0])
			if err != nil {
				return err
			}
			secret, err := a.gateway.ResolveCredential(cmd.Context(), provider)
			if err != nil {
				return err
			}
			if !reveal {
				secret = maskSecret(secret)
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the full key instead of a masked form")
	return cmd
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(secret string) string {
	runes := []rune(secret)
	if len(runes) <= 8 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:4]) + strings.Repeat("*", len(runes)-8) + string(runes[len(runes)-4:])
}

func newKeysDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <provider>",
		Aliases: []string{"rm"},
		Short:   "Remove a provider's key from secure storage",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.provider(args[0])
			if err != nil {
				return err
			}
			if err := a.gateway.DeleteCredential(cmd.Context(), provider); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s key.\n", provider.DisplayName())
			return nil
		},
	}
}

func newKeysListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List providers with a key in secure storage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			providers, err := a.gateway.ListProviders(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(providers) == 0 {
				fmt.Fprintln(out, "No stored keys.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tNAME\tCREATED\tLAST USED")
			for _, provider := range providers {
				info, err := a.gateway.ProviderInfo(cmd.Context(), provider)
				if err != nil {
					fmt.Fprintf(w, "%s\t%s\t-\t-\n", provider, provider.DisplayName())
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", provider, info.DisplayName, formatTime(&info.CreatedAt), formatTime(info.LastUsed))
			}
			return w.Flush()
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func newKeysInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <provider>",
		Short: "Print stored key metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.provider(args[0])
			if err != nil {
				return err
			}
			info, err := a.gateway.ProviderInfo(cmd.Context(), provider)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(info)
		},
	}
}

func newKeysValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <provider> [key]",
		Short: "Check a key against the provider (uses the resolved key when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.provider(args[0])
			if err != nil {
				return err
			}
			secret := ""
			if len(args) == 2 {
				secret = args[1]
			}
			valid, err := a.gateway.ValidateCredential(cmd.Context(), provider, secret)
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("%s rejected the key", provider.DisplayName())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s key is valid.\n", provider.DisplayName())
			return nil
		},
	}
}
