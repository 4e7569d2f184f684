package commands

import (
	"bufio"
	"errors"
	"fmt"
	"slices"
	"strings"

	"achieveit/internal/keyring"

	"github.com/spf13/cobra"
)

func checkSecretName(name string) error {
	if !slices.Contains(keyring.Names(), name) {
		return fmt.Errorf("unknown secret %q, expected one of %s", name, strings.Join(keyring.Names(), ", "))
	}
	return nil
}

func addSecret(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Store secrets in the OS keyring instead of the config file.",
	}

	setCmd := &cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store a secret. The value is read from stdin when omitted.",
		Example: `
achieveit secret set gemini_api_key
echo -n "$DATABASE_URL" | achieveit secret set database_url
`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: keyring.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := checkSecretName(name); err != nil {
				return err
			}

			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", name)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret: %w", err)
				}
				value = strings.TrimSpace(line)
			}

			if err := keyring.Set(name, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", name)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:       "delete NAME",
		Short:     "Remove a secret from the keyring.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: keyring.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := checkSecretName(name); err != nil {
				return err
			}
			if err := keyring.Delete(name); err != nil {
				if errors.Is(err, keyring.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s was not set\n", name)
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show which secrets are stored.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range keyring.Names() {
				state := "set"
				if _, err := keyring.Get(name); err != nil {
					state = "not set"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", name, state)
			}
			return nil
		},
	}

	cmd.AddCommand(setCmd, deleteCmd, listCmd)
	topLevel.AddCommand(cmd)
}
