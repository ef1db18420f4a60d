package main

import (
	"context"
	"fmt"
	"time"

	"multibagger/internal/settings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider credentials in the encrypted vault",
		Long: `Credentials stored here fill in any provider key missing from the
environment. Set MULTIBAGGER_VAULT_PASSPHRASE to use a private passphrase.`,
	}
	cmd.AddCommand(newKeysListCmd(), newKeysSetCmd(), newKeysDeleteCmd(), newKeysValidateCmd())
	return cmd
}

func openVault() (*settings.Vault, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return settings.Open(cfg.Vault.Dir, cfg.Vault.Passphrase)
}

func parseService(name string) (settings.Service, error) {
	svc := settings.Service(name)
	if !settings.IsKnown(svc) {
		return "", fmt.Errorf("%w: %q (known: %v)", settings.ErrUnknownService, name, settings.KnownServices)
	}
	return svc, nil
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := openVault()
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(borderStyle).
				Headers("SERVICE", "NAME", "KEY", "REGION", "MODEL", "CONFIGURED")
			for _, m := range vault.List() {
				configured := rejectStyle.Render("no")
				if m.Configured {
					configured = highStyle.Render("yes")
				}
				t.Row(string(m.Service), m.Name, m.APIKey, m.Region, m.ModelID, configured)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("vault: "+vault.Path()))
			return nil
		},
	}
}

func newKeysSetCmd() *cobra.Command {
	var cred settings.Credential

	cmd := &cobra.Command{
		Use:   "set SERVICE [API_KEY]",
		Short: "Store a credential",
		Example: `  multibagger keys set groq gsk_...
  multibagger keys set bedrock --region ap-south-1 --model anthropic.claude-3-haiku-20240307-v1:0`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := parseService(args[0])
			if err != nil {
				return err
			}
			cred.Service = svc
			if len(args) == 2 {
				cred.APIKey = args[1]
			}

			vault, err := openVault()
			if err != nil {
				return err
			}
			if err := vault.Set(cred); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s credentials\n", settings.DisplayName(svc))
			return nil
		},
	}

	cmd.Flags().StringVar(&cred.BaseURL, "base-url", "", "override the provider endpoint")
	cmd.Flags().StringVar(&cred.Region, "region", "", "AWS region (bedrock)")
	cmd.Flags().StringVar(&cred.ModelID, "model", "", "model id (bedrock)")
	return cmd
}

func newKeysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete SERVICE",
		Short: "Remove a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := parseService(args[0])
			if err != nil {
				return err
			}
			vault, err := openVault()
			if err != nil {
				return err
			}
			return vault.Delete(svc)
		},
	}
}

func newKeysValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [SERVICE]",
		Short: "Check stored credentials against the provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := openVault()
			if err != nil {
				return err
			}

			services := settings.KnownServices
			if len(args) == 1 {
				svc, err := parseService(args[0])
				if err != nil {
					return err
				}
				services = []settings.Service{svc}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			validator := settings.NewValidator()
			for _, svc := range services {
				cred, ok := vault.Get(svc)
				if !ok {
					if len(args) == 1 {
						return fmt.Errorf("no credentials stored for %s", svc)
					}
					continue
				}
				res := validator.Validate(ctx, cred)
				status := highStyle.Render("ok")
				if !res.Valid {
					status = errorStyle.Render("fail")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s  %s (%dms)\n", svc, status, res.Message, res.DurationMs)
			}
			return nil
		},
	}
}
