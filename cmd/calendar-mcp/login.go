package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/theme"
)

func newLoginCmd(configPath *string) *cobra.Command {
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "login <account>",
		Short: "Store a token or app password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.account(args[0])
			if err != nil {
				return err
			}
			kind, ok := acct.Kind()
			if !ok {
				return fmt.Errorf("account %q: unknown provider %q", acct.ID, acct.Provider)
			}

			tok, err := promptToken(acct, kind, expiresIn)
			if err != nil {
				return err
			}
			if err := a.broker.Enroll(acct.ID, tok); err != nil {
				return fmt.Errorf("storing credential for %q: %w", acct.ID, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.OKStyle.Render("✓")+" credential stored for "+acct.ID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "lifetime of the pasted access token (OAuth accounts only)")
	return cmd
}

func notBlank(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// promptToken asks for an IMAP app password, or for an access token and
// optional refresh token obtained from the provider's sign-in flow.
func promptToken(acct model.Account, kind model.ProviderKind, expiresIn time.Duration) (*oauth2.Token, error) {
	title := fmt.Sprintf("Sign in %s (%s)", acct.DisplayName, kind)

	if kind == model.ProviderIMAP {
		var password string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewNote().
					Title(title).
					Description("Enter the app password for "+acct.Setting("username", acct.Setting("address", acct.ID))),
				huh.NewInput().
					Title("App password").
					EchoMode(huh.EchoModePassword).
					Value(&password).
					Validate(notBlank("app password")),
			),
		)
		if err := form.Run(); err != nil {
			return nil, err
		}
		return &oauth2.Token{AccessToken: strings.TrimSpace(password), TokenType: "Basic"}, nil
	}

	var access, refresh string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(title).
				Description("Paste the tokens issued by the provider's sign-in flow."),
			huh.NewInput().
				Title("Access token").
				EchoMode(huh.EchoModePassword).
				Value(&access).
				Validate(notBlank("access token")),
			huh.NewInput().
				Title("Refresh token").
				Description("Optional. Lets the server renew the access token silently.").
				EchoMode(huh.EchoModePassword).
				Value(&refresh),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  strings.TrimSpace(access),
		RefreshToken: strings.TrimSpace(refresh),
		TokenType:    "Bearer",
	}
	if expiresIn > 0 {
		tok.Expiry = time.Now().Add(expiresIn)
	}
	return tok, nil
}
