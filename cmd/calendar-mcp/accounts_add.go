package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/theme"
)

// accountInput is the raw answer set for a new account, from flags or the
// interactive form.
type accountInput struct {
	ID          string
	DisplayName string
	Provider    string
	Domains     string
	Priority    string
	Disabled    bool

	TenantID     string
	ClientID     string
	ClientSecret string
	Address      string
	IMAPHost     string
	SMTPHost     string
}

// account validates the input and builds the account it describes.
func (in accountInput) account() (model.Account, error) {
	acct := model.Account{
		ID:          strings.TrimSpace(in.ID),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Provider:    strings.TrimSpace(in.Provider),
		Domains:     []string{},
		Enabled:     !in.Disabled,
	}
	if acct.ID == "" {
		return model.Account{}, fmt.Errorf("account id is required")
	}
	kind, ok := model.ParseProviderKind(acct.Provider)
	if !ok {
		return model.Account{}, fmt.Errorf("unknown provider %q", acct.Provider)
	}
	if acct.DisplayName == "" {
		acct.DisplayName = acct.ID
	}

	for _, d := range strings.Split(in.Domains, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && !slices.Contains(acct.Domains, d) {
			acct.Domains = append(acct.Domains, d)
		}
	}

	if p := strings.TrimSpace(in.Priority); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return model.Account{}, fmt.Errorf("priority must be an integer: %q", p)
		}
		acct.Priority = n
	}

	settings := map[string]string{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			settings[key] = value
		}
	}
	switch kind {
	case model.ProviderOrganizational:
		set("tenant_id", in.TenantID)
		set("client_id", in.ClientID)
		set("client_secret", in.ClientSecret)
	case model.ProviderPersonal, model.ProviderWorkspace:
		set("client_id", in.ClientID)
		set("client_secret", in.ClientSecret)
	case model.ProviderIMAP:
		set("address", in.Address)
		set("imap_host", in.IMAPHost)
		set("smtp_host", in.SMTPHost)
		if settings["imap_host"] == "" || settings["smtp_host"] == "" {
			return model.Account{}, fmt.Errorf("imap accounts need an IMAP and an SMTP host")
		}
	}
	if len(settings) > 0 {
		acct.ProviderConfig = settings
	}
	return acct, nil
}

// addAccount appends acct to the config file at path, creating the file
// when it does not exist yet.
func addAccount(path string, acct model.Account) error {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}
	cfg.Accounts = append(cfg.Accounts, acct)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return model.SaveConfig(path, cfg)
}

func newAccountsAddCmd(configPath *string) *cobra.Command {
	var in accountInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account to the config file",
		Long: "Add an account to the config file. Missing id or provider are asked for interactively.\n" +
			"A running server with server.watch_config enabled picks the account up without a restart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.ID == "" || in.Provider == "" {
				if err := promptAccount(&in); err != nil {
					return err
				}
			}
			acct, err := in.account()
			if err != nil {
				return err
			}
			if err := addAccount(*configPath, acct); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.OKStyle.Render("✓")+" added "+acct.ID+" to "+*configPath)
			fmt.Fprintln(out, theme.HelpStyle.Render("Run `calendar-mcp login "+acct.ID+"` to sign in."))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.ID, "id", "", "unique account id")
	f.StringVar(&in.DisplayName, "name", "", "display name (defaults to the id)")
	f.StringVar(&in.Provider, "provider", "", "m365, outlook.com, google or imap")
	f.StringVar(&in.Domains, "domains", "", "comma-separated email domains used for routing")
	f.StringVar(&in.Priority, "priority", "", "routing priority; higher wins")
	f.BoolVar(&in.Disabled, "disabled", false, "add the account disabled")
	f.StringVar(&in.TenantID, "tenant-id", "", "Microsoft 365 tenant id")
	f.StringVar(&in.ClientID, "client-id", "", "OAuth client id used for token refresh")
	f.StringVar(&in.ClientSecret, "client-secret", "", "OAuth client secret, when the app has one")
	f.StringVar(&in.Address, "address", "", "IMAP account email address")
	f.StringVar(&in.IMAPHost, "imap-host", "", "IMAP server host")
	f.StringVar(&in.SMTPHost, "smtp-host", "", "SMTP server host")
	return cmd
}

func promptAccount(in *accountInput) error {
	if in.Provider == "" {
		in.Provider = "m365"
	}
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Options(
					huh.NewOption("Microsoft 365 - work or school", "m365"),
					huh.NewOption("Outlook.com - personal Microsoft account", "outlook.com"),
					huh.NewOption("Google - Gmail or Workspace", "google"),
					huh.NewOption("IMAP - any mailbox, no calendars", "imap"),
				).
				Value(&in.Provider),
			huh.NewInput().
				Title("Account id").
				Value(&in.ID).
				Validate(notBlank("account id")),
			huh.NewInput().
				Title("Display name").
				Value(&in.DisplayName),
			huh.NewInput().
				Title("Domains").
				Description("Comma-separated, used to route outgoing mail and invites.").
				Value(&in.Domains),
			huh.NewInput().
				Title("Priority").
				Description("Breaks ties between accounts with the same domain. Higher wins.").
				Value(&in.Priority).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := strconv.Atoi(strings.TrimSpace(s))
					return err
				}),
		),
		huh.NewGroup(
			huh.NewInput().Title("Tenant id").Value(&in.TenantID),
			huh.NewInput().Title("Client id").Value(&in.ClientID),
		).WithHideFunc(func() bool { return in.Provider == "imap" }),
		huh.NewGroup(
			huh.NewInput().Title("Email address").Value(&in.Address),
			huh.NewInput().Title("IMAP host").Value(&in.IMAPHost).Validate(notBlank("IMAP host")),
			huh.NewInput().Title("SMTP host").Value(&in.SMTPHost).Validate(notBlank("SMTP host")),
		).WithHideFunc(func() bool { return in.Provider != "imap" }),
	).Run()
	return err
}
