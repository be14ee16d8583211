package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rockfordlhotka/calendar-mcp/internal/service"
	"github.com/rockfordlhotka/calendar-mcp/internal/theme"
)

func newAccountsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List configured accounts with their last recorded status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.svc.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.HeaderStyle.Render("Accounts"))
			if len(accounts) == 0 {
				fmt.Fprintln(out, theme.HelpStyle.Render("No accounts configured in "+*configPath))
				return nil
			}
			fmt.Fprintln(out, renderAccounts(accounts))
			return nil
		},
	}
	cmd.AddCommand(newAccountsAddCmd(configPath))
	return cmd
}

var accountHeaders = []string{"ID", "Name", "Provider", "Domains", "Priority", "Health", "Last activity", "Last error"}

const (
	colProvider = 2
	colHealth   = 5
)

func renderAccounts(accounts []service.AccountSummary) string {
	rows := make([][]string, 0, len(accounts))
	for _, acct := range accounts {
		rows = append(rows, accountRow(acct))
	}

	return theme.Table(accountHeaders, rows, func(row, col int) lipgloss.Style {
		acct := accounts[row]
		switch {
		case col == colHealth:
			return theme.HealthStyle(rows[row][colHealth])
		case !acct.Enabled:
			return theme.DimmedStyle
		case col == colProvider:
			return theme.ProviderLabelStyle(acct.ProviderKind)
		}
		return lipgloss.NewStyle()
	}).Render()
}

func accountRow(acct service.AccountSummary) []string {
	provider := acct.Provider
	if acct.ProviderKind != "" && !strings.EqualFold(acct.ProviderKind, acct.Provider) {
		provider = fmt.Sprintf("%s (%s)", acct.Provider, acct.ProviderKind)
	}

	last, lastErr := "-", ""
	if st := acct.Status; st != nil {
		if t := latest(st.LastSuccessAt, st.LastFailureAt); t != nil {
			last = fmt.Sprintf("%s %s", st.LastOperation, t.Local().Format(time.DateTime))
		}
		lastErr = st.LastError
	}

	return []string{
		acct.ID,
		acct.DisplayName,
		provider,
		strings.Join(acct.Domains, ", "),
		strconv.Itoa(acct.Priority),
		health(acct),
		last,
		lastErr,
	}
}

func health(acct service.AccountSummary) string {
	switch {
	case !acct.Enabled:
		return theme.HealthDisabled
	case acct.Status == nil:
		return theme.HealthUnknown
	case acct.Status.ConsecutiveFailures > 0:
		return theme.HealthFailing
	default:
		return theme.HealthOK
	}
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil || a.After(*b):
		return a
	default:
		return b
	}
}
