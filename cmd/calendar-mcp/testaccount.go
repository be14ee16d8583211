package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rockfordlhotka/calendar-mcp/internal/theme"
)

func newTestAccountCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-account <account>",
		Short: "Check an account's credential and list its calendars",
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
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			fmt.Fprintln(out, theme.HeaderStyle.Render("Testing "+acct.ID))

			if !a.prober.Probe(ctx, acct) {
				reason := "no usable credential"
				for _, st := range a.prober.GetStatuses() {
					if st.AccountID == acct.ID && st.Error != "" {
						reason = st.Error
					}
				}
				fmt.Fprintln(out, theme.ErrorStyle.Render("✗ credential: ")+reason)
				fmt.Fprintln(out, theme.HelpStyle.Render("Run `calendar-mcp login "+acct.ID+"` to enroll."))
				return fmt.Errorf("account %q is not signed in", acct.ID)
			}
			fmt.Fprintln(out, theme.OKStyle.Render("✓ credential"))

			res, err := a.svc.ListCalendars(ctx, acct.ID)
			if err != nil {
				return err
			}
			if len(res.Failures) > 0 {
				f := res.Failures[0]
				fmt.Fprintln(out, theme.ErrorStyle.Render("✗ calendars: ")+fmt.Sprintf("%s: %s", f.Kind, f.Reason))
				return fmt.Errorf("account %q: listing calendars failed", acct.ID)
			}

			fmt.Fprintln(out, theme.OKStyle.Render(fmt.Sprintf("✓ %d calendar(s)", len(res.Items))))
			for _, cal := range res.Items {
				marker := " "
				if cal.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(out, "  %s %s (%s)\n", marker, cal.Name, cal.ID)
			}
			return nil
		},
	}
}
