package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ztnc/ztnc/pkg/audit"
	"github.com/ztnc/ztnc/pkg/cli"
	"github.com/ztnc/ztnc/pkg/ztnc"
)

func newAuditCmd(opts *options) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "View audit logs",
		Long: `View the audit log of changes made through ztnc.

Every mutating action is logged with:
  - Timestamp
  - User who made the change
  - Network and member affected
  - Operation performed
  - Success/failure status

Examples:
  ztnc audit list --network 8056c2e21c000001
  ztnc audit list --last 24h
  ztnc audit list --operation member.authorize --failures`,
	}

	var (
		network   string
		member    string
		operation string
		user      string
		last      string
		limit     int
		failures  bool
		jsonOut   bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := audit.Filter{
				Network:     network,
				Member:      member,
				Operation:   operation,
				User:        user,
				Limit:       limit,
				FailureOnly: failures,
			}

			// Parse --last duration
			if last != "" {
				duration, err := time.ParseDuration(last)
				if err != nil {
					return fmt.Errorf("invalid duration: %s", last)
				}
				filter.StartTime = time.Now().Add(-duration)
			}

			events, err := ztnc.QueryAuditLog(opts.settings.GetAuditLogPath(), filter)
			if err != nil {
				return fmt.Errorf("querying audit log: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return cli.PrintJSON(out, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No audit events found")
				return nil
			}

			t := cli.NewTableTo(out, "TIMESTAMP", "USER", "OPERATION", "NETWORK", "MEMBER", "DETAIL", "STATUS")
			for _, e := range events {
				t.Row(
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.User,
					e.Operation,
					dash(e.Network),
					dash(e.Member),
					dash(e.Detail),
					cli.Outcome(e.Success),
				)
			}
			t.Flush()
			return nil
		},
	}

	flags := listCmd.Flags()
	flags.StringVar(&network, "network", "", "Filter by network ID")
	flags.StringVar(&member, "member", "", "Filter by member ID")
	flags.StringVar(&operation, "operation", "", "Filter by operation (e.g. member.authorize)")
	flags.StringVar(&user, "user", "", "Filter by user")
	flags.StringVar(&last, "last", "", "Show events from last duration (e.g., 24h)")
	flags.IntVar(&limit, "limit", 100, "Maximum events to show")
	flags.BoolVar(&failures, "failures", false, "Show only failed operations")
	flags.BoolVar(&jsonOut, "json", false, "JSON output")

	auditCmd.AddCommand(listCmd)
	return auditCmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
