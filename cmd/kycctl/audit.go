package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	id "kyc/pkg/domain"
	audit "kyc/pkg/platform/audit"
)

func auditCmd() *cobra.Command {
	var (
		user     string
		category string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit trail recorded for a user",
		Long: `Lists the compliance and operational events stored for one user, newest
first. Use --category compliance to see only the events that changed the
user's score, status or receipts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := id.ParseUserID(user)
			if err != nil {
				return err
			}
			filter := audit.EventCategory(category)
			if filter != "" && filter != audit.CategoryCompliance && filter != audit.CategoryOperations {
				return fmt.Errorf("unknown category %q", category)
			}

			stores, services, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll(stores, services)

			events, err := stores.Trail.ListByUser(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("list audit trail: %w", err)
			}
			return renderTrail(cmd.OutOrStdout(), userID, filterTrail(events, filter, limit))
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&category, "category", "", "compliance or operations (default: both)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to print, 0 for all")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func filterTrail(events []audit.Event, category audit.EventCategory, limit int) []audit.Event {
	out := events[:0:0]
	for _, e := range events {
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func renderTrail(w io.Writer, userID id.UserID, events []audit.Event) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\n", titleStyle.Render("Audit trail"), userID)
	if len(events) == 0 {
		sb.WriteString(mutedStyle.Render("no events recorded") + "\n")
	}
	for _, e := range events {
		action := e.Action
		if e.Category == audit.CategoryCompliance {
			action = headerStyle.Render(action)
		}
		fmt.Fprintf(&sb, "%s  %-24s %s\n", e.Timestamp.UTC().Format(time.DateTime), action, trailDetail(e))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func trailDetail(e audit.Event) string {
	var parts []string
	if e.Subject != "" && e.Subject != e.UserID.String() {
		parts = append(parts, "subject="+e.Subject)
	}
	if e.Decision != "" {
		parts = append(parts, "decision="+e.Decision)
	}
	if e.Reason != "" {
		parts = append(parts, "reason="+e.Reason)
	}
	if e.ActorID != "" {
		parts = append(parts, "by="+e.ActorID)
	}
	if e.RequestID != "" {
		parts = append(parts, mutedStyle.Render("req="+e.RequestID))
	}
	return strings.Join(parts, " ")
}
