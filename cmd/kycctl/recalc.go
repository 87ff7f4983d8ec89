package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	id "kyc/pkg/domain"
)

func recalcCmd() *cobra.Command {
	var (
		user string
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recalculate stored KYC scores",
		Long: `Rescores one user (--user) or every account (--all) against the current
receipts and scoring configuration. Each user is recalculated in its own
transaction; one failure does not stop the batch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (user == "") == !all {
				return errors.New("exactly one of --user or --all is required")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			stores, services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer closeAll(stores, services)

			if user != "" {
				userID, err := id.ParseUserID(user)
				if err != nil {
					return err
				}
				score, err := services.Verification.Recalculate(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %s  verified=%t\n", userID, score.FinalScore.StringFixed(2), score.IsVerified)
				return nil
			}

			userIDs, err := stores.Accounts.IDs(ctx)
			if err != nil {
				return fmt.Errorf("list accounts: %w", err)
			}

			bar := progressbar.NewOptions(len(userIDs),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Recalculating scores...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)

			failed := 0
			for _, userID := range userIDs {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := services.Verification.Recalculate(ctx, userID); err != nil {
					failed++
					slog.WarnContext(ctx, "recalculation failed",
						"user_id", userID.String(),
						"error", err,
					)
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			fmt.Fprintf(out, "\nrecalculated %d of %d users\n", len(userIDs)-failed, len(userIDs))
			if failed > 0 {
				return fmt.Errorf("%d recalculations failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to recalculate")
	cmd.Flags().BoolVar(&all, "all", false, "recalculate every account")
	return cmd
}
