package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	verificationmodels "kyc/internal/verification/models"
	dErrors "kyc/pkg/domain-errors"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/requestcontext"
)

const scoresSheet = "Scores"

var scoreHeaders = []string{
	"User ID",
	"Final Score",
	"Verified",
	"Document Quality",
	"Spending Pattern",
	"Consistency",
	"Diversity",
	"Receipts",
	"Total Spending",
	"Unique Merchants",
	"Average Transaction",
	"Calculated At",
}

// ExportScores returns an XLSX workbook with one row per stored score,
// highest score first.
func (s *Service) ExportScores(ctx context.Context) ([]byte, error) {
	start := time.Now()

	scores, err := s.scores.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list scores")
	}

	data, err := WriteScoresXLSX(scores)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build score export")
	}

	if s.opsTracker != nil {
		s.opsTracker.Track(ctx, audit.OpsEvent{
			Timestamp: requestcontext.Now(ctx),
			Subject:   fmt.Sprintf("%d scores", len(scores)),
			Action:    string(audit.EventScoresExported),
			RequestID: requestcontext.RequestID(ctx),
		})
	}
	s.logger.InfoContext(ctx, "scores exported",
		"rows", len(scores),
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// WriteScoresXLSX renders scores into a single-sheet workbook.
func WriteScoresXLSX(scores []*verificationmodels.Score) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// Rename the default sheet rather than leaving an empty one behind.
	if err := f.SetSheetName(f.GetSheetName(0), scoresSheet); err != nil {
		return nil, err
	}

	for i, h := range scoreHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(scoresSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, sc := range scores {
		row := i + 2
		values := []any{
			sc.UserID.String(),
			sc.FinalScore.InexactFloat64(),
			sc.IsVerified,
			sc.Components.DocumentQuality.InexactFloat64(),
			sc.Components.SpendingPattern.InexactFloat64(),
			sc.Components.Consistency.InexactFloat64(),
			sc.Components.Diversity.InexactFloat64(),
			sc.Metrics.TotalReceipts,
			sc.Metrics.TotalSpending.InexactFloat64(),
			sc.Metrics.UniqueMerchants,
			sc.Metrics.AverageTransaction.InexactFloat64(),
			sc.CalculatedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(scoresSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(scoresSheet, "A", "A", 38)
	_ = f.SetColWidth(scoresSheet, "B", "K", 16)
	_ = f.SetColWidth(scoresSheet, "L", "L", 22)
	_ = f.SetPanes(scoresSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
