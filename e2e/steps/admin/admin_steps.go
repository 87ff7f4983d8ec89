package admin

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	PATCH(path string, body any) error
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
}

// RegisterSteps registers operator step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	ctx.Step(`^I request platform statistics$`, steps.statistics)
	ctx.Step(`^I list users with status "([^"]*)"$`, steps.listUsers)
	ctx.Step(`^I manually verify the provisioned user$`, steps.verifyProvisioned)
	ctx.Step(`^I manually verify user "([^"]*)"$`, steps.verifyUser)
	ctx.Step(`^I export all scores$`, steps.export)
	ctx.Step(`^the response should be a spreadsheet$`, steps.isSpreadsheet)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) statistics(ctx context.Context) error {
	return s.tc.GET("/admin/statistics")
}

func (s *adminSteps) listUsers(ctx context.Context, status string) error {
	return s.tc.GET("/admin/users?kyc_status=" + status)
}

func (s *adminSteps) verifyProvisioned(ctx context.Context) error {
	return s.tc.PATCH("/admin/users/{user_id}/verify", nil)
}

func (s *adminSteps) verifyUser(ctx context.Context, userID string) error {
	return s.tc.PATCH("/admin/users/"+userID+"/verify", nil)
}

func (s *adminSteps) export(ctx context.Context) error {
	return s.tc.GET("/admin/scores/export")
}

// isSpreadsheet checks the xlsx content type and the zip container magic.
func (s *adminSteps) isSpreadsheet(ctx context.Context) error {
	const xlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if got := s.tc.GetLastResponseHeader("Content-Type"); got != xlsx {
		return fmt.Errorf("expected content type %q, got %q", xlsx, got)
	}
	if !bytes.HasPrefix(s.tc.GetLastResponseBody(), []byte("PK")) {
		return fmt.Errorf("export body is not a zip container")
	}
	return nil
}
