package e2e

import (
	"github.com/cucumber/godog"

	"kyc/e2e/steps/admin"
	"kyc/e2e/steps/common"
	"kyc/e2e/steps/receipt"
	"kyc/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	receipt.RegisterSteps(ctx, tc)
	verification.RegisterSteps(ctx, tc)
	admin.RegisterSteps(ctx, tc)
}
