package verification

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers scoring and verification step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I request my KYC score$`, steps.score)
	ctx.Step(`^I request a recalculation$`, steps.calculate)
	ctx.Step(`^I request my score history$`, steps.history)
	ctx.Step(`^I request my score breakdown$`, steps.breakdown)
	ctx.Step(`^I request the verification requirements$`, steps.requirements)
	ctx.Step(`^the field "([^"]*)" should be a score between 0 and 100$`, steps.fieldIsScore)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) score(ctx context.Context) error {
	return s.tc.GET("/verification/score")
}

func (s *verificationSteps) calculate(ctx context.Context) error {
	return s.tc.POST("/verification/calculate", nil)
}

func (s *verificationSteps) history(ctx context.Context) error {
	return s.tc.GET("/verification/history")
}

func (s *verificationSteps) breakdown(ctx context.Context) error {
	return s.tc.GET("/verification/breakdown")
}

func (s *verificationSteps) requirements(ctx context.Context) error {
	return s.tc.GET("/verification/requirements")
}

// fieldIsScore accepts decimals, which the API encodes as JSON strings.
func (s *verificationSteps) fieldIsScore(ctx context.Context, field string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	var score float64
	switch t := v.(type) {
	case string:
		score, err = strconv.ParseFloat(t, 64)
		if err != nil {
			return fmt.Errorf("field %q is not numeric: %q", field, t)
		}
	case float64:
		score = t
	default:
		return fmt.Errorf("field %q has unexpected type %T", field, v)
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("field %q out of range: %v", field, score)
	}
	return nil
}
