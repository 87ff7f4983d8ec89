package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	ActAsUser()
	ActAsAdmin()
	ActAnonymously()
	Save(name, value string)
	Token() string
}

// RegisterSteps registers background, generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the KYC API is running$`, steps.apiIsRunning)
	ctx.Step(`^I am the provisioned user$`, steps.actAsUser)
	ctx.Step(`^I am an operator$`, steps.actAsAdmin)
	ctx.Step(`^I am not authenticated$`, steps.actAnonymously)

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should exist$`, steps.fieldShouldExist)
	ctx.Step(`^the response header "([^"]*)" should contain "([^"]*)"$`, steps.headerShouldContain)
	ctx.Step(`^the response should be a list of at least (\d+) items?$`, steps.listAtLeast)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) apiIsRunning(ctx context.Context) error {
	s.tc.ActAnonymously()
	if err := s.tc.GET("/health"); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("health check returned %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) actAsUser(ctx context.Context) error {
	if s.tc.Token() == "" {
		return fmt.Errorf("KYC_E2E_TOKEN is not set")
	}
	s.tc.ActAsUser()
	return nil
}

func (s *commonSteps) actAsAdmin(ctx context.Context) error {
	s.tc.ActAsAdmin()
	return nil
}

func (s *commonSteps) actAnonymously(ctx context.Context) error {
	s.tc.ActAnonymously()
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := Stringify(v); got != expected {
		return fmt.Errorf("field %q: expected %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldExist(ctx context.Context, field string) error {
	_, err := s.tc.GetResponseField(field)
	return err
}

func (s *commonSteps) headerShouldContain(ctx context.Context, key, fragment string) error {
	if got := s.tc.GetLastResponseHeader(key); !strings.Contains(got, fragment) {
		return fmt.Errorf("header %q: expected to contain %q, got %q", key, fragment, got)
	}
	return nil
}

func (s *commonSteps) listAtLeast(ctx context.Context, n int) error {
	var items []json.RawMessage
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &items); err != nil {
		return fmt.Errorf("response is not a JSON array: %w", err)
	}
	if len(items) < n {
		return fmt.Errorf("expected at least %d items, got %d", n, len(items))
	}
	return nil
}

func (s *commonSteps) saveField(ctx context.Context, field, name string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Save(name, Stringify(v))
	return nil
}

// Stringify renders a decoded JSON value the way it is written in feature files.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}
