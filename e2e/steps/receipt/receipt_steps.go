package receipt

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	DELETE(path string) error
	Upload(path, fileName string, data []byte) error
}

// RegisterSteps registers receipt ingestion step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &receiptSteps{tc: tc}

	ctx.Step(`^I upload the receipt image "([^"]*)"$`, steps.uploadImage)
	ctx.Step(`^I upload an empty file "([^"]*)"$`, steps.uploadEmpty)
	ctx.Step(`^I list my receipts$`, steps.list)
	ctx.Step(`^I list my receipts with status "([^"]*)"$`, steps.listWithStatus)
	ctx.Step(`^I fetch the receipt saved as "([^"]*)"$`, steps.fetch)
	ctx.Step(`^I reprocess the receipt saved as "([^"]*)"$`, steps.reprocess)
	ctx.Step(`^I delete the receipt saved as "([^"]*)"$`, steps.delete)
	ctx.Step(`^I request my receipt summary$`, steps.summary)
}

type receiptSteps struct {
	tc TestContext
}

func (s *receiptSteps) uploadImage(ctx context.Context, name string) error {
	data, err := syntheticReceipt()
	if err != nil {
		return err
	}
	return s.tc.Upload("/receipts/upload", name, data)
}

func (s *receiptSteps) uploadEmpty(ctx context.Context, name string) error {
	return s.tc.Upload("/receipts/upload", name, nil)
}

func (s *receiptSteps) list(ctx context.Context) error {
	return s.tc.GET("/receipts/")
}

func (s *receiptSteps) listWithStatus(ctx context.Context, status string) error {
	return s.tc.GET("/receipts/?status=" + status)
}

func (s *receiptSteps) fetch(ctx context.Context, name string) error {
	return s.tc.GET(placeholder("/receipts/%s", name))
}

func (s *receiptSteps) reprocess(ctx context.Context, name string) error {
	return s.tc.POST(placeholder("/receipts/%s/process", name), nil)
}

func (s *receiptSteps) delete(ctx context.Context, name string) error {
	return s.tc.DELETE(placeholder("/receipts/%s", name))
}

func (s *receiptSteps) summary(ctx context.Context) error {
	return s.tc.GET("/receipts/stats/summary")
}

func placeholder(format, name string) string {
	return fmt.Sprintf(format, "{"+name+"}")
}

// syntheticReceipt renders a small decodable PNG so uploads pass through a real
// perception service as well as the static extractor.
func syntheticReceipt() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 64, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 64; x++ {
			c := uint8(255)
			if y%16 == 8 && x > 4 && x < 60 {
				c = 0
			}
			img.SetGray(x, y, color.Gray{Y: c})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
