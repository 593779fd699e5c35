package templates

import (
	"bytes"
	"context"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Currency renders v as US dollars with thousands grouping.
func Currency(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

func Count(n int) string {
	return printer.Sprintf("%d", n)
}

func Percent(v float64) string {
	return printer.Sprintf("%.1f%%", v)
}

func Date(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Jan 2, 2006")
}

// RenderString renders c into a string, for SSE element patches.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
