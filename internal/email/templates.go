package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
}

type quoteIssuedEmailData struct {
	baseEmailData
	CustomerName   string
	QuoteNumber    string
	TotalFormatted string
	ValidUntil     string
}

type quoteAcceptedEmailData struct {
	baseEmailData
	CustomerName   string
	QuoteNumber    string
	TotalFormatted string
}

type quoteSupersededEmailData struct {
	baseEmailData
	CustomerName      string
	QuoteNumber       string
	OldTotalFormatted string
	NewTotalFormatted string
	Reconsented       bool
}

type quoteExpiredEmailData struct {
	baseEmailData
	CustomerName string
	QuoteNumber  string
}

type priceReconciledEmailData struct {
	baseEmailData
	CustomerName   string
	FinalFormatted string
	DeltaFormatted string
	Increased      bool
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// formatCurrencySEK renders öre as kronor for display. Display only: money
// stays integer öre everywhere else.
func formatCurrencySEK(ore int64) string {
	sign := ""
	if ore < 0 {
		sign = "-"
		ore = -ore
	}
	return fmt.Sprintf("%s%d,%02d kr", sign, ore/100, ore%100)
}
