package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface over a direct SMTP connection
// via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

var _ Sender = (*SMTPSender)(nil)

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendQuoteIssuedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64, validUntil string) error {
	subject := fmt.Sprintf(subjectQuoteIssuedFmt, quoteNumber)
	content, err := renderEmailTemplate("quote_issued.html", quoteIssuedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Er offert är klar",
			Heading: "Er offert är klar",
		},
		CustomerName:   customerName,
		QuoteNumber:    quoteNumber,
		TotalFormatted: formatCurrencySEK(totalOre),
		ValidUntil:     validUntil,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendQuoteAcceptedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64) error {
	subject := fmt.Sprintf(subjectQuoteAcceptedFmt, quoteNumber)
	content, err := renderEmailTemplate("quote_accepted.html", quoteAcceptedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Tack för er bokning",
			Heading: "Tack för er bokning",
		},
		CustomerName:   customerName,
		QuoteNumber:    quoteNumber,
		TotalFormatted: formatCurrencySEK(totalOre),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendQuoteSupersededEmail(ctx context.Context, toEmail, customerName, quoteNumber string, oldTotalOre, newTotalOre int64, reconsented bool) error {
	subject := fmt.Sprintf(subjectQuoteSupersededFmt, quoteNumber)
	heading := "Er offert har uppdaterats"
	if reconsented {
		subject = fmt.Sprintf(subjectQuoteReconsentedFmt, quoteNumber)
		heading = "Er nya offert gäller nu"
	}
	content, err := renderEmailTemplate("quote_superseded.html", quoteSupersededEmailData{
		baseEmailData: baseEmailData{
			Title:   heading,
			Heading: heading,
		},
		CustomerName:      customerName,
		QuoteNumber:       quoteNumber,
		OldTotalFormatted: formatCurrencySEK(oldTotalOre),
		NewTotalFormatted: formatCurrencySEK(newTotalOre),
		Reconsented:       reconsented,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendQuoteExpiredEmail(ctx context.Context, toEmail, customerName, quoteNumber string) error {
	subject := fmt.Sprintf(subjectQuoteExpiredFmt, quoteNumber)
	content, err := renderEmailTemplate("quote_expired.html", quoteExpiredEmailData{
		baseEmailData: baseEmailData{
			Title:   "Er offert har gått ut",
			Heading: "Er offert har gått ut",
		},
		CustomerName: customerName,
		QuoteNumber:  quoteNumber,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendPriceReconciledEmail(ctx context.Context, toEmail, customerName string, finalOre, deltaOre int64) error {
	content, err := renderEmailTemplate("price_reconciled.html", priceReconciledEmailData{
		baseEmailData: baseEmailData{
			Title:   "Slutpris för er flytt",
			Heading: "Slutpris för er flytt",
		},
		CustomerName:   customerName,
		FinalFormatted: formatCurrencySEK(finalOre),
		DeltaFormatted: formatCurrencySEK(deltaOre),
		Increased:      deltaOre > 0,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectPriceReconciled, content)
}
