package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"

	"github.com/hazz-dev/dataprobe/internal/check"
	"github.com/hazz-dev/dataprobe/internal/config"
)

var emailBody = template.Must(template.New("email").Parse(
	`<h1>Data quality check "{{.CheckID}}" failed.</h1><br>
<b>Check:</b> {{.CheckID}}<br>
<b>Description:</b> {{.Description}}<br>
<b>Execution date:</b> {{.ExecutedAt}}<br>
<b>SQL:</b> {{.SQL}}<br>
<b>Result:</b> {{.Value}} is not within thresholds {{.Min}} and {{.Max}}`))

// EmailSink sends an HTML notification for failed checks to a
// configured recipient list over SMTP with TLS.
type EmailSink struct {
	cfg config.EmailConfig
}

// NewEmailSink creates an EmailSink from SMTP settings.
func NewEmailSink(cfg config.EmailConfig) *EmailSink {
	return &EmailSink{cfg: cfg}
}

func (e *EmailSink) Name() string { return "email" }

func (e *EmailSink) Send(_ context.Context, res check.Result, sqlText string) error {
	body, err := HTMLBody(res, sqlText)
	if err != nil {
		return err
	}

	em := email.NewEmail()
	em.From = e.cfg.From
	em.To = append([]string{}, e.cfg.To...)
	em.Subject = fmt.Sprintf("Data quality check %q failed", res.CheckID)
	em.HTML = []byte(body)

	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}
	tlsConfig := &tls.Config{
		ServerName: e.cfg.SMTPHost,
	}
	return em.SendWithTLS(addr, auth, tlsConfig)
}

// HTMLBody renders the notification body for a failed result. The
// measured value is rounded to two decimals for display; the record
// itself keeps full precision.
func HTMLBody(res check.Result, sqlText string) (string, error) {
	data := struct {
		CheckID     string
		Description string
		ExecutedAt  string
		SQL         string
		Value       string
		Min         float64
		Max         float64
	}{
		CheckID:     res.CheckID,
		Description: res.Description,
		ExecutedAt:  res.ExecutedAt.Format(time.RFC3339),
		SQL:         sqlText,
		Value:       fmt.Sprintf("%.2f", res.Value),
		Min:         res.MinThreshold,
		Max:         res.MaxThreshold,
	}
	var buf bytes.Buffer
	if err := emailBody.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering email body: %w", err)
	}
	return buf.String(), nil
}
