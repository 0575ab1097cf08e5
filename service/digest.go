package service

import (
	"bytes"
	"finchat/model"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/yuin/goldmark"
)

// DigestService mails each user a weekly spending outlook built from the
// forecast and budget accessors. It reuses the assistant's accessor layer, so
// the same dataAccess flags and anonymization rules apply.
type DigestService struct {
	Accessors *AccessorService
}

func NewDigestService() *DigestService {
	return &DigestService{Accessors: &AccessorService{}}
}

// BuildDigest renders the markdown body for one user. Empty when the user
// has no forecastable data.
func (d *DigestService) BuildDigest(userID uint) (string, error) {
	settings, err := model.GetAISettings(userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Your weekly spending outlook\n\n_%s_\n\n", time.Now().Format("January 2, 2006"))

	sections := 0
	for _, source := range []string{model.SourceForecasts, model.SourceBudgets, model.SourceSubscriptions} {
		docs := d.Accessors.Fetch(userID, source, settings, 5)
		for _, doc := range docs {
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", doc.Title, doc.Content)
			sections++
		}
	}
	if sections == 0 {
		return "", nil
	}
	return b.String(), nil
}

func renderDigestHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}
	return buf.String(), nil
}

// SendDigests runs under cron. SMTP configuration comes from env; when it is
// missing the run is a no-op.
func (d *DigestService) SendDigests() error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	sender := os.Getenv("SMTP_SENDER")
	password := os.Getenv("SMTP_PASSWORD")
	if host == "" || sender == "" {
		logger.Infof("[digest] smtp not configured, skipping run")
		return nil
	}

	users, err := model.ListUsersWithEmail()
	if err != nil {
		return err
	}

	for _, user := range users {
		markdown, err := d.BuildDigest(user.ID)
		if err != nil {
			logger.Warnf("[digest] build failed for user %d: %s", user.ID, err)
			continue
		}
		if markdown == "" {
			continue
		}
		html, err := renderDigestHTML(markdown)
		if err != nil {
			logger.Warnf("[digest] render failed for user %d: %s", user.ID, err)
			continue
		}

		e := email.NewEmail()
		e.From = sender
		e.To = []string{user.Email}
		e.Subject = "Your weekly spending outlook"
		e.Text = []byte(markdown)
		e.HTML = []byte(html)
		addr := fmt.Sprintf("%s:%s", host, port)
		if err := e.Send(addr, smtp.PlainAuth("", sender, password, host)); err != nil {
			logger.Warnf("[digest] send failed for user %d: %s", user.ID, err)
			continue
		}
		logger.Infof("[digest] sent to user %d", user.ID)
	}
	return nil
}
