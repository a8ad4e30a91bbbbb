package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"gopkg.in/gomail.v2"
)

const alertBody = `Sync run failed.

Source:  {{.Source}}
Time:    {{.Time}}
Error:   {{.Message}}

The sync log row has been finalized as "error"; the next incremental run
will re-fetch from the last successful watermark.
`

var alertTemplate = template.Must(template.New("alert").Parse(alertBody))

type AlertSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

func NewAlertSender(host string, port int, user, password, from, to string) *AlertSender {
	return &AlertSender{Host: host, Port: port, User: user, Password: password, From: from, To: to}
}

func (s *AlertSender) SendSyncFailure(source, message string) error {
	var body bytes.Buffer
	err := alertTemplate.Execute(&body, map[string]string{
		"Source":  source,
		"Time":    time.Now().Format(time.RFC3339),
		"Message": message,
	})
	if err != nil {
		return fmt.Errorf("render alert body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", fmt.Sprintf("[funnel-sync] %s sync failed", source))
	m.SetBody("text/plain", body.String())

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}
