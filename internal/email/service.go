package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/redmonkez12/go-contacts-api/internal/config"
)

// Message is one confirmation email waiting to be sent
type Message struct {
	To       string
	Username string
	Token    string
	// BaseURL is the public API address the confirmation link points at
	BaseURL string
	// ExpiresIn is the lifetime of Token, shown to the recipient
	ExpiresIn time.Duration
}

// ConfirmationLink builds the URL the recipient clicks
func (m Message) ConfirmationLink() string {
	return strings.TrimRight(m.BaseURL, "/") + "/api/auth/confirmed_email/" + m.Token
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends mail through an SMTP relay
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	fromName     string
	template     *template.Template
	send         sendFunc
}

func NewService(cfg config.EmailConfig) *Service {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}

	return &Service{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUser:     cfg.SMTPUser,
		smtpPassword: cfg.SMTPPassword,
		fromEmail:    from,
		fromName:     cfg.FromName,
		template:     template.Must(template.New("confirmation").Parse(confirmationTemplate)),
		send:         sendMail,
	}
}

// SendConfirmation sends the email-confirmation link to msg.To
// The whole SMTP exchange is bounded by ctx.
func (s *Service) SendConfirmation(ctx context.Context, msg Message) error {
	body, err := s.renderConfirmation(msg)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(ctx, msg.To, "Confirm your email", body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	var auth smtp.Auth
	if s.smtpUser != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return s.send(ctx, addr, auth, s.fromEmail, []string{to}, msg)
}

// sendMail is smtp.SendMail with the dial and every read and write bound to ctx
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid smtp address %q: %w", addr, err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}
	// Cancellation without a deadline still unblocks a stalled server
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to: %w", err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish body: %w", err)
	}

	return c.Quit()
}

func (s *Service) renderConfirmation(msg Message) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Username  string
		Link      string
		ExpiresIn string
	}{
		Username:  msg.Username,
		Link:      msg.ConfirmationLink(),
		ExpiresIn: humanDuration(msg.ExpiresIn),
	}

	if err := s.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

// humanDuration renders d in the largest whole unit, e.g. "24 hours" or "90 minutes"
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case d <= 0:
		return ""
	case d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return plural(int64((d+time.Second-1)/time.Second), "second")
	}
}

const confirmationTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .button {
            display: inline-block;
            background-color: #2563EB;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
        }
    </style>
</head>
<body>
    <h2>Hi {{.Username}},</h2>
    <p>Thanks for registering with Contacts. Please confirm your email address to start managing your contacts.</p>

    <a href="{{.Link}}" class="button">Confirm Email</a>

    <p>Or paste this link into your browser:</p>
    <p style="word-break: break-all;">{{.Link}}</p>

    <div class="footer">
        <p>{{if .ExpiresIn}}The link expires in {{.ExpiresIn}}. {{end}}If you did not sign up, ignore this email.</p>
    </div>
</body>
</html>
`
