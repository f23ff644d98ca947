package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
)

// SMTPConf configures delivery through a plain SMTP submission server.
type SMTPConf struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type smtpNotifier struct {
	conf Conf
}

func newSMTPNotifier(conf Conf) (*smtpNotifier, error) {
	if conf.SMTP.Host == "" {
		return nil, errors.New("smtp notifier requires a host")
	}
	if conf.From == "" {
		return nil, errors.New("smtp notifier requires a from address")
	}
	if conf.SMTP.Port == 0 {
		conf.SMTP.Port = 587
	}
	return &smtpNotifier{conf: conf}, nil
}

func (n *smtpNotifier) Send(_ context.Context, recipient, licenseKey string) error {
	var msg strings.Builder
	from := n.conf.From
	if n.conf.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.conf.FromName, n.conf.From)
	}
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.conf.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(mailBody(licenseKey))

	addr := fmt.Sprintf("%s:%d", n.conf.SMTP.Host, n.conf.SMTP.Port)
	var auth smtp.Auth
	if n.conf.SMTP.Username != "" {
		auth = smtp.PlainAuth("", n.conf.SMTP.Username, n.conf.SMTP.Password, n.conf.SMTP.Host)
	}
	err := smtp.SendMail(addr, auth, n.conf.From, []string{recipient}, []byte(msg.String()))
	return errors.Wrap(err, "smtp")
}
