package notify

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// SendTimeout bounds a single notification delivery attempt.
const SendTimeout = 15 * time.Second

// Notifier delivers a freshly issued license key to its purchaser.
type Notifier interface {
	Send(ctx context.Context, recipient, licenseKey string) error
}

// Conf selects and configures the delivery channel.
type Conf struct {
	// Type is one of "brevo", "smtp" or "none".
	Type string `yaml:"type"`

	// Subject line of the key delivery mail. Optional.
	Subject string `yaml:"subject"`
	// From is the sender address.
	From string `yaml:"from"`
	// FromName is the display name of the sender. Optional.
	FromName string `yaml:"from_name"`

	Brevo BrevoConf `yaml:"brevo"`
	SMTP  SMTPConf  `yaml:"smtp"`
}

const defaultSubject = "Your SmartCOPY license key"

// NewNotifier builds the Notifier described by conf. Type "none" or an
// empty type yields a nil Notifier, meaning no delivery.
func NewNotifier(conf Conf) (Notifier, error) {
	if conf.Subject == "" {
		conf.Subject = defaultSubject
	}
	switch conf.Type {
	case "", "none":
		return nil, nil
	case "brevo":
		return newBrevoNotifier(conf)
	case "smtp":
		return newSMTPNotifier(conf)
	default:
		return nil, errors.Errorf("unknown notifier type '%s'", conf.Type)
	}
}
