package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// BrevoConf configures delivery through the Brevo transactional mail API.
type BrevoConf struct {
	APIKey string `yaml:"api_key"`
	// URL overrides the API endpoint; used in tests.
	URL string `yaml:"url"`
}

const brevoSendURL = "https://api.brevo.com/v3/smtp/email"

type brevoNotifier struct {
	conf   Conf
	url    string
	client *http.Client
}

func newBrevoNotifier(conf Conf) (*brevoNotifier, error) {
	if conf.Brevo.APIKey == "" {
		return nil, errors.New("brevo notifier requires an api key")
	}
	if conf.From == "" {
		return nil, errors.New("brevo notifier requires a from address")
	}
	url := conf.Brevo.URL
	if url == "" {
		url = brevoSendURL
	}
	return &brevoNotifier{
		conf:   conf,
		url:    url,
		client: &http.Client{Timeout: SendTimeout},
	}, nil
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoMail struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent"`
}

func (n *brevoNotifier) Send(ctx context.Context, recipient, licenseKey string) error {
	mail := brevoMail{
		Sender:      brevoAddress{Email: n.conf.From, Name: n.conf.FromName},
		To:          []brevoAddress{{Email: recipient}},
		Subject:     n.conf.Subject,
		TextContent: mailBody(licenseKey),
	}
	body, err := json.Marshal(mail)
	if err != nil {
		return errors.WithStack(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", n.conf.Brevo.APIKey)
	res, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "brevo")
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return errors.Errorf("brevo returned status %d: %s", res.StatusCode, msg)
	}
	return nil
}

func mailBody(licenseKey string) string {
	return fmt.Sprintf(
		"Thank you for your purchase.\n\n"+
			"Your license key is:\n\n    %s\n\n"+
			"Enter it in the application's activation dialog. The key is "+
			"bound to the first device it is activated on.\n",
		licenseKey,
	)
}
