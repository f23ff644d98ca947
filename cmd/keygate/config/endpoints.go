package config

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/thinkzone/keygate"
)

// Endpoints holds configuration for the public endpoints.
type Endpoints struct {
	Validate    keygate.EndpointConf  `yaml:"validate"`
	UpdateCheck keygate.EndpointConf  `yaml:"update_check"`
	Webhooks    []keygate.WebhookConf `yaml:"webhooks"`
}

var defaultEndpointConf = Endpoints{
	Validate: keygate.EndpointConf{
		Path: "/validate",
	},
	UpdateCheck: keygate.EndpointConf{
		Path: "/app/version",
	},
}

func (e *Endpoints) validate() error {
	for i := range e.Webhooks {
		w := &e.Webhooks[i]
		if w.Provider == "" {
			return errors.Errorf("webhook %d: provider must be set", i)
		}
		if w.Path == "" {
			w.Path = "/webhook/" + w.Provider
		}
		if !strings.HasPrefix(w.Path, "/") {
			w.Path = "/" + w.Path
		}
		if w.Secret != "" && w.SignatureHeader == "" {
			return errors.Errorf("webhook '%s': secret set but signature_header missing", w.Provider)
		}
	}
	return nil
}
