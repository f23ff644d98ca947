package config

import (
	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/thinkzone/keygate"
)

type serverConf struct {
	keygate.ServerConf `yaml:",inline"`
}

func (c *serverConf) validate() error {
	if c.Port == 0 {
		c.Port = 8365
	}
	if c.TLS.Enabled {
		if c.TLS.Cert == "" || c.TLS.Key == "" {
			return errors.New("tls enabled but cert or key not set")
		}
		if !fileutils.FileExists(c.TLS.Cert) {
			return errors.Errorf("tls cert '%s' does not exist", c.TLS.Cert)
		}
		if !fileutils.FileExists(c.TLS.Key) {
			return errors.Errorf("tls key '%s' does not exist", c.TLS.Key)
		}
	}
	return nil
}

type licensingConf struct {
	// KeyPrefix is the product tag on generated keys.
	KeyPrefix string `yaml:"key_prefix"`
	// DefaultDaysValid applies when a webhook does not set its own window.
	DefaultDaysValid int `yaml:"default_days_valid"`
}

func (c *licensingConf) validate() error {
	if c.DefaultDaysValid < 0 {
		return errors.New("default_days_valid must not be negative")
	}
	return nil
}

var defaultLicensingConf = licensingConf{
	DefaultDaysValid: 365,
}
