package config

import (
	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/thinkzone/keygate/internal/logger"
)

// loggingConf holds all logging-related configuration under the `logging`
// key.
//
// YAML example:
//
//	logging:
//	  dir: /var/log/keygate
//	  stderr: true
//	  level: INFO
type loggingConf struct {
	logger.Conf `yaml:",inline"`
}

func (c *loggingConf) validate() error {
	if c.Dir != "" && !fileutils.FileExists(c.Dir) {
		return errors.Errorf("logging directory '%s' does not exist", c.Dir)
	}
	return nil
}

var defaultLoggingConf = loggingConf{
	Conf: logger.Conf{
		Level: "INFO",
	},
}
