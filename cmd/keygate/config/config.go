// Package config loads and validates the yaml configuration of the
// keygate server.
package config

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"
)

// configValidator is implemented by config sections that can check and
// default their own values.
type configValidator interface {
	validate() error
}

// Config holds the complete server configuration.
type Config struct {
	Server    serverConf    `yaml:"server"`
	Logging   loggingConf   `yaml:"logging"`
	Storage   storageConf   `yaml:"storage"`
	Caching   cachingConf   `yaml:"caching"`
	Endpoints Endpoints     `yaml:"endpoints"`
	Notify    notifyConf    `yaml:"notify"`
	Licensing licensingConf `yaml:"licensing"`
	API       apiConf       `yaml:"api"`
	GeoIP     geoIPConf     `yaml:"geoip"`
}

var conf *Config

// Get returns the loaded Config.
func Get() *Config {
	return conf
}

var possibleConfigLocations = []string{
	"config.yaml",
	"keygate.yaml",
	"/etc/keygate/config.yaml",
}

// Load reads the config file and populates the global Config. An empty
// file argument searches the default locations. Any error is fatal.
func Load(file string) {
	if file == "" {
		for _, loc := range possibleConfigLocations {
			if fileutils.FileExists(loc) {
				file = loc
				break
			}
		}
	}
	if file == "" {
		log.Fatal("no config file found")
	}
	content, err := os.ReadFile(file)
	if err != nil {
		log.WithError(err).Fatal("could not read config file")
	}
	conf = &Config{
		Logging:   defaultLoggingConf,
		Storage:   defaultStorageConf,
		Endpoints: defaultEndpointConf,
		Licensing: defaultLicensingConf,
		API:       defaultAPIConf,
	}
	if err = yaml.Unmarshal(content, conf); err != nil {
		log.WithError(err).Fatal("could not parse config file")
	}
	sections := []configValidator{
		&conf.Server,
		&conf.Logging,
		&conf.Storage,
		&conf.Endpoints,
		&conf.Licensing,
		&conf.API,
		&conf.GeoIP,
	}
	for _, s := range sections {
		if err = s.validate(); err != nil {
			log.WithError(err).Fatal("invalid config")
		}
	}
}

// geoIPConf points at a maxmind country database; empty disables GeoIP.
type geoIPConf struct {
	DBFile string `yaml:"db_file"`
}

func (c *geoIPConf) validate() error {
	if c.DBFile != "" && !fileutils.FileExists(c.DBFile) {
		return errors.Errorf("geoip database '%s' does not exist", c.DBFile)
	}
	return nil
}
