package config

import (
	"github.com/thinkzone/keygate/api/adminapi"
	"github.com/thinkzone/keygate/notify"
	"github.com/thinkzone/keygate/storage"
)

// apiConf holds API-related configuration
type apiConf struct {
	Admin adminAPIConf `yaml:"admin"`
}

type adminAPIConf struct {
	adminapi.Config `yaml:",inline"`
	Argon2idParams  storage.Argon2idParams `yaml:"password_hashing"`
}

func (c *apiConf) validate() error {
	return nil
}

var defaultAPIConf = apiConf{
	Admin: adminAPIConf{
		Config: adminapi.Config{
			Enabled:      true,
			UsersEnabled: true,
		},
		Argon2idParams: storage.Argon2idParams{
			Time:        1,
			MemoryKiB:   64 * 1024,
			Parallelism: 4,
			KeyLen:      64,
			SaltLen:     32,
		},
	},
}

type notifyConf struct {
	notify.Conf `yaml:",inline"`
}
