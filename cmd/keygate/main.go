package main

import (
	"os"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/thinkzone/keygate"
	"github.com/thinkzone/keygate/cmd/keygate/config"
	"github.com/thinkzone/keygate/internal/geoip"
	"github.com/thinkzone/keygate/internal/logger"
	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/notify"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	logger.Init(config.Get().Logging.Conf)
	log.Info("Loaded Config")
	c := config.Get()

	replays := keygate.NewMemoryReplayCache()
	if caching := c.Caching; !caching.Disabled && caching.RedisAddr != "" {
		replays = keygate.NewRedisReplayCache(
			&redis.Options{
				Addr:     caching.RedisAddr,
				Username: caching.Username,
				Password: caching.Password,
				DB:       caching.RedisDB,
			},
		)
		log.Info("Loaded Redis replay cache")
	}

	backs, err := config.LoadStorageBackends(c.Storage, c.API.Admin.Argon2idParams)
	if err != nil {
		log.Fatal(err)
	}

	var geo *geoip.Resolver
	if c.GeoIP.DBFile != "" {
		if geo, err = geoip.Open(c.GeoIP.DBFile); err != nil {
			log.WithError(err).Fatal("could not open geoip database")
		}
		log.Info("Loaded GeoIP database")
	}

	notifier, err := notify.NewNotifier(c.Notify.Conf)
	if err != nil {
		log.Fatal(err)
	}

	lifecycle := license.NewLifecycle(backs.Licenses, backs.Events)
	if c.Licensing.KeyPrefix != "" {
		lifecycle.KeyPrefix = c.Licensing.KeyPrefix
	}

	kg, err := keygate.NewKeygate(
		c.Server.ServerConf, lifecycle, backs,
		keygate.Options{
			Geo:   geo,
			Admin: c.API.Admin.Config,
		},
	)
	if err != nil {
		log.Fatal(err)
	}

	kg.AddValidateEndpoint(c.Endpoints.Validate)
	kg.AddUpdateCheckEndpoint(c.Endpoints.UpdateCheck)
	for _, w := range c.Endpoints.Webhooks {
		if w.DaysValid <= 0 {
			w.DaysValid = c.Licensing.DefaultDaysValid
		}
		kg.AddPurchaseWebhookEndpoint(w, notifier, replays)
	}

	kg.Start()
}
