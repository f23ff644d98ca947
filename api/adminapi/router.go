package adminapi

import (
	"embed"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage/model"
)

//go:embed swagger.html openapi.yaml
var assets embed.FS

// Config controls admin API registration.
type Config struct {
	// Enabled mounts the admin API; when false Register is a no-op.
	Enabled bool `yaml:"enabled"`
	// APIKey is the shared secret expected in the X-Admin-Api-Key header.
	APIKey string `yaml:"api_key"`
	// UsersEnabled mounts the user management routes and enables HTTP
	// Basic authentication against the users store.
	UsersEnabled bool `yaml:"users_enabled"`
	// ServerURL is the externally reachable base URL; used in the served
	// OpenAPI document.
	ServerURL string `yaml:"server_url"`
	// StorageTimeout bounds every storage round trip; defaults to 5s.
	StorageTimeout time.Duration `yaml:"storage_timeout"`
}

// Register mounts all admin API routes under the provided group. At least
// one authentication method (API key or admin users) must be available.
func Register(
	r fiber.Router, lifecycle *license.Lifecycle, storages model.Backends, conf Config,
) error {
	if !conf.Enabled {
		return nil
	}
	if conf.APIKey == "" && !conf.UsersEnabled {
		return errors.New("adminapi: no authentication configured; set an api key or enable users")
	}
	if conf.StorageTimeout <= 0 {
		conf.StorageTimeout = 5 * time.Second
	}

	openapiRaw, err := assets.ReadFile("openapi.yaml")
	if err != nil {
		return errors.Wrap(err, "adminapi: failed to read openapi.yaml")
	}
	openapiData := updateOpenAPIServers(openapiRaw, conf.ServerURL)
	swaggerHTML, err := assets.ReadFile("swagger.html")
	if err != nil {
		return errors.Wrap(err, "adminapi: failed to read swagger.html")
	}

	r.Get(
		"/openapi.yaml", func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, "application/yaml")
			return c.Send(openapiData)
		},
	)
	r.Get(
		"/docs", func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, fiber.MIMETextHTML)
			return c.Send(swaggerHTML)
		},
	)

	r.Use(authMiddleware(conf, storages.Users))

	registerLicenses(r, lifecycle, storages.Events, conf.StorageTimeout)
	registerAppVersion(r, storages.KV)
	if conf.UsersEnabled {
		registerUsers(r, storages.Users)
	}
	return nil
}

func updateOpenAPIServers(doc []byte, serverURL string) []byte {
	if len(serverURL) == 0 {
		return doc
	}
	var full map[string]any
	if err := yaml.Unmarshal(doc, &full); err != nil {
		return doc
	}
	full["servers"] = []map[string]any{
		{
			"url":         serverURL,
			"description": "This instance",
		},
	}
	res, err := yaml.Marshal(full)
	if err != nil {
		return doc
	}
	return res
}
