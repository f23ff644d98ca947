package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/storage"
	"github.com/thinkzone/keygate/storage/model"
)

// registerAppVersion wires the update manifest handlers. The manifest is
// what the public update-check endpoint serves to clients.
func registerAppVersion(r fiber.Router, kv model.KeyValueStore) {
	g := r.Group("/app-version")

	g.Get("/", func(c *fiber.Ctx) error {
		m, err := storage.GetUpdateManifest(kv)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		if m == nil {
			return c.Status(fiber.StatusNotFound).JSON(api.ErrorNotFound("no release published"))
		}
		return c.JSON(m)
	})

	g.Put("/", func(c *fiber.Ctx) error {
		var m storage.UpdateManifest
		if err := c.BodyParser(&m); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("invalid body"))
		}
		if m.LatestVersion == "" || m.DownloadURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("latest_version and download_url are required"))
		}
		if err := storage.SetUpdateManifest(kv, m); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		return c.JSON(m)
	})
}
