package adminapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage/model"
)

// registerLicenses wires the license management handlers onto the admin
// router. All state changes go through the Lifecycle so they share the
// audit trail with the public endpoints.
func registerLicenses(
	r fiber.Router, lifecycle *license.Lifecycle, events model.LicenseEventStore,
	storageTimeout time.Duration,
) {
	storageCtx := func(c *fiber.Ctx) (context.Context, context.CancelFunc) {
		return context.WithTimeout(c.UserContext(), storageTimeout)
	}

	type createReq struct {
		// LicenseKey registers a pre-agreed key instead of generating one.
		LicenseKey string         `json:"license_key"`
		DaysValid  int            `json:"days_valid"`
		Metadata   map[string]any `json:"metadata"`
	}
	r.Post("/create", func(c *fiber.Ctx) error {
		var req createReq
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("invalid body"))
		}
		if req.DaysValid <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("days_valid must be positive"))
		}
		ctx, cancel := storageCtx(c)
		defer cancel()
		res, err := lifecycle.Issue(
			ctx, license.IssueRequest{
				Key:       req.LicenseKey,
				DaysValid: req.DaysValid,
				Metadata:  req.Metadata,
				Actor:     "admin",
			},
		)
		if err != nil {
			var exists model.AlreadyExistsError
			if errors.As(err, &exists) {
				return c.Status(fiber.StatusConflict).JSON(api.ErrorAlreadyExists("a license with this key already exists"))
			}
			if errors.Is(err, license.ErrInvalidValidity) {
				return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest(err.Error()))
			}
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		return c.Status(fiber.StatusCreated).JSON(
			fiber.Map{
				"ok":          true,
				"license_key": res.Key,
				"key_digest":  res.KeyDigest,
				"expiry":      res.Expiry,
			},
		)
	})

	r.Get("/list", func(c *fiber.Ctx) error {
		opts := model.ListOptions{
			Limit:  c.QueryInt("limit"),
			Offset: c.QueryInt("offset"),
		}
		ctx, cancel := storageCtx(c)
		defer cancel()
		lics, total, err := lifecycle.List(ctx, opts)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		return c.JSON(
			fiber.Map{
				"count":    total,
				"licenses": lics,
			},
		)
	})

	type keyReq struct {
		LicenseKey string `json:"license_key"`
		KeyDigest  string `json:"key_digest"`
	}
	// keyOf accepts either the plaintext key or its digest.
	keyOf := func(req keyReq) string {
		if req.LicenseKey != "" {
			return req.LicenseKey
		}
		return req.KeyDigest
	}
	r.Post("/revoke", func(c *fiber.Ctx) error {
		var req keyReq
		if err := c.BodyParser(&req); err != nil || keyOf(req) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("required parameter 'license_key' or 'key_digest' not given"))
		}
		ctx, cancel := storageCtx(c)
		defer cancel()
		matched, modified, err := lifecycle.Revoke(ctx, keyOf(req))
		if err != nil {
			var notFound model.NotFoundError
			if errors.As(err, &notFound) {
				return c.Status(fiber.StatusNotFound).JSON(api.ErrorNotFound("license not found"))
			}
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		// modified == 0 with matched > 0 means the license was already
		// revoked; that is still a success.
		return c.JSON(
			fiber.Map{
				"matched":  matched,
				"modified": modified,
			},
		)
	})

	r.Post("/reset-license", func(c *fiber.Ctx) error {
		var req keyReq
		if err := c.BodyParser(&req); err != nil || keyOf(req) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("required parameter 'license_key' or 'key_digest' not given"))
		}
		ctx, cancel := storageCtx(c)
		defer cancel()
		if err := lifecycle.ResetBinding(ctx, keyOf(req)); err != nil {
			var notFound model.NotFoundError
			if errors.As(err, &notFound) {
				return c.Status(fiber.StatusNotFound).JSON(api.ErrorNotFound("license not found"))
			}
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	r.Get("/licenses/:digest/events", func(c *fiber.Ctx) error {
		if events == nil {
			return c.Status(fiber.StatusNotFound).JSON(api.ErrorNotFound("audit trail disabled"))
		}
		ctx, cancel := storageCtx(c)
		defer cancel()
		evs, err := events.ForLicense(ctx, c.Params("digest"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		return c.JSON(fiber.Map{"events": evs})
	})
}
