package keygate

import (
	"context"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/license"
)

type validateRequest struct {
	LicenseKey string `json:"license_key" form:"license_key"`
	DeviceID   string `json:"device_id" form:"device_id"`
}

// AddValidateEndpoint adds the public validation endpoint. Business
// rejections (unknown key, expired, bound elsewhere) are 200 responses
// with valid=false; only malformed bodies and storage outages produce
// error statuses.
func (kg *Keygate) AddValidateEndpoint(endpoint EndpointConf) {
	if endpoint.Path == "" {
		return
	}
	kg.server.Post(
		endpoint.Path, func(ctx *fiber.Ctx) error {
			var req validateRequest
			if err := ctx.BodyParser(&req); err != nil {
				ctx.Status(fiber.StatusBadRequest)
				return ctx.JSON(api.ErrorInvalidRequest("could not parse request body: " + err.Error()))
			}
			if req.LicenseKey == "" {
				ctx.Status(fiber.StatusBadRequest)
				return ctx.JSON(api.ErrorInvalidRequest("required parameter 'license_key' not given"))
			}

			reqCtx, cancel := context.WithTimeout(ctx.UserContext(), kg.serverConf.StorageTimeout)
			defer cancel()
			result, err := kg.lifecycle.Validate(
				reqCtx, req.LicenseKey, req.DeviceID,
				license.CallerInfo{Country: kg.geo.Country(ctx.IP())},
			)
			if err != nil {
				log.WithError(err).Error("validation storage round trip failed")
				ctx.Status(fiber.StatusServiceUnavailable)
				return ctx.JSON(api.ErrorStoreUnavailable("please retry"))
			}
			return ctx.JSON(result)
		},
	)
}
