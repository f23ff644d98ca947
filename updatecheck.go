package keygate

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/storage"
)

// AddUpdateCheckEndpoint adds the application update check. Clients pass
// their installed version and get back the published manifest plus a
// flag telling them whether it is newer.
func (kg *Keygate) AddUpdateCheckEndpoint(endpoint EndpointConf) {
	if endpoint.Path == "" {
		return
	}
	kg.server.Get(
		endpoint.Path, func(ctx *fiber.Ctx) error {
			manifest, err := storage.GetUpdateManifest(kg.storages.KV)
			if err != nil {
				log.WithError(err).Error("could not load update manifest")
				ctx.Status(fiber.StatusServiceUnavailable)
				return ctx.JSON(api.ErrorStoreUnavailable("please retry"))
			}
			if manifest == nil {
				ctx.Status(fiber.StatusNotFound)
				return ctx.JSON(api.ErrorNotFound("no release published"))
			}
			res := fiber.Map{
				"latest_version": manifest.LatestVersion,
				"download_url":   manifest.DownloadURL,
			}
			if manifest.Notes != "" {
				res["notes"] = manifest.Notes
			}
			if clientVersion := ctx.Query("version"); clientVersion != "" {
				res["update_available"] = versionLess(clientVersion, manifest.LatestVersion)
			}
			return ctx.JSON(res)
		},
	)
}

// versionLess compares dotted numeric versions segment by segment. A
// missing segment counts as zero, so "1.2" and "1.2.0" are equal.
func versionLess(a, b string) bool {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			return an < bn
		}
	}
	return false
}
