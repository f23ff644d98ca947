package keygate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/duration"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/notify"
)

// WebhookConf holds configuration for a purchase webhook endpoint.
type WebhookConf struct {
	EndpointConf `yaml:",inline"`
	// Provider names the purchase platform; it becomes the path segment
	// under /webhook/ and the source channel in license metadata.
	Provider string `yaml:"provider"`
	// Secret enables payload authenticity verification when non-empty.
	Secret string `yaml:"secret"`
	// SignatureHeader is the header carrying hex(sha256(secret || body)).
	SignatureHeader string `yaml:"signature_header"`
	// DaysValid is the validity window of granted licenses.
	DaysValid int `yaml:"days_valid"`
	// DedupWindow is how long a sale id is remembered for replay
	// suppression.
	DedupWindow duration.DurationOption `yaml:"dedup_window"`
}

// AddPurchaseWebhookEndpoint adds the external issuance entry point: a
// purchase event normalizes into a grant, issues a one-year license, and
// mails the key to the purchaser. The notification is asynchronous and
// its failure never rolls back issuance.
func (kg *Keygate) AddPurchaseWebhookEndpoint(
	conf WebhookConf, notifier notify.Notifier, replays ReplayCache,
) {
	if conf.Path == "" {
		return
	}
	if conf.DaysValid <= 0 {
		conf.DaysValid = 365
	}
	if conf.DedupWindow.Duration() <= 0 {
		conf.DedupWindow = duration.DurationOption(48 * time.Hour)
	}
	kg.server.Post(
		conf.Path, func(ctx *fiber.Ctx) error {
			body := ctx.Body()

			if conf.Secret != "" {
				sig := ctx.Get(conf.SignatureHeader)
				if !verifyPayloadSignature(conf.Secret, body, sig) {
					ctx.Status(fiber.StatusForbidden)
					return ctx.JSON(api.ErrorInvalidSignature("payload signature mismatch"))
				}
			}

			grant, err := normalizeGrant(body, ctx.Get(fiber.HeaderContentType), conf.Provider)
			if err != nil {
				ctx.Status(fiber.StatusBadRequest)
				if errors.Is(err, ErrMissingIdentifier) {
					return ctx.JSON(api.ErrorInvalidRequest("purchaser email missing in payload"))
				}
				return ctx.JSON(api.ErrorInvalidRequest(err.Error()))
			}

			reqCtx, cancel := context.WithTimeout(ctx.UserContext(), kg.serverConf.StorageTimeout)
			defer cancel()

			if grant.SaleID != "" && replays != nil {
				seen, err := replays.Seen(reqCtx, conf.Provider+":"+grant.SaleID, conf.DedupWindow.Duration())
				if err != nil {
					log.WithError(err).Warn("replay cache unavailable, processing event anyway")
				} else if seen {
					log.WithFields(
						log.Fields{"provider": conf.Provider, "sale_id": grant.SaleID},
					).Info("duplicate purchase event, no license issued")
					return ctx.JSON(fiber.Map{"ok": true})
				}
			}

			issued, err := kg.lifecycle.Issue(
				reqCtx, license.IssueRequest{
					DaysValid: conf.DaysValid,
					Metadata:  grant.Metadata(),
					Actor:     conf.Provider,
				},
			)
			if err != nil {
				log.WithError(err).Error("purchase grant issuance failed")
				// Release the dedup mark, otherwise the provider's retry
				// would be swallowed as a duplicate and the purchase lost.
				if grant.SaleID != "" && replays != nil {
					if ferr := replays.Forget(reqCtx, conf.Provider+":"+grant.SaleID); ferr != nil {
						log.WithError(ferr).Warn("could not release replay mark")
					}
				}
				ctx.Status(fiber.StatusServiceUnavailable)
				return ctx.JSON(api.ErrorStoreUnavailable("please retry"))
			}

			kg.scheduleNotification(notifier, grant.Email, issued.Key)

			return ctx.JSON(fiber.Map{"ok": true, "license_key": issued.Key})
		},
	)
}

// scheduleNotification delivers the key to the purchaser on a separate
// goroutine with its own timeout. Issuance success does not depend on
// delivery success.
func (kg *Keygate) scheduleNotification(notifier notify.Notifier, recipient, licenseKey string) {
	if notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notify.SendTimeout)
		defer cancel()
		if err := notifier.Send(ctx, recipient, licenseKey); err != nil {
			log.WithError(err).WithField("recipient", recipient).Error("license notification failed")
		}
	}()
}

// verifyPayloadSignature checks hex(sha256(secret || body)) against the
// presented signature in constant time.
func verifyPayloadSignature(secret string, body []byte, presented string) bool {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(body)
	computed := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(presented))
}

// ReplayCache remembers already-processed external event ids.
type ReplayCache interface {
	// Seen marks key as processed and reports whether it had been seen
	// within the ttl window already.
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget drops the mark for key so a later delivery is processed
	// again. Needed when handling fails after the key was marked.
	Forget(ctx context.Context, key string) error
}
