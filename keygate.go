// Package keygate wires the license lifecycle to its HTTP surface: the
// public validation endpoint, the purchase webhook, the update-check
// endpoint, and the admin API.
package keygate

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/api/adminapi"
	"github.com/thinkzone/keygate/internal/geoip"
	"github.com/thinkzone/keygate/internal/version"
	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage/model"
)

const serviceName = "keygate license API"

// EndpointConf is a type for configuring an endpoint with an internal and external path
type EndpointConf struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// IsSet returns a bool indicating if this endpoint was configured or not
func (c EndpointConf) IsSet() bool {
	return c.Path != "" || c.URL != ""
}

// ValidateURL validates that an external URL is set,
// and if not prefixes the internal path with the passed rootURL and sets it
// at the external url
func (c *EndpointConf) ValidateURL(rootURL string) string {
	if c.URL == "" {
		c.URL, _ = url.JoinPath(rootURL, c.Path)
	}
	return c.URL
}

// ServerConf holds the configuration of the http server
type ServerConf struct {
	IPListen          string   `yaml:"ip_listen"`
	Port              int      `yaml:"port"`
	TLS               tlsConf  `yaml:"tls"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	ForwardedIPHeader string   `yaml:"forwarded_ip_header"`
	// StorageTimeout bounds every storage round trip triggered by a request.
	StorageTimeout time.Duration `yaml:"storage_timeout"`
}

type tlsConf struct {
	Enabled      bool   `yaml:"enabled"`
	RedirectHTTP bool   `yaml:"redirect_http"`
	Cert         string `yaml:"cert"`
	Key          string `yaml:"key"`
}

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   20 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	ErrorHandler:   handleError,
	Network:        "tcp",
}

func handleError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if e, ok := err.(*fiber.Error); ok {
		fiberErr = e
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		return ctx.Status(code).JSON(api.ErrorServerError("internal server error"))
	}
	msg := err.Error()
	if fiberErr != nil {
		msg = fiberErr.Message
	}
	return ctx.Status(code).JSON(api.ErrorInvalidRequest(msg))
}

// Keygate is the license server: a fiber app plus the lifecycle and
// storage backends the endpoints act on.
type Keygate struct {
	server     *fiber.App
	serverConf ServerConf
	lifecycle  *license.Lifecycle
	storages   model.Backends
	geo        *geoip.Resolver
}

// Options bundles optional collaborators of the server.
type Options struct {
	// Geo resolves client IPs to countries for the audit trail; nil disables.
	Geo *geoip.Resolver
	// Admin configures the admin API mounted at /admin.
	Admin adminapi.Config
}

// NewKeygate creates a new Keygate server. The admin API is registered
// immediately; the public endpoints are added through the Add*Endpoint
// methods.
func NewKeygate(
	serverConf ServerConf, lifecycle *license.Lifecycle, storages model.Backends, opts Options,
) (*Keygate, error) {
	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		FiberServerConfig.TrustedProxies = tps
		FiberServerConfig.EnableTrustedProxyCheck = true
	}
	FiberServerConfig.ProxyHeader = serverConf.ForwardedIPHeader
	server := fiber.New(FiberServerConfig)
	server.Use(recover.New())
	server.Use(compress.New())
	server.Use(logger.New())
	server.Use(requestid.New())

	if serverConf.StorageTimeout <= 0 {
		serverConf.StorageTimeout = 5 * time.Second
	}

	kg := &Keygate{
		server:     server,
		serverConf: serverConf,
		lifecycle:  lifecycle,
		storages:   storages,
		geo:        opts.Geo,
	}

	server.Get(
		"/", func(ctx *fiber.Ctx) error {
			return ctx.JSON(
				fiber.Map{
					"status":  "ok",
					"service": serviceName,
					"version": version.VERSION,
				},
			)
		},
	)

	if err := adminapi.Register(
		server.Group("/admin"), lifecycle, storages, opts.Admin,
	); err != nil {
		return nil, err
	}
	return kg, nil
}

// Listen starts an http server at the specific address for serving all the
// registered endpoints
func (kg *Keygate) Listen(addr string) error {
	return kg.server.Listen(addr)
}

// Test forwards to the underlying fiber app's Test method
func (kg *Keygate) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	return kg.server.Test(req, msTimeout...)
}

func (kg *Keygate) Start() {
	conf := kg.serverConf
	if !conf.TLS.Enabled {
		log.WithField("port", conf.Port).Info("TLS is disabled starting http server")
		log.WithError(kg.server.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))).Fatal()
	}
	// TLS enabled
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(":80")).Fatal()
		}()
	}
	time.Sleep(time.Millisecond) // This is just for a more pretty output with the tls header printed after the http one
	log.Info("TLS enabled, starting https server on port 443")
	log.WithError(kg.server.ListenTLS(":443", conf.TLS.Cert, conf.TLS.Key)).Fatal()
}
