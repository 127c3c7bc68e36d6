package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/hbomb79/Syphon/internal/api/downloads"
	"github.com/hbomb79/Syphon/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

const serviceVersion = "2.0.0"

type (
	RestConfig struct {
		HostAddr       string   `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"API_ALLOWED_ORIGINS" env-default:"https://all-video-downloader-two.vercel.app"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	versionReporter interface {
		ExtractorVersion(context.Context) string
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router. Its
	// sole responsibility is declaring the routes Syphon exposes and the
	// CORS policy; all extraction behaviour lives behind the downloads
	// controller's service.
	RestGateway struct {
		config             *RestConfig
		ec                 *echo.Echo
		extractor          versionReporter
		downloadController controller
	}
)

func NewRestGateway(config *RestConfig, downloadService downloads.Service) *RestGateway {
	ec := echo.New()
	ec.HidePort = true
	ec.HideBanner = true

	gateway := &RestGateway{
		config:             config,
		ec:                 ec,
		extractor:          downloadService,
		downloadController: downloads.New(downloadService),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
		// Streaming responses carry the suggested filename in their
		// disposition header; browsers can't read it unless exposed.
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))

	ec.GET("/", gateway.serviceInfo)
	ec.GET("/health", gateway.health)
	gateway.downloadController.SetRoutes(ec.Group(""))

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.NEW, "Starting HTTP server on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

func (gateway *RestGateway) serviceInfo(ec echo.Context) error {
	return ec.JSON(http.StatusOK, map[string]any{
		"service": "Syphon",
		"status":  "operational",
		"version": serviceVersion,
		"endpoints": map[string]string{
			"/info":     "POST - Get video information",
			"/formats":  "POST - List available formats",
			"/download": "POST - Stream a video download",
			"/health":   "GET - Health check",
		},
	})
}

func (gateway *RestGateway) health(ec echo.Context) error {
	return ec.JSON(http.StatusOK, map[string]string{
		"status":            "healthy",
		"extractor_version": gateway.extractor.ExtractorVersion(ec.Request().Context()),
	})
}
