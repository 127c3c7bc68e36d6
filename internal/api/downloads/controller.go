package downloads

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Syphon/internal/extractor"
	"github.com/hbomb79/Syphon/internal/media"
	"github.com/hbomb79/Syphon/pkg/logger"
	"github.com/labstack/echo/v4"
)

var log = logger.Get("Downloads")

type (
	// Service is the orchestration surface this controller depends on;
	// satisfied by media.Service.
	Service interface {
		Info(ctx context.Context, url string) (*media.Metadata, error)
		Formats(ctx context.Context, url string) (*media.Metadata, []media.Format, error)
		Download(ctx context.Context, url string, quality string) (*media.Download, error)
		DownloadFormat(ctx context.Context, url string, formatID string) (*media.Download, error)
		ExtractorVersion(ctx context.Context) string
	}

	downloadRequest struct {
		VideoURL string `json:"videoUrl" validate:"required"`
		Quality  string `json:"quality"`
	}

	Controller struct {
		service  Service
		validate *validator.Validate
	}
)

func New(service Service) *Controller {
	return &Controller{service: service, validate: validator.New()}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/info", controller.info)
	eg.POST("/formats", controller.formats)
	eg.POST("/download", controller.download)
	eg.POST("/download/format", controller.downloadFormat)
}

func (controller *Controller) info(ec echo.Context) error {
	request, err := controller.bindRequest(ec)
	if err != nil {
		return err
	}

	metadata, err := controller.service.Info(ec.Request().Context(), request.VideoURL)
	if err != nil {
		return httpErrorFromService(err)
	}

	return ec.JSON(http.StatusOK, newInfoResponse(metadata))
}

func (controller *Controller) formats(ec echo.Context) error {
	request, err := controller.bindRequest(ec)
	if err != nil {
		return err
	}

	metadata, formats, err := controller.service.Formats(ec.Request().Context(), request.VideoURL)
	if err != nil {
		return httpErrorFromService(err)
	}

	return ec.JSON(http.StatusOK, newFormatsResponse(metadata, formats))
}

func (controller *Controller) download(ec echo.Context) error {
	request, err := controller.bindRequest(ec)
	if err != nil {
		return err
	}

	download, err := controller.service.Download(ec.Request().Context(), request.VideoURL, request.Quality)
	if err != nil {
		return httpErrorFromService(err)
	}

	return controller.relayDownload(ec, download)
}

func (controller *Controller) downloadFormat(ec echo.Context) error {
	formatID := ec.QueryParam("format_id")
	if formatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "format_id query parameter is required")
	}

	request, err := controller.bindRequest(ec)
	if err != nil {
		return err
	}

	download, err := controller.service.DownloadFormat(ec.Request().Context(), request.VideoURL, formatID)
	if err != nil {
		return httpErrorFromService(err)
	}

	return controller.relayDownload(ec, download)
}

// relayDownload streams the payload to the client. Headers are prepared
// up front but only committed by the first chunk write, so a subprocess
// that dies before producing any bytes can still be reported with a
// proper status code.
func (controller *Controller) relayDownload(ec echo.Context, download *media.Download) error {
	defer download.Stream.Close()

	response := ec.Response()
	response.Header().Set(echo.HeaderContentType, "video/mp4")
	response.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", download.Filename))

	sent, err := download.Stream.Relay(response)
	if err != nil {
		if !response.Committed {
			return httpErrorFromService(err)
		}

		// Bytes are already on the wire; the status line cannot change.
		log.Emit(logger.WARNING, "Download of %s aborted after %d bytes: %s\n", download.Filename, sent, err.Error())
		return nil
	}

	return nil
}

func (controller *Controller) bindRequest(ec echo.Context) (*downloadRequest, error) {
	request := &downloadRequest{}
	if err := ec.Bind(request); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := controller.validate.Struct(request); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "videoUrl is required")
	}

	return request, nil
}

// httpErrorFromService maps orchestration failures to HTTP statuses:
// extractor diagnostics are client errors (bad/unsupported URLs),
// undecodable metadata is ours to own, and a full stream table asks the
// client to retry later.
func httpErrorFromService(err error) error {
	var extractionErr *extractor.ExtractionError
	switch {
	case errors.As(err, &extractionErr):
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("extractor error: %s", extractionErr.Stderr))
	case errors.Is(err, media.ErrMetadataUnavailable):
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to parse video information")
	case errors.Is(err, media.ErrBusy):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is at capacity, retry later")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
