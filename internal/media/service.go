package media

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/hbomb79/Syphon/internal/extractor"
	"github.com/hbomb79/Syphon/pkg/logger"
)

var log = logger.Get("Media")

// ErrBusy indicates the configured concurrent stream ceiling has been
// reached; the caller must resubmit later. OS process-table entries are
// the one resource shared between requests, so they're the one we bound.
var ErrBusy = errors.New("too many concurrent streams")

const (
	filenameLimit     = 200
	filenameExtension = ".mp4"
)

// Go's \w matches ASCII word characters only, so non-ASCII letters are
// replaced along with punctuation. Deliberate: the output is pure ASCII,
// which keeps the byte-wise length cap on character boundaries and the
// filename safe on any client filesystem.
var (
	unsafeFilenameChars = regexp.MustCompile(`[^\w\s-]`)
	filenameWhitespace  = regexp.MustCompile(`\s+`)
)

type ServiceConfig struct {
	MaxConcurrentStreams int           `yaml:"max_concurrent_streams" env:"MAX_CONCURRENT_STREAMS" env-default:"4"`
	StreamTimeout        time.Duration `yaml:"stream_timeout" env:"STREAM_TIMEOUT" env-default:"1h"`
}

type (
	// Download couples a live payload stream with the filename the client
	// should save it under. The filename is derived strictly from an
	// independent metadata invocation, never from the streaming one.
	Download struct {
		Filename string
		Stream   *Stream
	}

	// Service orchestrates the metadata and streaming invocations of the
	// extractor tool for a single request. Each request exclusively owns
	// the processes it spawns; the only cross-request state is the stream
	// slot semaphore.
	Service struct {
		config      ServiceConfig
		invoker     extractor.Invoker
		streamSlots chan struct{}
	}
)

func New(config ServiceConfig, invoker extractor.Invoker) *Service {
	return &Service{
		config:      config,
		invoker:     invoker,
		streamSlots: make(chan struct{}, config.MaxConcurrentStreams),
	}
}

// Info fetches the metadata document for the addressed video.
func (service *Service) Info(ctx context.Context, url string) (*Metadata, error) {
	return fetchMetadata(ctx, service.invoker, url)
}

// Formats fetches metadata and returns the formats that carry at least
// one media stream, alongside the full document for titling.
func (service *Service) Formats(ctx context.Context, url string) (*Metadata, []Format, error) {
	metadata, err := fetchMetadata(ctx, service.invoker, url)
	if err != nil {
		return nil, nil, err
	}

	return metadata, PlayableFormats(metadata.Formats), nil
}

// Download resolves the video's title via a metadata invocation, then
// opens a payload stream using the format expression for the requested
// quality tier (unrecognised tiers are quietly treated as 'best').
func (service *Service) Download(ctx context.Context, url string, quality string) (*Download, error) {
	return service.download(ctx, url, NormaliseQuality(quality).Expression())
}

// DownloadFormat is Download with an explicit format identifier in place
// of a quality tier.
func (service *Service) DownloadFormat(ctx context.Context, url string, formatID string) (*Download, error) {
	return service.download(ctx, url, formatID)
}

func (service *Service) download(ctx context.Context, url string, expression string) (*Download, error) {
	release, err := service.acquireStreamSlot()
	if err != nil {
		return nil, err
	}

	// The slot covers the metadata invocation too; both invocations
	// belong to the one logical download.
	metadata, err := fetchMetadata(ctx, service.invoker, url)
	if err != nil {
		release()
		return nil, err
	}

	stream, err := service.openStream(ctx, url, expression)
	if err != nil {
		release()
		return nil, err
	}
	stream.release = release

	title := metadata.Title
	if title == "" {
		title = "video"
	}

	return &Download{
		Filename: SanitiseFilename(title) + filenameExtension,
		Stream:   stream,
	}, nil
}

// ExtractorVersion reports the version of the underlying extractor tool,
// or 'not found' when it cannot be spawned.
func (service *Service) ExtractorVersion(ctx context.Context) string {
	output, err := service.invoker.SpawnCapturing(ctx, "--version")
	if err != nil {
		return "not found"
	}

	return strings.TrimSpace(string(output))
}

func (service *Service) acquireStreamSlot() (func(), error) {
	select {
	case service.streamSlots <- struct{}{}:
		return func() { <-service.streamSlots }, nil
	default:
		log.Emit(logger.WARNING, "Rejecting download: all %d stream slots in use\n", cap(service.streamSlots))
		return nil, ErrBusy
	}
}

// SanitiseFilename strips a video title down to a safe suggested
// filename: anything outside word characters, whitespace and hyphens
// becomes an underscore, runs of whitespace collapse to one underscore,
// and the result is capped at 200 characters. The mapping is idempotent.
func SanitiseFilename(title string) string {
	name := unsafeFilenameChars.ReplaceAllString(title, "_")
	name = filenameWhitespace.ReplaceAllString(name, "_")
	if len(name) > filenameLimit {
		name = name[:filenameLimit]
	}

	return name
}
