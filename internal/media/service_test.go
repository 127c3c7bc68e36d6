package media

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hbomb79/Syphon/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitiseFilename(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"My Clip!", "My_Clip_"},
		{"plain", "plain"},
		{"spaced   out", "spaced_out"},
		{"semi-colons; and/slashes", "semi-colons__and_slashes"},
		{"tabs\tand\nnewlines", "tabs_and_newlines"},
		{"hyphen-ok_under_ok", "hyphen-ok_under_ok"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, SanitiseFilename(test.title), "title %q", test.title)
	}
}

func TestSanitiseFilename_Idempotent(t *testing.T) {
	titles := []string{"My Clip!", "a b c", "weird*&^%$#@", strings.Repeat("x y!", 100)}
	for _, title := range titles {
		once := SanitiseFilename(title)
		assert.Equal(t, once, SanitiseFilename(once), "sanitising twice must be a no-op for %q", title)
	}
}

func TestSanitiseFilename_LengthAndCharset(t *testing.T) {
	safe := regexp.MustCompile(`^[\w-]*$`)

	long := SanitiseFilename(strings.Repeat("abcde ", 100))
	assert.LessOrEqual(t, len(long), 200)
	assert.Regexp(t, safe, long)
	assert.Regexp(t, safe, SanitiseFilename("Ünïcode & Émojis 🎥!"))
}

func newTestService(invoker *fakeInvoker) *Service {
	return New(ServiceConfig{MaxConcurrentStreams: 4, StreamTimeout: time.Minute}, invoker)
}

func TestDownload_EndToEnd(t *testing.T) {
	invoker := &fakeInvoker{
		captureOutput: []byte(`{"title": "My Clip!", "ext": "mp4"}`),
		streamPayload: []byte("video bytes"),
	}
	service := newTestService(invoker)

	download, err := service.Download(context.Background(), "https://example.com/v/abc", "720p")
	require.NoError(t, err)
	defer download.Stream.Close()

	assert.Equal(t, "My_Clip_.mp4", download.Filename)

	// Metadata and streaming are independent invocations of the tool.
	require.Len(t, invoker.captureCalls, 1)
	require.Len(t, invoker.streamCalls, 1)
	assert.Contains(t, invoker.streamCalls[0], "best[height<=720][ext=mp4]/best[height<=720]")
	assert.Contains(t, invoker.streamCalls[0], "-o")
	assert.Contains(t, invoker.streamCalls[0], "-")
}

func TestDownload_UntitledVideoGetsDefaultFilename(t *testing.T) {
	invoker := &fakeInvoker{
		captureOutput: []byte(`{"ext": "mp4"}`),
		streamPayload: []byte("bytes"),
	}
	service := newTestService(invoker)

	download, err := service.Download(context.Background(), "https://example.com/v/abc", "best")
	require.NoError(t, err)
	defer download.Stream.Close()

	assert.Equal(t, "video.mp4", download.Filename)
}

func TestDownload_UnrecognisedQualityUsesBest(t *testing.T) {
	invoker := &fakeInvoker{
		captureOutput: []byte(`{"title": "v"}`),
		streamPayload: []byte("bytes"),
	}
	service := newTestService(invoker)

	download, err := service.Download(context.Background(), "https://example.com/v/abc", "8000p")
	require.NoError(t, err)
	defer download.Stream.Close()

	assert.Contains(t, invoker.streamCalls[0], "best[ext=mp4]/best")
}

func TestDownloadFormat_UsesExplicitFormatID(t *testing.T) {
	invoker := &fakeInvoker{
		captureOutput: []byte(`{"title": "v"}`),
		streamPayload: []byte("bytes"),
	}
	service := newTestService(invoker)

	download, err := service.DownloadFormat(context.Background(), "https://example.com/v/abc", "137")
	require.NoError(t, err)
	defer download.Stream.Close()

	assert.Contains(t, invoker.streamCalls[0], "-f")
	assert.Contains(t, invoker.streamCalls[0], "137")
}

func TestDownload_MetadataFailureNeverSpawnsStream(t *testing.T) {
	invoker := &fakeInvoker{captureErr: &extractor.ExtractionError{ExitCode: 1, Stderr: "ERROR: Unsupported URL"}}
	service := newTestService(invoker)

	_, err := service.Download(context.Background(), "https://example.com/v/abc", "best")

	var extractionErr *extractor.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Empty(t, invoker.streamCalls, "streaming subprocess must not be spawned when metadata fails")
}

func TestDownload_ConcurrencyCeiling(t *testing.T) {
	invoker := &fakeInvoker{
		captureOutput: []byte(`{"title": "v"}`),
		streamPayload: []byte("bytes"),
	}
	service := New(ServiceConfig{MaxConcurrentStreams: 1, StreamTimeout: time.Minute}, invoker)

	first, err := service.Download(context.Background(), "https://example.com/v/abc", "best")
	require.NoError(t, err)

	_, err = service.Download(context.Background(), "https://example.com/v/abc", "best")
	assert.ErrorIs(t, err, ErrBusy)

	// Closing the held stream frees its slot for the next request.
	first.Stream.Close()
	second, err := service.Download(context.Background(), "https://example.com/v/abc", "best")
	require.NoError(t, err)
	second.Stream.Close()
}

func TestDownload_SlotReleasedOnMetadataFailure(t *testing.T) {
	invoker := &fakeInvoker{captureErr: &extractor.ExtractionError{ExitCode: 1, Stderr: "nope"}}
	service := New(ServiceConfig{MaxConcurrentStreams: 1, StreamTimeout: time.Minute}, invoker)

	_, err := service.Download(context.Background(), "https://example.com/v/abc", "best")
	require.Error(t, err)

	// The failed attempt must not permanently consume the only slot.
	_, err = service.Download(context.Background(), "https://example.com/v/abc", "best")
	var extractionErr *extractor.ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestFormats_FiltersMetadataOnlyEntries(t *testing.T) {
	invoker := &fakeInvoker{captureOutput: []byte(`{
		"title": "v",
		"formats": [
			{"format_id": "sb0", "vcodec": "none", "acodec": "none"},
			{"format_id": "22", "vcodec": "avc1", "acodec": "mp4a"}
		]
	}`)}
	service := newTestService(invoker)

	metadata, formats, err := service.Formats(context.Background(), "https://example.com/v/abc")

	require.NoError(t, err)
	assert.Equal(t, "v", metadata.Title)
	require.Len(t, formats, 1)
	assert.Equal(t, "22", formats[0].FormatID)
}

func TestExtractorVersion(t *testing.T) {
	invoker := &fakeInvoker{captureOutput: []byte("2024.04.09\n")}
	assert.Equal(t, "2024.04.09", newTestService(invoker).ExtractorVersion(context.Background()))

	failing := &fakeInvoker{captureErr: &extractor.ExtractionError{ExitCode: 127, Stderr: "not installed"}}
	assert.Equal(t, "not found", newTestService(failing).ExtractorVersion(context.Background()))
}
