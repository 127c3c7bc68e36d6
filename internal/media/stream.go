package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Syphon/internal/extractor"
	"github.com/hbomb79/Syphon/pkg/logger"
)

// Stream is a lazy, finite, non-restartable sequence of media payload
// chunks backed by a live extractor process. It is exclusively owned by
// the request that opened it; Close must be called on every path so the
// child process is reaped rather than leaked.
type Stream struct {
	id     uuid.UUID
	proc   extractor.Process
	cancel context.CancelFunc

	closeOnce sync.Once
	release   func()
}

// NewStream wraps an already-spawned extractor process in a Stream. The
// caller remains responsible for ensuring Close is eventually called.
func NewStream(proc extractor.Process) *Stream {
	return &Stream{id: uuid.New(), proc: proc, cancel: func() {}}
}

func (stream *Stream) Read(buffer []byte) (int, error) {
	return stream.proc.Read(buffer)
}

func (stream *Stream) Close() error {
	var err error
	stream.closeOnce.Do(func() {
		err = stream.proc.Close()
		stream.cancel()
		if stream.release != nil {
			stream.release()
		}
	})

	return err
}

// Relay pumps the stream to the writer in fixed-size chunks, flushing
// after each one so that backpressure from the transport throttles how
// fast the child's stdout is consumed. It returns the number of bytes
// delivered alongside any pre-delivery failure; once bytes have been
// sent a subprocess failure can no longer be surfaced to the client
// (the response status is already committed), so it is logged and
// swallowed here instead.
func (stream *Stream) Relay(writer io.Writer) (int64, error) {
	defer stream.Close()

	buffer := make([]byte, extractor.ChunkSize)
	var sent int64
	for {
		n, readErr := stream.proc.Read(buffer)
		if n > 0 {
			if _, writeErr := writer.Write(buffer[:n]); writeErr != nil {
				log.Emit(logger.STOP, "Client abandoned stream %s after %d bytes; terminating extractor\n", stream.id, sent)
				return sent, writeErr
			}
			sent += int64(n)

			if flusher, ok := writer.(http.Flusher); ok {
				flusher.Flush()
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}

			return sent, readErr
		}
	}

	if err := stream.proc.Wait(); err != nil {
		if sent == 0 {
			return 0, err
		}

		// Mid-stream failure: the partial payload cannot be retracted.
		log.Emit(logger.ERROR, "Extractor for stream %s failed after %d bytes were already delivered: %s\n", stream.id, sent, err.Error())
	}

	return sent, nil
}

// openStream starts a streaming-mode invocation writing the selected
// format to stdout. The stream inherits the request context (client
// disconnection kills the child) bounded by the configured wall-clock
// timeout.
func (service *Service) openStream(ctx context.Context, url string, expression string) (*Stream, error) {
	streamCtx, cancel := context.WithTimeout(ctx, service.config.StreamTimeout)
	proc, err := service.invoker.SpawnStreaming(streamCtx,
		url,
		"-f", expression,
		"-o", "-",
		"--no-playlist",
		"--no-warnings",
		"--no-check-certificate",
	)
	if err != nil {
		cancel()
		return nil, err
	}

	stream := &Stream{id: uuid.New(), proc: proc, cancel: cancel}
	log.Emit(logger.NEW, "Opened stream %s for %s (format expression '%s')\n", stream.id, url, expression)

	return stream, nil
}
