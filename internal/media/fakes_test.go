package media

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/hbomb79/Syphon/internal/extractor"
)

// fakeProcess stands in for a live extractor child process, serving a
// canned payload and exit status.
type fakeProcess struct {
	mu      sync.Mutex
	reader  *bytes.Reader
	waitErr error
	closed  bool
}

func (proc *fakeProcess) Read(buffer []byte) (int, error) {
	return proc.reader.Read(buffer)
}

func (proc *fakeProcess) Wait() error {
	return proc.waitErr
}

func (proc *fakeProcess) Close() error {
	proc.mu.Lock()
	defer proc.mu.Unlock()

	proc.closed = true
	return proc.waitErr
}

func (proc *fakeProcess) wasClosed() bool {
	proc.mu.Lock()
	defer proc.mu.Unlock()

	return proc.closed
}

var _ extractor.Process = &fakeProcess{}

// fakeInvoker records every spawn and serves canned results, letting the
// fetcher/relay/orchestrator be exercised without real child processes.
type fakeInvoker struct {
	captureOutput []byte
	captureErr    error
	captureCalls  [][]string

	streamPayload []byte
	streamErr     error
	streamWaitErr error
	streamCalls   [][]string
	lastProcess   *fakeProcess
}

func (invoker *fakeInvoker) SpawnCapturing(_ context.Context, args ...string) ([]byte, error) {
	invoker.captureCalls = append(invoker.captureCalls, args)
	if invoker.captureErr != nil {
		return nil, invoker.captureErr
	}

	return invoker.captureOutput, nil
}

func (invoker *fakeInvoker) SpawnStreaming(_ context.Context, args ...string) (extractor.Process, error) {
	invoker.streamCalls = append(invoker.streamCalls, args)
	if invoker.streamErr != nil {
		return nil, invoker.streamErr
	}

	invoker.lastProcess = &fakeProcess{
		reader:  bytes.NewReader(invoker.streamPayload),
		waitErr: invoker.streamWaitErr,
	}
	return invoker.lastProcess, nil
}

var _ extractor.Invoker = &fakeInvoker{}

// countingWriter tallies writes, optionally failing after a set number
// of successful ones to simulate a client disconnecting mid-stream.
type countingWriter struct {
	writes    int
	bytes     int64
	failAfter int
	failErr   error
}

func (writer *countingWriter) Write(payload []byte) (int, error) {
	if writer.failErr != nil && writer.writes >= writer.failAfter {
		return 0, writer.failErr
	}

	writer.writes++
	writer.bytes += int64(len(payload))
	return len(payload), nil
}

var _ io.Writer = &countingWriter{}
