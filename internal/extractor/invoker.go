package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/hbomb79/Syphon/pkg/logger"
)

var log = logger.Get("Extractor")

// ChunkSize is the read granularity used when relaying a streaming
// invocation's stdout. Large enough to avoid per-chunk syscall overhead
// on a typical pipe, small enough to keep relay latency bounded.
const ChunkSize = 8 * 1024

type Config struct {
	BinPath string `yaml:"bin_path" env:"EXTRACTOR_BIN_PATH" env-default:"yt-dlp"`
}

// ExtractionError is raised when the extractor tool exits non-zero. The
// tool reports failures solely via its exit code and stderr, so both are
// captured here for the caller to surface.
type ExtractionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extractor exited with code %d: %s", e.ExitCode, e.Stderr)
}

type (
	// Process is a live streaming-mode invocation. Reads pull from the
	// child's stdout; a zero-length read (io.EOF) is the only
	// end-of-stream sentinel. Wait reaps the child and reports its exit
	// status, Close forcefully terminates it first. Both are safe to call
	// more than once - the child is reaped exactly once per spawn.
	Process interface {
		io.ReadCloser
		Wait() error
	}

	// Invoker abstracts the spawning of the external extractor tool so
	// that consumers can be tested against a fake process rather than a
	// real child process.
	Invoker interface {
		// SpawnCapturing runs the tool to completion and returns its
		// entire stdout. A non-zero exit is reported as *ExtractionError
		// carrying the tool's stderr.
		SpawnCapturing(ctx context.Context, args ...string) ([]byte, error)

		// SpawnStreaming starts the tool and returns immediately with a
		// live handle on its stdout. The caller owns the returned Process
		// and must ensure either Wait or Close is eventually called.
		SpawnStreaming(ctx context.Context, args ...string) (Process, error)
	}
)

type commandInvoker struct {
	binPath string
}

func NewInvoker(config Config) Invoker {
	return &commandInvoker{binPath: config.BinPath}
}

func (invoker *commandInvoker) SpawnCapturing(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, invoker.binPath, args...)

	// Never inherit the parent's stdio; the tool's output must not
	// interleave with our own logging.
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Emit(logger.DEBUG, "Spawning capturing invocation %s %v\n", invoker.binPath, args)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExtractionError{ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}

		return nil, fmt.Errorf("failed to spawn %s: %w", invoker.binPath, err)
	}

	return stdout.Bytes(), nil
}

func (invoker *commandInvoker) SpawnStreaming(ctx context.Context, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, invoker.binPath, args...)

	// A streaming child may chatter on stderr for its whole (potentially
	// hours-long) lifetime; retain only the tail for error reporting.
	stderr := &stderrTail{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe for %s: %w", invoker.binPath, err)
	}

	log.Emit(logger.DEBUG, "Spawning streaming invocation %s %v\n", invoker.binPath, args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", invoker.binPath, err)
	}

	return &liveProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type liveProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *stderrTail

	reapOnce sync.Once
	waitErr  error
}

func (proc *liveProcess) Read(buffer []byte) (int, error) {
	return proc.stdout.Read(buffer)
}

// Wait reaps the child process, observing its exit status exactly once no
// matter how many times it's called. The stderr buffer is only consulted
// after the reap, at which point the runtime guarantees no further writes.
func (proc *liveProcess) Wait() error {
	proc.reapOnce.Do(func() {
		proc.waitErr = proc.cmd.Wait()
	})

	if proc.waitErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(proc.waitErr, &exitErr) {
		return &ExtractionError{ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(proc.stderr.String())}
	}

	return proc.waitErr
}

// stderrTailLimit bounds how much of a streaming child's stderr is
// retained for error reporting. The tool's final lines carry the
// diagnostic that matters.
const stderrTailLimit = 4 * 1024

// stderrTail is an io.Writer retaining only the most recent
// stderrTailLimit bytes written to it.
type stderrTail struct {
	buf []byte
}

func (tail *stderrTail) Write(payload []byte) (int, error) {
	tail.buf = append(tail.buf, payload...)
	if excess := len(tail.buf) - stderrTailLimit; excess > 0 {
		kept := copy(tail.buf, tail.buf[excess:])
		tail.buf = tail.buf[:kept]
	}

	return len(payload), nil
}

func (tail *stderrTail) String() string { return string(tail.buf) }

// Close terminates the child if it's still running, then reaps it. Used
// when the consumer abandons the stream early (e.g. the downstream client
// disconnected) - the child must not be left running to completion.
func (proc *liveProcess) Close() error {
	proc.stdout.Close()
	if proc.cmd.Process != nil {
		if err := proc.cmd.Process.Kill(); err == nil {
			log.Emit(logger.STOP, "Killed streaming extractor process (pid=%d)\n", proc.cmd.Process.Pid)
		}
	}

	return proc.Wait()
}
