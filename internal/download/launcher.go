package download

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	apperrors "github.com/spotivault/spotivault/internal/errors"
)

var commandContext = exec.CommandContext

// LogFunc receives one line of downloader output tagged with its stream
// ("stdout" or "stderr")
type LogFunc func(stream, line string)

// Launcher starts external downloader processes that write audio files into
// a destination directory.
type Launcher interface {
	Start(ctx context.Context, url, destDir string, onLine LogFunc) (*Process, error)
}

// Process is the ownership handle for one live downloader invocation
type Process struct {
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
	waitErr  error
}

// Done is closed once the process has exited and both streams are drained
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode is valid after Done is closed; -1 means the process did not run
// to a normal exit
func (p *Process) ExitCode() int {
	return p.exitCode
}

// Running reports whether the process has not yet exited
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// CLI launches the configured downloader executable. The process runs with
// the destination directory as its working directory so relative output
// lands in the right place.
type CLI struct {
	binary    string
	extraArgs []string
}

// NewCLI creates a launcher for the given executable
func NewCLI(binary string, extraArgs []string) *CLI {
	return &CLI{binary: binary, extraArgs: extraArgs}
}

// Start launches the downloader for url targeting destDir. Output lines are
// delivered to onLine as they arrive.
func (c *CLI) Start(ctx context.Context, url, destDir string, onLine LogFunc) (*Process, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, apperrors.NewFileSystemError(fmt.Sprintf("failed to create %s", destDir), err)
	}

	args := append(append([]string{}, c.extraArgs...), url)
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	cmd.Dir = destDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperrors.NewProcessSpawnError("failed to open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperrors.NewProcessSpawnError("failed to open stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperrors.NewProcessSpawnError(fmt.Sprintf("failed to launch %s", c.binary), err)
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, "stdout", stdout, onLine)
	go streamLines(&wg, "stderr", stderr, onLine)

	go func() {
		wg.Wait()
		err := cmd.Wait()
		p.waitErr = err
		switch {
		case err == nil:
			p.exitCode = 0
		default:
			if exitErr, ok := err.(*exec.ExitError); ok {
				p.exitCode = exitErr.ExitCode()
			} else {
				p.exitCode = -1
			}
		}
		close(p.done)
	}()

	return p, nil
}

// streamLines delivers scanner lines to the callback until the pipe closes
func streamLines(wg *sync.WaitGroup, stream string, r io.Reader, onLine LogFunc) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(stream, scanner.Text())
		}
	}
}
