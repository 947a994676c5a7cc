package download

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/library"
	"github.com/spotivault/spotivault/internal/monitoring"
)

// Supervisor owns the live downloader process for each playlist and enforces
// at most one per playlist. When a process exits, for any reason, the
// playlist's download directory is rescanned so partial results show up.
type Supervisor struct {
	registry   *library.Registry
	launcher   Launcher
	reconciler *library.Reconciler
	logger     *zap.Logger

	mu     sync.Mutex
	active map[string]*Process
}

// NewSupervisor creates a supervisor over the given registry
func NewSupervisor(registry *library.Registry, launcher Launcher, reconciler *library.Reconciler, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		registry:   registry,
		launcher:   launcher,
		reconciler: reconciler,
		logger:     logger,
		active:     make(map[string]*Process),
	}
}

// StartSync launches the downloader for the playlist and returns immediately.
// A second call for the same playlist while the first process is alive fails
// with an already-in-progress error.
func (s *Supervisor) StartSync(ctx context.Context, id string) error {
	p, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, running := s.active[id]; running {
		s.mu.Unlock()
		return apperrors.NewAlreadyInProgressError(fmt.Sprintf("sync already running for playlist %s", id))
	}
	// reserve the slot before spawning so a concurrent StartSync for the
	// same playlist cannot slip past the check
	s.active[id] = nil
	s.mu.Unlock()

	p.BeginSync()
	p.AppendLog("system", fmt.Sprintf("starting download into %s", p.DownloadDir))

	proc, err := s.launcher.Start(ctx, p.URL, p.DownloadDir, p.AppendLog)
	if err != nil {
		s.release(id)
		p.FailSync(err.Error())
		monitoring.RecordError(string(apperrors.GetErrorType(err)))
		s.logger.Error("failed to launch downloader",
			zap.String("playlist_id", id),
			zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.active[id] = proc
	s.mu.Unlock()
	monitoring.RecordSyncStart()

	s.logger.Info("downloader started",
		zap.String("playlist_id", id),
		zap.String("dir", p.DownloadDir))

	go s.await(p, proc, time.Now())
	return nil
}

// await blocks until the process exits, records the outcome, and rescans the
// download directory either way
func (s *Supervisor) await(p *library.Playlist, proc *Process, started time.Time) {
	<-proc.Done()
	s.release(p.ID)

	code := proc.ExitCode()
	if code == 0 {
		p.FinishSync()
		p.AppendLog("system", "download completed")
		s.logger.Info("downloader completed",
			zap.String("playlist_id", p.ID),
			zap.Duration("duration", time.Since(started)))
	} else {
		exitErr := apperrors.NewProcessExitError(code)
		p.FailSync(exitErr.Message)
		p.AppendLog("system", exitErr.Message)
		monitoring.RecordError(string(apperrors.ErrTypeProcessExit))
		s.logger.Warn("downloader failed",
			zap.String("playlist_id", p.ID),
			zap.Int("exit_code", code),
			zap.Duration("duration", time.Since(started)))
	}
	monitoring.RecordSyncComplete(code == 0, time.Since(started))

	// surface whatever landed on disk, including partial results from a
	// failed run
	s.reconciler.ReconcileDownloads(p)
}

func (s *Supervisor) release(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// IsRunning reports whether a downloader process is live for the playlist
func (s *Supervisor) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.active[id]
	return running
}

// ActiveCount returns the number of live downloader processes
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
