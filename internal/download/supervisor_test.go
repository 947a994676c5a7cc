package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/library"
)

// fakeLauncher hands out processes the test completes by hand
type fakeLauncher struct {
	mu      sync.Mutex
	err     error
	starts  int
	lastURL string
	lastDir string
	procs   []*Process
}

func (f *fakeLauncher) Start(_ context.Context, url, destDir string, _ LogFunc) (*Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.lastURL = url
	f.lastDir = destDir
	if f.err != nil {
		return nil, f.err
	}
	p := &Process{done: make(chan struct{})}
	f.procs = append(f.procs, p)
	return p, nil
}

func (f *fakeLauncher) finishLast(exitCode int) {
	f.mu.Lock()
	p := f.procs[len(f.procs)-1]
	f.mu.Unlock()
	p.exitCode = exitCode
	close(p.done)
}

func testSupervisor(t *testing.T, launcher Launcher) (*library.Registry, *Supervisor) {
	t.Helper()
	reg := library.NewRegistry(t.TempDir())
	rec := library.NewReconciler(reg, nil, zap.NewNop())
	return reg, NewSupervisor(reg, launcher, rec, zap.NewNop())
}

func waitNotRunning(t *testing.T, s *Supervisor, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !s.IsRunning(id)
	}, 5*time.Second, 10*time.Millisecond, "process handle was not released")
}

func TestStartSyncUnknownPlaylist(t *testing.T) {
	_, sup := testSupervisor(t, &fakeLauncher{})

	err := sup.StartSync(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStartSyncSingleFlight(t *testing.T) {
	launcher := &fakeLauncher{}
	reg, sup := testSupervisor(t, launcher)
	p := reg.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	require.NoError(t, sup.StartSync(context.Background(), "pl1"))
	assert.True(t, sup.IsRunning("pl1"))
	assert.Equal(t, library.StatusSyncing, p.CurrentStatus())
	assert.Equal(t, p.URL, launcher.lastURL)
	assert.Equal(t, p.DownloadDir, launcher.lastDir)

	err := sup.StartSync(context.Background(), "pl1")
	require.Error(t, err)
	assert.True(t, apperrors.IsAlreadyInProgress(err))
	assert.Equal(t, 1, launcher.starts, "second start must not spawn")

	launcher.finishLast(0)
	waitNotRunning(t, sup, "pl1")

	require.Eventually(t, func() bool {
		return p.CurrentStatus() == library.StatusIdle
	}, 5*time.Second, 10*time.Millisecond)
	snap := p.Snapshot(false)
	assert.NotNil(t, snap.LastSyncAt)
	assert.Empty(t, snap.ErrorMessage)
}

func TestStartSyncNonzeroExit(t *testing.T) {
	launcher := &fakeLauncher{}
	reg, sup := testSupervisor(t, launcher)
	p := reg.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	require.NoError(t, sup.StartSync(context.Background(), "pl1"))
	launcher.finishLast(2)
	waitNotRunning(t, sup, "pl1")

	require.Eventually(t, func() bool {
		return p.CurrentStatus() == library.StatusError
	}, 5*time.Second, 10*time.Millisecond)
	snap := p.Snapshot(false)
	assert.Equal(t, "exited with code 2", snap.ErrorMessage)
	assert.Nil(t, snap.LastSyncAt, "failed run must not stamp last sync time")
}

func TestStartSyncSpawnFailure(t *testing.T) {
	launcher := &fakeLauncher{err: apperrors.NewProcessSpawnError("failed to launch spotdl", errors.New("no such file"))}
	reg, sup := testSupervisor(t, launcher)
	p := reg.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	err := sup.StartSync(context.Background(), "pl1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeProcessSpawn, apperrors.GetErrorType(err))
	assert.False(t, sup.IsRunning("pl1"))
	assert.Equal(t, library.StatusError, p.CurrentStatus())

	// the slot is released, so a retry reaches the launcher again
	_ = sup.StartSync(context.Background(), "pl1")
	assert.Equal(t, 2, launcher.starts)
}

func TestStartSyncRestartAfterCompletion(t *testing.T) {
	launcher := &fakeLauncher{}
	reg, sup := testSupervisor(t, launcher)
	reg.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	require.NoError(t, sup.StartSync(context.Background(), "pl1"))
	launcher.finishLast(0)
	waitNotRunning(t, sup, "pl1")

	require.NoError(t, sup.StartSync(context.Background(), "pl1"))
	assert.Equal(t, 2, launcher.starts)
	launcher.finishLast(0)
	waitNotRunning(t, sup, "pl1")
}

func TestActiveCount(t *testing.T) {
	launcher := &fakeLauncher{}
	reg, sup := testSupervisor(t, launcher)
	reg.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)
	reg.GetOrCreate("pl2", "https://open.spotify.com/playlist/pl2", false)

	require.NoError(t, sup.StartSync(context.Background(), "pl1"))
	require.NoError(t, sup.StartSync(context.Background(), "pl2"))
	assert.Equal(t, 2, sup.ActiveCount())

	launcher.finishLast(0)
	require.Eventually(t, func() bool {
		return sup.ActiveCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
}
