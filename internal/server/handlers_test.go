package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spotivault/spotivault/internal/api"
	"github.com/spotivault/spotivault/internal/download"
	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/library"
	"github.com/spotivault/spotivault/internal/metadata"
	"github.com/spotivault/spotivault/internal/monitoring"
)

// -- Stubs -------------------------------------------------------------------

type stubMetadataClient struct{}

func (stubMetadataClient) GetPlaylistMetadata(_ context.Context, id string) (*api.PlaylistMetadata, error) {
	return &api.PlaylistMetadata{
		ID:          id,
		Name:        "Road Trip",
		Owner:       "alice",
		TracksTotal: 1,
		URL:         "https://open.spotify.com/playlist/" + id,
	}, nil
}

func (stubMetadataClient) GetPlaylistTracks(_ context.Context, _ string) ([]api.TrackInfo, error) {
	return []api.TrackInfo{{Name: "Karma Police", Artists: []string{"Radiohead"}}}, nil
}

type stubSync struct {
	err     error
	started []string
}

func (s *stubSync) StartSync(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.started = append(s.started, id)
	return nil
}

func (s *stubSync) ActiveCount() int { return len(s.started) }

type stubJobs struct {
	job *download.Job
	err error
}

func (s *stubJobs) Start(_ context.Context, url string) (*download.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.job = &download.Job{ID: "job-1", URL: url, Status: download.JobRunning, CreatedAt: time.Now()}
	return s.job, nil
}

func (s *stubJobs) Get(id string) (*download.Job, error) {
	if s.job != nil && s.job.ID == id {
		return s.job, nil
	}
	return nil, apperrors.NewNotFoundError("job " + id + " not found")
}

func (s *stubJobs) Summaries() []download.JobSummary {
	if s.job == nil {
		return nil
	}
	return []download.JobSummary{s.job.Snapshot(false)}
}

// -- Helpers -----------------------------------------------------------------

type fixture struct {
	router   *gin.Engine
	registry *library.Registry
	sync     *stubSync
	jobs     *stubJobs
	tasks    *apperrors.TaskGroup
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	registry := library.NewRegistry(t.TempDir())
	reconciler := library.NewReconciler(registry, stubMetadataClient{}, logger)
	covers, err := metadata.NewCoverCache(t.TempDir())
	require.NoError(t, err)
	health := monitoring.NewHealthChecker("test", t.TempDir())
	tasks := apperrors.NewTaskGroup(logger)
	syncSvc := &stubSync{}
	jobSvc := &stubJobs{}

	h := NewHandler(context.Background(), registry, reconciler, syncSvc, jobSvc, covers, health, tasks, logger)
	r := gin.New()
	h.RegisterRoutes(r)

	return &fixture{router: r, registry: registry, sync: syncSvc, jobs: jobSvc, tasks: tasks}
}

func (f *fixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// -- Tests -------------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decodeJSON(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestListPlaylistsEmpty(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/api/playlists", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"playlists":[]}`, w.Body.String())
}

func TestAddPlaylist(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/playlists",
		`{"url":"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	var body library.Summary
	decodeJSON(t, w, &body)
	assert.Equal(t, "37i9dQZF1DXcBWIGoYBM5M", body.ID)
	assert.True(t, body.Manual)

	// wait for the background refresh spawned by the handler
	f.tasks.Wait()
	p, err := f.registry.Get("37i9dQZF1DXcBWIGoYBM5M")
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", p.Snapshot(false).Name)
}

func TestAddPlaylistInvalidBody(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/playlists", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	decodeJSON(t, w, &body)
	assert.Equal(t, "validation", body.Error)
}

func TestAddPlaylistInvalidURL(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/playlists", `{"url":"https://example.com/not-a-playlist"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPlaylistNotFound(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/api/playlists/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body ErrorResponse
	decodeJSON(t, w, &body)
	assert.Equal(t, "not_found", body.Error)
}

func TestGetPlaylistWithTracks(t *testing.T) {
	f := setupServer(t)
	f.registry.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	refresh := f.do(t, http.MethodPost, "/api/playlists/pl1/refresh", "")
	assert.Equal(t, http.StatusAccepted, refresh.Code)
	f.tasks.Wait()

	w := f.do(t, http.MethodGet, "/api/playlists/pl1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body library.Summary
	decodeJSON(t, w, &body)
	assert.Equal(t, "Road Trip", body.Name)
	require.Len(t, body.Tracks, 1)
	assert.Equal(t, "radiohead-karma-police", body.Tracks[0].Key)
}

func TestStartSync(t *testing.T) {
	f := setupServer(t)
	f.registry.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	w := f.do(t, http.MethodPost, "/api/playlists/pl1/sync", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"pl1"}, f.sync.started)
}

func TestStartSyncConflict(t *testing.T) {
	f := setupServer(t)
	f.sync.err = apperrors.NewAlreadyInProgressError("sync already running for playlist pl1")

	w := f.do(t, http.MethodPost, "/api/playlists/pl1/sync", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	var body ErrorResponse
	decodeJSON(t, w, &body)
	assert.Equal(t, "already_in_progress", body.Error)
}

func TestRefreshUnknownPlaylist(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/playlists/nope/refresh", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaylistLogs(t *testing.T) {
	f := setupServer(t)
	p := f.registry.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)
	p.AppendLog("stdout", "downloading track 1")

	w := f.do(t, http.MethodGet, "/api/playlists/pl1/logs", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Logs []library.LogEntry `json:"logs"`
	}
	decodeJSON(t, w, &body)
	require.Len(t, body.Logs, 1)
	assert.Equal(t, "downloading track 1", body.Logs[0].Line)
}

func TestPlaylistFiles(t *testing.T) {
	f := setupServer(t)
	p := f.registry.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)
	require.NoError(t, os.MkdirAll(p.DownloadDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(p.DownloadDir, "song.mp3"), []byte("audio"), 0644))

	w := f.do(t, http.MethodGet, "/api/playlists/pl1/files", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Files []FileEntry `json:"files"`
	}
	decodeJSON(t, w, &body)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "song.mp3", body.Files[0].Name)
	assert.Equal(t, int64(5), body.Files[0].Size)
}

func TestPlaylistArchive(t *testing.T) {
	f := setupServer(t)
	p := f.registry.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)
	require.NoError(t, os.MkdirAll(p.DownloadDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(p.DownloadDir, "song.mp3"), []byte("audio"), 0644))

	w := f.do(t, http.MethodGet, "/api/playlists/pl1/archive", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(w.Header().Get("Content-Disposition"), "playlist-pl1.zip"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "song.mp3", zr.File[0].Name)
}

func TestPlaylistArchiveNoContent(t *testing.T) {
	f := setupServer(t)
	f.registry.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	w := f.do(t, http.MethodGet, "/api/playlists/pl1/archive", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaylistCoverWithoutImages(t *testing.T) {
	f := setupServer(t)
	f.registry.GetOrCreate("pl1", "https://open.spotify.com/playlist/pl1", false)

	w := f.do(t, http.MethodGet, "/api/playlists/pl1/cover", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartJob(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/jobs", `{"url":"https://open.spotify.com/track/abc"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	var body download.JobSummary
	decodeJSON(t, w, &body)
	assert.Equal(t, "job-1", body.ID)
	assert.Equal(t, download.JobRunning, body.Status)

	list := f.do(t, http.MethodGet, "/api/jobs", "")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "job-1")
}

func TestStartJobMissingURL(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/jobs", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobNotFound(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
