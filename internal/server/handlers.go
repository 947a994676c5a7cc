package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spotivault/spotivault/internal/api"
	"github.com/spotivault/spotivault/internal/archive"
	"github.com/spotivault/spotivault/internal/download"
	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/library"
	"github.com/spotivault/spotivault/internal/metadata"
	"github.com/spotivault/spotivault/internal/monitoring"
)

// SyncService starts downloader processes for tracked playlists
type SyncService interface {
	StartSync(ctx context.Context, id string) error
	ActiveCount() int
}

// JobService tracks one-shot downloads
type JobService interface {
	Start(ctx context.Context, url string) (*download.Job, error)
	Get(id string) (*download.Job, error)
	Summaries() []download.JobSummary
}

// Handler holds the HTTP handlers for the dashboard API.
type Handler struct {
	// baseCtx outlives individual requests; downloader processes are tied
	// to it, not to the request that started them
	baseCtx    context.Context
	registry   *library.Registry
	reconciler *library.Reconciler
	supervisor SyncService
	jobs       JobService
	covers     *metadata.CoverCache
	health     *monitoring.HealthChecker
	tasks      *apperrors.TaskGroup
	logger     *zap.Logger
}

// NewHandler creates the dashboard API handler
func NewHandler(
	baseCtx context.Context,
	registry *library.Registry,
	reconciler *library.Reconciler,
	supervisor SyncService,
	jobs JobService,
	covers *metadata.CoverCache,
	health *monitoring.HealthChecker,
	tasks *apperrors.TaskGroup,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		baseCtx:    baseCtx,
		registry:   registry,
		reconciler: reconciler,
		supervisor: supervisor,
		jobs:       jobs,
		covers:     covers,
		health:     health,
		tasks:      tasks,
		logger:     logger,
	}
}

// RegisterRoutes sets up all API routes on the given Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/playlists", h.ListPlaylists)
		apiGroup.POST("/playlists", h.AddPlaylist)
		apiGroup.GET("/playlists/:id", h.GetPlaylist)
		apiGroup.POST("/playlists/:id/sync", h.StartSync)
		apiGroup.POST("/playlists/:id/refresh", h.RefreshPlaylist)
		apiGroup.GET("/playlists/:id/logs", h.PlaylistLogs)
		apiGroup.GET("/playlists/:id/files", h.PlaylistFiles)
		apiGroup.GET("/playlists/:id/archive", h.PlaylistArchive)
		apiGroup.GET("/playlists/:id/cover", h.PlaylistCover)

		apiGroup.GET("/jobs", h.ListJobs)
		apiGroup.POST("/jobs", h.StartJob)
		apiGroup.GET("/jobs/:id", h.GetJob)
	}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.JSON(apperrors.StatusCode(err), ErrorResponse{
		Error:   string(apperrors.GetErrorType(err)),
		Message: message,
	})
}

// Health returns the aggregated health check response
func (h *Handler) Health(c *gin.Context) {
	check := h.health.Check(h.registry.Count(), h.supervisor.ActiveCount())
	status := http.StatusOK
	if check.Status == monitoring.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, check)
}

// ListPlaylists returns summaries of all tracked playlists
func (h *Handler) ListPlaylists(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"playlists": h.registry.Summaries()})
}

type addPlaylistRequest struct {
	URL string `json:"url" binding:"required"`
}

// AddPlaylist registers a playlist by URL and kicks off its first metadata
// refresh in the background
func (h *Handler) AddPlaylist(c *gin.Context) {
	var req addPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("request body must include a playlist url"))
		return
	}

	id, err := api.ExtractPlaylistID(req.URL)
	if err != nil {
		respondError(c, err)
		return
	}

	p := h.registry.GetOrCreate(id, req.URL, true)
	h.tasks.Go("refresh-"+id, func() error {
		return h.reconciler.RefreshMetadata(h.baseCtx, id)
	})

	c.JSON(http.StatusCreated, p.Snapshot(false))
}

// GetPlaylist returns full playlist detail including per-track status
func (h *Handler) GetPlaylist(c *gin.Context) {
	p, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Snapshot(true))
}

// StartSync launches the downloader for the playlist
func (h *Handler) StartSync(c *gin.Context) {
	if err := h.supervisor.StartSync(h.baseCtx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sync started"})
}

// RefreshPlaylist triggers an immediate metadata refresh in the background
func (h *Handler) RefreshPlaylist(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.registry.Get(id); err != nil {
		respondError(c, err)
		return
	}

	h.tasks.Go("refresh-"+id, func() error {
		return h.reconciler.RefreshMetadata(h.baseCtx, id)
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
}

// PlaylistLogs returns the bounded downloader log ring
func (h *Handler) PlaylistLogs(c *gin.Context) {
	p, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": p.LogsSnapshot()})
}

// FileEntry describes one downloaded file with its embedded tags when they
// are readable
type FileEntry struct {
	Name    string              `json:"name"`
	Size    int64               `json:"size"`
	ModTime time.Time           `json:"mod_time"`
	Tags    *metadata.TrackTags `json:"tags,omitempty"`
}

// PlaylistFiles lists the audio files currently on disk for the playlist
func (h *Handler) PlaylistFiles(c *gin.Context) {
	p, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	names, err := library.ListAudioFiles(p.DownloadDir)
	if err != nil {
		respondError(c, err)
		return
	}

	files := make([]FileEntry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(p.DownloadDir, name)
		entry := FileEntry{Name: name}
		if info, err := os.Stat(path); err == nil {
			entry.Size = info.Size()
			entry.ModTime = info.ModTime()
		}
		// unreadable tags just leave the field empty
		if tags, err := metadata.ReadTags(path); err == nil {
			entry.Tags = tags
		}
		files = append(files, entry)
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// PlaylistArchive streams the playlist's download directory as a zip file
func (h *Handler) PlaylistArchive(c *gin.Context) {
	p, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := os.Stat(p.DownloadDir); err != nil {
		respondError(c, apperrors.NewNotFoundError(fmt.Sprintf("no downloaded content for playlist %s", p.ID)))
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "playlist-"+p.ID+".zip"))
	if err := archive.StreamDir(c.Writer, p.DownloadDir); err != nil {
		// headers are already out, all we can do is log
		h.logger.Warn("archive stream failed",
			zap.String("playlist_id", p.ID),
			zap.Error(err))
	}
}

// PlaylistCover serves the playlist's cover art thumbnail
func (h *Handler) PlaylistCover(c *gin.Context) {
	p, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	snap := p.Snapshot(false)
	if len(snap.Images) == 0 {
		respondError(c, apperrors.NewNotFoundError(fmt.Sprintf("playlist %s has no cover image", p.ID)))
		return
	}

	data, mimeType, err := h.covers.Get(snap.Images[0])
	if err != nil {
		respondError(c, apperrors.NewAPIError("failed to fetch cover image", err))
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, mimeType, data)
}

// ListJobs returns summaries of all one-shot jobs
func (h *Handler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.Summaries()})
}

type startJobRequest struct {
	URL string `json:"url" binding:"required"`
}

// StartJob launches a one-shot download for an arbitrary URL
func (h *Handler) StartJob(c *gin.Context) {
	var req startJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("request body must include a url"))
		return
	}

	job, err := h.jobs.Start(h.baseCtx, req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job.Snapshot(false))
}

// GetJob returns one job including its logs
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job.Snapshot(true))
}
