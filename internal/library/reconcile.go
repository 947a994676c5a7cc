package library

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spotivault/spotivault/internal/api"
	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/monitoring"
)

// MetadataClient is the slice of the metadata API the reconciler depends on
type MetadataClient interface {
	GetPlaylistMetadata(ctx context.Context, playlistID string) (*api.PlaylistMetadata, error)
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]api.TrackInfo, error)
}

// Reconciler keeps playlist state in step with the metadata API and the
// filesystem. Metadata refreshes replace the track list wholesale; download
// status reconciliation is a pure recomputation from the directory contents.
type Reconciler struct {
	registry *Registry
	client   MetadataClient
	logger   *zap.Logger
	retry    apperrors.RetryConfig
}

// NewReconciler creates a reconciler over the given registry
func NewReconciler(registry *Registry, client MetadataClient, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		client:   client,
		logger:   logger,
		retry:    apperrors.DefaultRetryConfig(),
	}
}

// RefreshMetadata fetches fresh metadata and tracks for one playlist and
// merges them in. On failure the previous state is kept untouched apart from
// the error message; the failure is returned for the caller to log and is
// never fatal.
func (r *Reconciler) RefreshMetadata(ctx context.Context, id string) error {
	p, err := r.registry.Get(id)
	if err != nil {
		return err
	}

	// Refreshes of the same playlist never overlap
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	start := time.Now()

	// transient API failures are retried with backoff before the refresh
	// is recorded as failed
	var meta *api.PlaylistMetadata
	err = apperrors.RetryWithBackoff(ctx, r.retry, func() error {
		var fetchErr error
		meta, fetchErr = r.client.GetPlaylistMetadata(ctx, p.ID)
		return fetchErr
	})
	if err != nil {
		return r.recordRefreshFailure(p, start, err)
	}

	var tracks []api.TrackInfo
	err = apperrors.RetryWithBackoff(ctx, r.retry, func() error {
		var fetchErr error
		tracks, fetchErr = r.client.GetPlaylistTracks(ctx, p.ID)
		return fetchErr
	})
	if err != nil {
		return r.recordRefreshFailure(p, start, err)
	}

	p.mu.Lock()
	p.Name = meta.Name
	p.Owner = meta.Owner
	p.Description = meta.Description
	p.Images = meta.Images
	if meta.URL != "" {
		p.URL = meta.URL
	}
	// tracksTotal is sticky: a transient zero from the API never shrinks it
	if meta.TracksTotal > 0 {
		p.TracksTotal = meta.TracksTotal
	}

	// Full replacement; localStatus resets to pending until the next
	// download status reconciliation
	replaced := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		replaced = append(replaced, Track{
			Name:        t.Name,
			Artists:     t.Artists,
			Key:         TrackKey(t.Artists, t.Name),
			LocalStatus: TrackPending,
		})
	}
	p.Tracks = replaced

	now := time.Now()
	p.LastMetadataRefreshAt = &now
	p.ErrorMessage = ""
	p.mu.Unlock()

	monitoring.RecordMetadataRefresh(true, time.Since(start))
	r.logger.Debug("metadata refreshed",
		zap.String("playlist", p.ID),
		zap.Int("tracks", len(replaced)))

	r.ReconcileDownloads(p)
	return nil
}

// recordRefreshFailure stores the failure on the playlist without touching
// the previously fetched metadata or tracks
func (r *Reconciler) recordRefreshFailure(p *Playlist, start time.Time, err error) error {
	p.mu.Lock()
	p.ErrorMessage = err.Error()
	p.mu.Unlock()

	monitoring.RecordMetadataRefresh(false, time.Since(start))
	monitoring.RecordError(string(apperrors.GetErrorType(err)))
	r.logger.Warn("metadata refresh failed",
		zap.String("playlist", p.ID),
		zap.Error(err))
	return err
}

// RefreshAll refreshes every known playlist sequentially; individual failures
// are already recorded per playlist and are swallowed here.
func (r *Reconciler) RefreshAll(ctx context.Context) {
	for _, p := range r.registry.All() {
		if ctx.Err() != nil {
			return
		}
		_ = r.RefreshMetadata(ctx, p.ID)
	}
}

// ReconcileDownloads recomputes per-track download status for one playlist
// from the files currently in its download directory.
func (r *Reconciler) ReconcileDownloads(p *Playlist) {
	files, err := ListAudioFiles(p.DownloadDir)
	if err != nil {
		// Keep the previous statuses rather than wrongly reset them
		monitoring.RecordError(string(apperrors.ErrTypeFileSystem))
		r.logger.Warn("download scan failed",
			zap.String("playlist", p.ID),
			zap.Error(err))
		return
	}

	fileKeys := make([]string, len(files))
	for i, f := range files {
		fileKeys[i] = FileKey(f)
	}

	p.mu.Lock()
	downloaded := 0
	for i := range p.Tracks {
		if IsDownloaded(p.Tracks[i].Key, fileKeys) {
			p.Tracks[i].LocalStatus = TrackDownloaded
			downloaded++
		} else {
			p.Tracks[i].LocalStatus = TrackPending
		}
	}
	p.DownloadedCount = downloaded
	if p.TracksTotal == 0 {
		p.TracksTotal = len(p.Tracks)
	}
	if downloaded > 0 {
		now := time.Now()
		p.LastContentAt = &now
	}
	p.mu.Unlock()

	monitoring.ReconcileRunsTotal.Inc()
}

// ReconcileAll recomputes download status for every known playlist
func (r *Reconciler) ReconcileAll() {
	for _, p := range r.registry.All() {
		r.ReconcileDownloads(p)
	}
}
