package library

import (
	"sync"
	"time"
)

// Status is the sync state of a playlist
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// LocalStatus is the download state of a single track
type LocalStatus string

const (
	TrackPending    LocalStatus = "pending"
	TrackDownloaded LocalStatus = "downloaded"
)

// LogCapacity bounds the per-playlist log ring; oldest entries are evicted first
const LogCapacity = 500

// placeholderName is shown until the first successful metadata refresh
const placeholderName = "Loading..."

// Track is a single playlist entry as reported by the metadata API
type Track struct {
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	// Key is the normalized matching key, recomputed on every metadata refresh
	Key         string      `json:"key"`
	LocalStatus LocalStatus `json:"local_status"`
}

// LogEntry is one timestamped, stream-tagged downloader output line
type LogEntry struct {
	Time   time.Time `json:"time"`
	Stream string    `json:"stream"`
	Line   string    `json:"line"`
}

// Playlist is the authoritative in-memory state for one tracked playlist.
// Fields are guarded by mu; metadata refreshes additionally serialize on
// refreshMu so two refreshes of the same playlist never overlap.
type Playlist struct {
	mu        sync.Mutex
	refreshMu sync.Mutex

	ID          string
	URL         string
	Name        string
	Owner       string
	Description string
	Images      []string

	TracksTotal int
	Tracks      []Track

	Status                Status
	LastSyncAt            *time.Time
	LastMetadataRefreshAt *time.Time
	LastContentAt         *time.Time
	DownloadedCount       int
	ErrorMessage          string

	DownloadDir string
	Manual      bool

	Logs []LogEntry
}

// Summary is a snapshot projection of a playlist with no live references
type Summary struct {
	ID                    string     `json:"id"`
	URL                   string     `json:"url"`
	Name                  string     `json:"name"`
	Owner                 string     `json:"owner"`
	Description           string     `json:"description,omitempty"`
	Images                []string   `json:"images,omitempty"`
	TracksTotal           int        `json:"tracks_total"`
	Tracks                []Track    `json:"tracks,omitempty"`
	Status                Status     `json:"status"`
	LastSyncAt            *time.Time `json:"last_sync_at"`
	LastMetadataRefreshAt *time.Time `json:"last_metadata_refresh_at"`
	LastContentAt         *time.Time `json:"last_content_at"`
	DownloadedCount       int        `json:"downloaded_count"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	Manual                bool       `json:"manual"`
}

// AppendLog appends a timestamped line to the bounded log ring
func (p *Playlist) AppendLog(stream, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Logs = append(p.Logs, LogEntry{Time: time.Now(), Stream: stream, Line: line})
	if len(p.Logs) > LogCapacity {
		p.Logs = p.Logs[len(p.Logs)-LogCapacity:]
	}
}

// LogsSnapshot returns a copy of the log ring
func (p *Playlist) LogsSnapshot() []LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]LogEntry, len(p.Logs))
	copy(out, p.Logs)
	return out
}

// Snapshot returns a detached copy of the playlist state. Tracks are included
// only when withTracks is set; the summary list endpoint omits them.
func (p *Playlist) Snapshot(withTracks bool) Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(withTracks)
}

func (p *Playlist) snapshotLocked(withTracks bool) Summary {
	s := Summary{
		ID:                    p.ID,
		URL:                   p.URL,
		Name:                  p.Name,
		Owner:                 p.Owner,
		Description:           p.Description,
		TracksTotal:           p.TracksTotal,
		Status:                p.Status,
		LastSyncAt:            p.LastSyncAt,
		LastMetadataRefreshAt: p.LastMetadataRefreshAt,
		LastContentAt:         p.LastContentAt,
		DownloadedCount:       p.DownloadedCount,
		ErrorMessage:          p.ErrorMessage,
		Manual:                p.Manual,
	}
	s.Images = append([]string(nil), p.Images...)
	if withTracks {
		s.Tracks = append([]Track(nil), p.Tracks...)
	}
	return s
}

// BeginSync marks the playlist as actively downloading and clears any
// previous error
func (p *Playlist) BeginSync() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = StatusSyncing
	p.ErrorMessage = ""
}

// FinishSync records a successful downloader run
func (p *Playlist) FinishSync() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.Status = StatusIdle
	p.LastSyncAt = &now
	p.ErrorMessage = ""
}

// FailSync records a failed downloader run with a caller-supplied message
func (p *Playlist) FailSync(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = StatusError
	p.ErrorMessage = message
}

// CurrentStatus returns the sync state under the playlist lock
func (p *Playlist) CurrentStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Status
}

// ResetContent deletes and recreates the download directory and resets all
// derived download state. Used by the cleanup scheduler.
func (p *Playlist) ResetContent(remove func(dir string) error) error {
	if err := remove(p.DownloadDir); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.Tracks {
		p.Tracks[i].LocalStatus = TrackPending
	}
	p.DownloadedCount = 0
	p.LastContentAt = nil
	return nil
}

// contentStamp returns the last content timestamp under the playlist lock
func (p *Playlist) contentStamp() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LastContentAt
}
