package library

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/monitoring"
)

// Registry is the process-wide identity-keyed store of tracked playlists.
// Entries are created lazily and live for the process's lifetime; cleanup
// only resets their content, it never removes them.
type Registry struct {
	mu           sync.RWMutex
	playlists    map[string]*Playlist
	order        []string
	downloadRoot string
}

// NewRegistry creates an empty registry rooted at downloadRoot
func NewRegistry(downloadRoot string) *Registry {
	return &Registry{
		playlists:    make(map[string]*Playlist),
		downloadRoot: downloadRoot,
	}
}

// DownloadDir derives the directory owned by a playlist id. Pure function:
// the same id always maps to the same directory and ids never collide.
func DownloadDir(root, id string) string {
	return filepath.Join(root, sanitizeID(id))
}

// sanitizeID strips path-hostile characters from an identifier
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.', 0:
			return '_'
		}
		return r
	}, id)
}

// GetOrCreate returns the existing entry for id, or creates one. The call is
// idempotent: url and manual are ignored when the entry already exists.
func (r *Registry) GetOrCreate(id, url string, manual bool) *Playlist {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.playlists[id]; ok {
		return p
	}

	p := &Playlist{
		ID:          id,
		URL:         url,
		Name:        placeholderName,
		Status:      StatusIdle,
		DownloadDir: DownloadDir(r.downloadRoot, id),
		Manual:      manual,
	}
	r.playlists[id] = p
	r.order = append(r.order, id)
	monitoring.PlaylistsTracked.Set(float64(len(r.playlists)))
	return p
}

// Get returns the live entry for id
func (r *Registry) Get(id string) (*Playlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.playlists[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("playlist %s not found", id))
	}
	return p, nil
}

// All returns the live entries in first-creation order
func (r *Registry) All() []*Playlist {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Playlist, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.playlists[id])
	}
	return out
}

// Summaries returns detached snapshots in first-creation order, without tracks
func (r *Registry) Summaries() []Summary {
	all := r.All()
	out := make([]Summary, 0, len(all))
	for _, p := range all {
		out = append(out, p.Snapshot(false))
	}
	return out
}

// Count returns the number of tracked playlists
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playlists)
}
