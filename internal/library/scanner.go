package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/spotivault/spotivault/internal/errors"
)

// audioExtensions are the file types the external downloaders produce
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// ListAudioFiles returns the audio filenames directly inside dir, sorted.
// A missing directory yields an empty list, not an error.
func ListAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, apperrors.NewFileSystemError(fmt.Sprintf("failed to scan %s", dir), err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if audioExtensions[ext] {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
