package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/spotivault/spotivault/internal/errors"
)

// StreamDir writes the top-level files of dir into w as a flat zip archive.
// Subdirectories are skipped; download directories are flat in practice and
// nested content is not part of the playlist.
func StreamDir(w io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to read %s", dir), err)
	}

	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addFile(zw, dir, entry.Name()); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return apperrors.NewFileSystemError("failed to finalize archive", err)
	}
	return nil
}

func addFile(zw *zip.Writer, dir, name string) error {
	path := filepath.Join(dir, name)

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to stat %s", path), err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to build header for %s", name), err)
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to add %s to archive", name), err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to write %s to archive", name), err)
	}
	return nil
}
