package metadata

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
)

// ThumbnailSize is the maximum edge length of served cover images
const ThumbnailSize = 300

// CoverCache downloads playlist cover art and keeps resized copies on disk
// so the dashboard never hammers the image CDN.
type CoverCache struct {
	cacheDir   string
	httpClient *http.Client
}

// NewCoverCache creates a cover cache rooted at cacheDir
func NewCoverCache(cacheDir string) (*CoverCache, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("cache directory cannot be empty")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &CoverCache{
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Get returns the thumbnail for url, downloading and resizing on a cache miss
func (cc *CoverCache) Get(url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("cover URL cannot be empty")
	}

	cachePath := filepath.Join(cc.cacheDir, cc.cacheKey(url))
	if data, mimeType, err := cc.loadFromCache(cachePath); err == nil {
		return data, mimeType, nil
	}

	resp, err := cc.httpClient.Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download cover: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read cover data: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if resized, err := resizeImage(imageData, ThumbnailSize); err == nil {
		imageData = resized
	}

	// cache failures are not fatal, the caller still gets the image
	_ = cc.saveToCache(cachePath, imageData)

	return imageData, mimeType, nil
}

// cacheKey derives a stable filename from the source URL
func (cc *CoverCache) cacheKey(url string) string {
	hash := md5.Sum([]byte(fmt.Sprintf("%s_%d", url, ThumbnailSize)))
	return hex.EncodeToString(hash[:]) + ".jpg"
}

func (cc *CoverCache) loadFromCache(cachePath string) ([]byte, string, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, "", err
	}

	ext := strings.ToLower(filepath.Ext(cachePath))
	mimeType := "image/jpeg"
	if ext == ".png" {
		mimeType = "image/png"
	}
	return data, mimeType, nil
}

func (cc *CoverCache) saveToCache(cachePath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// write through a temp file so a crash never leaves a torn cache entry
	tempPath := cachePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tempPath, cachePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// ClearCache removes all cached covers
func (cc *CoverCache) ClearCache() error {
	entries, err := os.ReadDir(cc.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			path := filepath.Join(cc.cacheDir, entry.Name())
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove cache file: %w", err)
			}
		}
	}
	return nil
}

// CacheSize returns the total size of cached covers in bytes
func (cc *CoverCache) CacheSize() (int64, error) {
	var totalSize int64

	entries, err := os.ReadDir(cc.cacheDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			totalSize += info.Size()
		}
	}
	return totalSize, nil
}

// resizeImage shrinks an image so its longest edge is at most targetSize,
// keeping aspect ratio
func resizeImage(imageData []byte, targetSize int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= targetSize && height <= targetSize {
		return imageData, nil
	}

	var resized image.Image
	if width > height {
		resized = resize.Resize(uint(targetSize), 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, uint(targetSize), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 95})
	case "png":
		err = png.Encode(&buf, resized)
	default:
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}
