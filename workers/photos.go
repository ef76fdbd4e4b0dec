// Package workers holds the background photo mirror. Imported listings
// reference feed-hosted photo URLs; the mirror copies them into our own
// bucket so listings survive the feed expiring or rotating its CDN links.
package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"har_importer/storage"
)

// Uploader is the destination bucket. Satisfied by *storage.S3Uploader.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

// ImageQueue is the pending-photo queue. Satisfied by *storage.PostgresStore.
type ImageQueue interface {
	GetPendingImages(ctx context.Context, limit int) ([]storage.PropertyImage, error)
	UpdateImageStatus(ctx context.Context, id uuid.UUID, status string, s3Key *string, contentHash string, attempts int) error
}

type PhotoWorker struct {
	store      ImageQueue
	httpClient *http.Client
	uploader   Uploader
	logger     *log.Logger
}

func NewPhotoWorker(store ImageQueue, uploader Uploader, logger *log.Logger) *PhotoWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &PhotoWorker{
		store: store,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		uploader: uploader,
		logger:   logger,
	}
}

type PhotoResult struct {
	ImageID     uuid.UUID
	S3Key       string
	ContentHash string
	Size        int64
	Error       error
}

// Process downloads one photo, hashes it, and uploads it under a
// content-addressed key. Identical photos across listings dedupe to the
// same object.
func (w *PhotoWorker) Process(ctx context.Context, img *storage.PropertyImage) PhotoResult {
	result := PhotoResult{ImageID: img.ID}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("download status: %d", resp.StatusCode)
		return result
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	result.Size = int64(len(data))

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	ext := guessExtension(img.URL, resp.Header.Get("Content-Type"))
	result.S3Key = fmt.Sprintf("photos/%s/%s%s", result.ContentHash[:2], result.ContentHash, ext)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if err := w.uploader.Upload(ctx, result.S3Key, bytes.NewReader(data), contentType); err != nil {
		result.Error = fmt.Errorf("upload: %w", err)
		return result
	}

	return result
}

// Run polls for pending images until the context is cancelled.
func (w *PhotoWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Println("photo worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *PhotoWorker) processBatch(ctx context.Context, batchSize int) {
	images, err := w.store.GetPendingImages(ctx, batchSize)
	if err != nil {
		w.logger.Printf("photo worker: query error: %v", err)
		return
	}
	if len(images) == 0 {
		return
	}

	var mirrored, failed int
	for i := range images {
		img := &images[i]

		result := w.Process(ctx, img)
		if result.Error != nil {
			w.logger.Printf("photo worker: failed %s: %v", img.URL, result.Error)
			failed++

			newAttempts := img.Attempts + 1
			status := storage.ImageStatusPending
			if newAttempts >= 3 {
				status = storage.ImageStatusFailed
			}
			if err := w.store.UpdateImageStatus(ctx, img.ID, status, nil, "", newAttempts); err != nil {
				w.logger.Printf("photo worker: update %s: %v", img.ID, err)
			}
			continue
		}

		if err := w.store.UpdateImageStatus(ctx, img.ID, storage.ImageStatusMirrored, &result.S3Key, result.ContentHash, img.Attempts); err != nil {
			w.logger.Printf("photo worker: update %s: %v", img.ID, err)
			failed++
			continue
		}

		mirrored++
		w.logger.Printf("photo worker: mirrored %s -> %s", img.URL, w.uploader.PublicURL(result.S3Key))

		// Stay gentle with the feed CDN between downloads.
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}

	if mirrored > 0 || failed > 0 {
		w.logger.Printf("photo worker: mirrored %d, failed %d", mirrored, failed)
	}
}

func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}
