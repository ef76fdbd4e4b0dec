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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"har_importer/storage"
)

type capturedUpload struct {
	key         string
	contentType string
	data        []byte
}

type fakeUploader struct {
	uploads []capturedUpload
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	if u.err != nil {
		return u.err
	}
	body, _ := io.ReadAll(data)
	u.uploads = append(u.uploads, capturedUpload{key: key, contentType: contentType, data: body})
	return nil
}

func (u *fakeUploader) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

type statusUpdate struct {
	id       uuid.UUID
	status   string
	s3Key    *string
	hash     string
	attempts int
}

type fakeQueue struct {
	pending   []storage.PropertyImage
	updates   []statusUpdate
	updateErr error
}

func (q *fakeQueue) GetPendingImages(ctx context.Context, limit int) ([]storage.PropertyImage, error) {
	return q.pending, nil
}

func (q *fakeQueue) UpdateImageStatus(ctx context.Context, id uuid.UUID, status string, s3Key *string, contentHash string, attempts int) error {
	if q.updateErr != nil {
		return q.updateErr
	}
	q.updates = append(q.updates, statusUpdate{id: id, status: status, s3Key: s3Key, hash: contentHash, attempts: attempts})
	return nil
}

var photoBytes = []byte("not-really-a-jpeg-but-bytes-are-bytes")

func photoServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photoBytes)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessContentAddressesUpload(t *testing.T) {
	srv := photoServer(t, http.StatusOK)
	uploader := &fakeUploader{}
	w := NewPhotoWorker(&fakeQueue{}, uploader, log.New(io.Discard, "", 0))

	img := &storage.PropertyImage{ID: uuid.New(), URL: srv.URL + "/listing/img-1.jpg"}
	result := w.Process(context.Background(), img)
	if result.Error != nil {
		t.Fatalf("Process: %v", result.Error)
	}

	sum := sha256.Sum256(photoBytes)
	wantHash := hex.EncodeToString(sum[:])
	if result.ContentHash != wantHash {
		t.Fatalf("hash mismatch: got %s, want %s", result.ContentHash, wantHash)
	}
	wantKey := fmt.Sprintf("photos/%s/%s.jpg", wantHash[:2], wantHash)
	if result.S3Key != wantKey {
		t.Fatalf("unexpected key %s, want %s", result.S3Key, wantKey)
	}
	if result.Size != int64(len(photoBytes)) {
		t.Fatalf("unexpected size %d", result.Size)
	}

	if len(uploader.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploader.uploads))
	}
	up := uploader.uploads[0]
	if up.key != wantKey || up.contentType != "image/jpeg" {
		t.Fatalf("unexpected upload %s (%s)", up.key, up.contentType)
	}
	if !bytes.Equal(up.data, photoBytes) {
		t.Fatal("uploaded bytes differ from source")
	}
}

func TestProcessBatchMarksMirrored(t *testing.T) {
	srv := photoServer(t, http.StatusOK)
	queue := &fakeQueue{pending: []storage.PropertyImage{
		{ID: uuid.New(), URL: srv.URL + "/a.jpg", Status: storage.ImageStatusPending},
	}}
	w := NewPhotoWorker(queue, &fakeUploader{}, log.New(io.Discard, "", 0))

	w.processBatch(context.Background(), 10)

	if len(queue.updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(queue.updates))
	}
	up := queue.updates[0]
	if up.status != storage.ImageStatusMirrored {
		t.Fatalf("expected mirrored, got %s", up.status)
	}
	if up.s3Key == nil || !strings.HasPrefix(*up.s3Key, "photos/") {
		t.Fatalf("expected content-addressed key, got %v", up.s3Key)
	}
	if up.hash == "" {
		t.Fatal("expected content hash recorded")
	}
}

func TestProcessBatchFailureBoundsAttempts(t *testing.T) {
	srv := photoServer(t, http.StatusNotFound)

	queue := &fakeQueue{pending: []storage.PropertyImage{
		{ID: uuid.New(), URL: srv.URL + "/a.jpg", Status: storage.ImageStatusPending, Attempts: 0},
		{ID: uuid.New(), URL: srv.URL + "/b.jpg", Status: storage.ImageStatusPending, Attempts: 2},
	}}
	w := NewPhotoWorker(queue, &fakeUploader{}, log.New(io.Discard, "", 0))

	w.processBatch(context.Background(), 10)

	if len(queue.updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(queue.updates))
	}
	if queue.updates[0].status != storage.ImageStatusPending || queue.updates[0].attempts != 1 {
		t.Fatalf("first failure should stay pending with 1 attempt: %+v", queue.updates[0])
	}
	if queue.updates[1].status != storage.ImageStatusFailed || queue.updates[1].attempts != 3 {
		t.Fatalf("third failure should mark failed: %+v", queue.updates[1])
	}
}

func TestProcessBatchLogsStatusUpdateFailure(t *testing.T) {
	srv := photoServer(t, http.StatusNotFound)

	queue := &fakeQueue{
		pending:   []storage.PropertyImage{{ID: uuid.New(), URL: srv.URL + "/a.jpg"}},
		updateErr: fmt.Errorf("connection refused"),
	}
	var buf bytes.Buffer
	w := NewPhotoWorker(queue, &fakeUploader{}, log.New(&buf, "", 0))

	w.processBatch(context.Background(), 10)

	if !strings.Contains(buf.String(), "update") {
		t.Fatalf("expected the status update failure to be logged, got: %s", buf.String())
	}
}

func TestGuessExtension(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://cdn.example.com/a.png", "", ".png"},
		{"https://cdn.example.com/a.jpeg?width=640", "", ".jpeg"},
		{"https://cdn.example.com/photo", "image/webp", ".webp"},
		{"https://cdn.example.com/photo", "", ".jpg"},
		{"https://cdn.example.com/a.exe", "image/png", ".png"},
	}
	for _, tt := range tests {
		if got := guessExtension(tt.url, tt.contentType); got != tt.want {
			t.Fatalf("guessExtension(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}
