package workers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemArchive() *memArchive {
	return &memArchive{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (a *memArchive) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = body
	a.types[key] = contentType
	return nil
}

func (a *memArchive) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.objects[key]
	return ok, nil
}

func TestPhotoWorkerArchivesListingPhotos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("\xff\xd8\xff\xe0fakejpeg"))
	}))
	defer srv.Close()

	p := activeProperty("wm-1", srv.URL+"/rooms/wm-1")
	p.Photos = []string{srv.URL + "/photos/1.jpg", srv.URL + "/photos/2.jpg"}

	archive := newMemArchive()
	w := NewPhotoWorker(newFakeStore(p), archive, srv.Client())

	w.processBatch(context.Background(), 10)

	if len(archive.objects) != 2 {
		t.Fatalf("archived %d objects", len(archive.objects))
	}
	for key, contentType := range archive.types {
		if !strings.HasPrefix(key, "photos/weeklymansion/wm-1/") {
			t.Errorf("unexpected key layout: %q", key)
		}
		if contentType != "image/jpeg" {
			t.Errorf("contentType = %q", contentType)
		}
	}
}

func TestPhotoWorkerSkipsAlreadyArchived(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("\xff\xd8\xff\xe0fakejpeg"))
	}))
	defer srv.Close()

	photoURL := srv.URL + "/photos/1.jpg"
	p := activeProperty("wm-1", srv.URL+"/rooms/wm-1")
	p.Photos = []string{photoURL}

	archive := newMemArchive()
	archive.objects[ArchiveKey("weeklymansion", "wm-1", photoURL)] = []byte("cached")

	w := NewPhotoWorker(newFakeStore(p), archive, srv.Client())
	w.processBatch(context.Background(), 10)

	if requests != 0 {
		t.Errorf("archived photo was re-downloaded %d times", requests)
	}
	if len(archive.objects) != 1 {
		t.Errorf("archive has %d objects", len(archive.objects))
	}
}

func TestPhotoWorkerToleratesFailedDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write([]byte("\xff\xd8\xff\xe0fakejpeg"))
	}))
	defer srv.Close()

	p := activeProperty("wm-1", srv.URL+"/rooms/wm-1")
	p.Photos = []string{srv.URL + "/photos/broken.jpg", srv.URL + "/photos/ok.jpg"}

	archive := newMemArchive()
	w := NewPhotoWorker(newFakeStore(p), archive, srv.Client())
	w.processBatch(context.Background(), 10)

	if len(archive.objects) != 1 {
		t.Fatalf("archived %d objects, want the surviving photo only", len(archive.objects))
	}
}

func TestArchiveKeyStable(t *testing.T) {
	a := ArchiveKey("weeklymansion", "wm-1", "https://cdn.example.jp/p/1.jpg")
	b := ArchiveKey("weeklymansion", "wm-1", "https://cdn.example.jp/p/1.jpg")
	if a != b {
		t.Errorf("key not deterministic: %q vs %q", a, b)
	}
	if c := ArchiveKey("weeklymansion", "wm-1", "https://cdn.example.jp/p/2.jpg"); c == a {
		t.Error("different URLs must map to different keys")
	}
	if !strings.HasSuffix(a, ".jpg") {
		t.Errorf("extension not preserved: %q", a)
	}
}
