package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/GraysonBannister/live-japan-sub000/services"
)

const (
	photoBodyLimit = 8 * 1024 * 1024
	photoDelay     = 300 * time.Millisecond
)

// Archive is the upload surface of the photo store. *storage.PhotoArchive
// satisfies it.
type Archive interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// PhotoWorker mirrors listing photos into object storage. Source sites
// delete images when a room is taken; the archive keeps our copies alive.
type PhotoWorker struct {
	store     services.PropertyStore
	archive   Archive
	client    *http.Client
	triggerCh chan struct{}
}

func NewPhotoWorker(store services.PropertyStore, archive Archive, client *http.Client) *PhotoWorker {
	return &PhotoWorker{
		store:     store,
		archive:   archive,
		client:    client,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run a batch immediately.
func (w *PhotoWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *PhotoWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("photo worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("photo worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *PhotoWorker) processBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.ListActive(ctx)
	if err != nil {
		log.Printf("photos: query error: %v", err)
		return
	}

	var archived, skipped, failed int
	for i := range listings {
		if ctx.Err() != nil || archived >= batchSize {
			break
		}
		p := &listings[i]
		for _, photoURL := range p.Photos {
			if ctx.Err() != nil || archived >= batchSize {
				break
			}
			switch err := w.archiveOne(ctx, p, photoURL); {
			case err == errAlreadyArchived:
				skipped++
			case err != nil:
				log.Printf("photos: %s: %v", photoURL, err)
				failed++
			default:
				archived++
				time.Sleep(photoDelay)
			}
		}
	}

	if archived > 0 || failed > 0 {
		log.Printf("photos: archived %d, skipped %d, failed %d", archived, skipped, failed)
	}
}

var errAlreadyArchived = fmt.Errorf("already archived")

func (w *PhotoWorker) archiveOne(ctx context.Context, p *models.Property, photoURL string) error {
	key := ArchiveKey(p.Source, p.ExternalID, photoURL)

	exists, err := w.archive.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	if exists {
		return errAlreadyArchived
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Referer", p.SourceURL)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, photoBodyLimit))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty body")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return w.archive.Upload(ctx, key, bytes.NewReader(data), contentType)
}

// ArchiveKey derives a stable object key from the photo URL so re-runs
// skip images already uploaded.
func ArchiveKey(source, externalID, photoURL string) string {
	sum := sha256.Sum256([]byte(photoURL))
	ext := strings.ToLower(path.Ext(photoURL))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return fmt.Sprintf("photos/%s/%s/%x%s", source, externalID, sum[:8], ext)
}
