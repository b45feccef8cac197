package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GraysonBannister/live-japan-sub000/models"
)

func tempSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	store := tempSnapshotStore(t)
	ctx := context.Background()

	deposit := 50000
	in := []models.RawListing{
		{
			ExternalID: "wm-201",
			SourceURL:  "https://example.jp/rooms/wm-201",
			Source:     "weeklymansion",
			Type:       models.TypeWeeklyMansion,
			PriceJPY:   128000,
			DepositJPY: &deposit,
			Tags:       []string{"wi-fi"},
		},
		{
			ExternalID: "ms-42",
			SourceURL:  "https://example.jp/rooms/ms-42",
			Source:     "monthlystay",
			Type:       models.TypeMonthlyMansion,
			PriceJPY:   95000,
		},
	}

	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(out))
	}

	byURL := make(map[string]models.RawListing)
	for _, l := range out {
		byURL[l.SourceURL] = l
	}
	got := byURL["https://example.jp/rooms/wm-201"]
	if got.PriceJPY != 128000 || got.DepositJPY == nil || *got.DepositJPY != 50000 {
		t.Errorf("listing fields lost in round trip: %+v", got)
	}

	takenAt, err := store.TakenAt(ctx)
	if err != nil {
		t.Fatalf("takenAt: %v", err)
	}
	if takenAt.IsZero() {
		t.Error("takenAt should be set after save")
	}
}

func TestSnapshotSaveReplacesPrevious(t *testing.T) {
	store := tempSnapshotStore(t)
	ctx := context.Background()

	first := []models.RawListing{
		{ExternalID: "a", SourceURL: "https://a.jp/1", Source: "a", PriceJPY: 100000},
		{ExternalID: "b", SourceURL: "https://a.jp/2", Source: "a", PriceJPY: 110000},
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := []models.RawListing{
		{ExternalID: "c", SourceURL: "https://a.jp/3", Source: "a", PriceJPY: 120000},
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 1 || out[0].ExternalID != "c" {
		t.Fatalf("old snapshot rows survived: %+v", out)
	}
}

func TestSnapshotLoadEmpty(t *testing.T) {
	store := tempSnapshotStore(t)

	out, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty snapshot, got %d", len(out))
	}

	takenAt, err := store.TakenAt(context.Background())
	if err != nil {
		t.Fatalf("takenAt: %v", err)
	}
	if !takenAt.IsZero() {
		t.Error("takenAt should be zero before first save")
	}
}
