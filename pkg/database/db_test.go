package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/phrases"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	dbPath := filepath.Join(t.TempDir(), "echotype_test.db")

	db, err := NewDB(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB(t *testing.T) {
	db := testDB(t)
	if db.db == nil {
		t.Error("Expected non-nil database connection")
	}
}

func TestNewDB_DefaultPath(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	defer func() { _ = os.Remove("echotype.db") }()

	db, err := NewDB(Config{}, log)
	if err != nil {
		t.Fatalf("Failed to create database with default path: %v", err)
	}
	defer func() { _ = db.Close() }()

	if db.db == nil {
		t.Error("Expected non-nil database connection")
	}
}

func TestPhraseRepository_RoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewPhraseRepository(db.GetDB())

	m := phrases.Mapping{
		Command:   commands.Enter,
		Phrase:    "šmach",
		CreatedAt: time.Now(),
	}
	if err := repo.Save(m); err != nil {
		t.Fatalf("Failed to save mapping: %v", err)
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("Failed to load mappings: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 mapping, got %d", len(loaded))
	}
	if loaded[0].Command != commands.Enter || loaded[0].Phrase != "šmach" {
		t.Errorf("Unexpected mapping: %+v", loaded[0])
	}
}

func TestPhraseRepository_SaveReplaces(t *testing.T) {
	db := testDB(t)
	repo := NewPhraseRepository(db.GetDB())

	if err := repo.Save(phrases.Mapping{Command: commands.Enter, Phrase: "šmach"}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := repo.Save(phrases.Mapping{Command: commands.Enter, Phrase: "go now"}); err != nil {
		t.Fatalf("Failed to re-save: %v", err)
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 mapping after replace, got %d", len(loaded))
	}
	if loaded[0].Phrase != "go now" {
		t.Errorf("Expected replaced phrase, got %q", loaded[0].Phrase)
	}
}

func TestPhraseRepository_Delete(t *testing.T) {
	db := testDB(t)
	repo := NewPhraseRepository(db.GetDB())

	if err := repo.Save(phrases.Mapping{Command: commands.Copy, Phrase: "grab it"}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := repo.Delete(commands.Copy); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Expected no mappings after delete, got %d", len(loaded))
	}
}

func TestPhraseRepository_BacksStore(t *testing.T) {
	db := testDB(t)
	repo := NewPhraseRepository(db.GetDB())
	log := logger.New(logger.Config{Level: "error"})

	store, err := phrases.NewStore(repo, log)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Set(commands.Enter, "šmach"); err != nil {
		t.Fatalf("Failed to set phrase: %v", err)
	}

	// Fresh store over the same database
	store2, err := phrases.NewStore(repo, log)
	if err != nil {
		t.Fatalf("Failed to reload store: %v", err)
	}
	code, ok := store2.Match("šmach")
	if !ok || code != commands.Enter {
		t.Error("Custom phrase should survive a restart")
	}
}

func TestHistoryRepository_CreateAndGetRecent(t *testing.T) {
	db := testDB(t)
	repo := NewHistoryRepository(db.GetDB())

	now := time.Now()
	for i := 0; i < 5; i++ {
		entry := &HistoryEntry{
			Kind:      EntryText,
			Content:   "hello world ",
			DeviceID:  "phone-1",
			SessionID: "s1",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(entry); err != nil {
			t.Fatalf("Failed to create entry %d: %v", i, err)
		}
	}

	entries, err := repo.GetRecent(3)
	if err != nil {
		t.Fatalf("Failed to get recent entries: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(entries))
	}
	if len(entries) >= 2 && entries[0].CreatedAt.Before(entries[1].CreatedAt) {
		t.Error("Expected entries ordered by created_at DESC")
	}
}

func TestHistoryRepository_BeforeCreateSetsTimestamp(t *testing.T) {
	db := testDB(t)
	repo := NewHistoryRepository(db.GetDB())

	entry := &HistoryEntry{Kind: EntryCommand, Content: "ENTER"}
	if err := repo.Create(entry); err != nil {
		t.Fatalf("Failed to create entry: %v", err)
	}
	if entry.ID == 0 {
		t.Error("Expected non-zero ID after creation")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set by hook")
	}
}

func TestHistoryRepository_GetRecentPaginated(t *testing.T) {
	db := testDB(t)
	repo := NewHistoryRepository(db.GetDB())

	now := time.Now()
	for i := 0; i < 10; i++ {
		entry := &HistoryEntry{
			Kind:      EntryText,
			Content:   "word ",
			SessionID: "s1",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(entry); err != nil {
			t.Fatalf("Failed to create entry %d: %v", i, err)
		}
	}

	entries, total, err := repo.GetRecentPaginated(1, 4)
	if err != nil {
		t.Fatalf("Failed to get page 1: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("Expected 4 entries on page 1, got %d", len(entries))
	}
	if total != 10 {
		t.Errorf("Expected total of 10, got %d", total)
	}

	entries3, _, err := repo.GetRecentPaginated(3, 4)
	if err != nil {
		t.Fatalf("Failed to get page 3: %v", err)
	}
	if len(entries3) != 2 {
		t.Errorf("Expected 2 entries on page 3, got %d", len(entries3))
	}
}

func TestHistoryRepository_GetBySession(t *testing.T) {
	db := testDB(t)
	repo := NewHistoryRepository(db.GetDB())

	for _, session := range []string{"s1", "s1", "s2"} {
		entry := &HistoryEntry{Kind: EntryText, Content: "x ", SessionID: session}
		if err := repo.Create(entry); err != nil {
			t.Fatalf("Failed to create entry: %v", err)
		}
	}

	entries, err := repo.GetBySession("s1", 10)
	if err != nil {
		t.Fatalf("Failed to get by session: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries for s1, got %d", len(entries))
	}
}

func TestHistoryRepository_DeleteOlderThan(t *testing.T) {
	db := testDB(t)
	repo := NewHistoryRepository(db.GetDB())

	now := time.Now()
	old := &HistoryEntry{Kind: EntryText, Content: "old ", CreatedAt: now.Add(-48 * time.Hour)}
	recent := &HistoryEntry{Kind: EntryText, Content: "new ", CreatedAt: now.Add(-time.Hour)}
	if err := repo.Create(old); err != nil {
		t.Fatalf("Failed to create old entry: %v", err)
	}
	if err := repo.Create(recent); err != nil {
		t.Fatalf("Failed to create recent entry: %v", err)
	}

	deleted, err := repo.DeleteOlderThan(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete old entries: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deletion, got %d", deleted)
	}

	remaining, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("Failed to get remaining entries: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", len(remaining))
	}
}

func TestDeviceRepository_UpsertAndList(t *testing.T) {
	db := testDB(t)
	repo := NewDeviceRepository(db.GetDB())

	device := &PairedDevice{DeviceID: "phone-abc", DeviceName: "Pixel"}
	if err := repo.Upsert(device); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}
	if device.PairedAt.IsZero() {
		t.Error("Expected PairedAt to be set by hook")
	}

	// Re-pair with a new name
	if err := repo.Upsert(&PairedDevice{DeviceID: "phone-abc", DeviceName: "Pixel 9"}); err != nil {
		t.Fatalf("Failed to re-upsert device: %v", err)
	}

	devices, err := repo.List()
	if err != nil {
		t.Fatalf("Failed to list devices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(devices))
	}
	if devices[0].DeviceName != "Pixel 9" {
		t.Errorf("Expected updated name, got %q", devices[0].DeviceName)
	}
}

func TestDeviceRepository_TouchLastSeen(t *testing.T) {
	db := testDB(t)
	repo := NewDeviceRepository(db.GetDB())

	if err := repo.Upsert(&PairedDevice{DeviceID: "phone-abc", DeviceName: "Pixel"}); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}

	later := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := repo.TouchLastSeen("phone-abc", later); err != nil {
		t.Fatalf("Failed to touch last seen: %v", err)
	}

	device, err := repo.Get("phone-abc")
	if err != nil {
		t.Fatalf("Failed to get device: %v", err)
	}
	if !device.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt = %v, want %v", device.LastSeenAt, later)
	}
}

func TestDeviceRepository_Delete(t *testing.T) {
	db := testDB(t)
	repo := NewDeviceRepository(db.GetDB())

	if err := repo.Upsert(&PairedDevice{DeviceID: "phone-abc"}); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}
	if err := repo.Delete("phone-abc"); err != nil {
		t.Fatalf("Failed to delete device: %v", err)
	}
	if _, err := repo.Get("phone-abc"); err == nil {
		t.Error("Expected error getting deleted device")
	}
}
