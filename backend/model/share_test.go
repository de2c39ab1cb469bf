package model

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Options{
		SQLitePath: filepath.Join(t.TempDir(), "sqlite.db"),
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// legacySchema is the layout written by the desktop application.
const legacySchema = `
CREATE TABLE IF NOT EXISTS ShareHistory (
    ShareId INTEGER PRIMARY KEY AUTOINCREMENT,
    Description TEXT,
    CreateTime TEXT NOT NULL,
    VerifyCode TEXT
);
CREATE TABLE IF NOT EXISTS FilePath (
    ShareId INTEGER NOT NULL REFERENCES ShareHistory(ShareId),
    FileId INTEGER PRIMARY KEY AUTOINCREMENT,
    DownloadCount INTEGER NOT NULL,
    Path TEXT NOT NULL,
    FOREIGN KEY(ShareId) REFERENCES ShareHistory(ShareId) ON DELETE CASCADE
);`

func TestOpen_ExistingDesktopDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sqlite.db")
	legacyFile := writeFile(t, dir, "old.txt", "legacy")

	seed, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, seed.Exec(legacySchema).Error)
	require.NoError(t, seed.Exec(`INSERT INTO ShareHistory (Description, CreateTime, VerifyCode) VALUES (NULL, '2023-01-02 03:04:05', '')`).Error)
	require.NoError(t, seed.Exec(`INSERT INTO FilePath (ShareId, DownloadCount, Path) VALUES (1, 3, ?)`, legacyFile).Error)
	seedDB, err := seed.DB()
	require.NoError(t, err)
	require.NoError(t, seedDB.Close())

	store, err := Open(Options{SQLitePath: dbPath, LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	record, err := store.ReadShareHistory(1)
	require.NoError(t, err)
	assert.Equal(t, "", record.Description)
	assert.Equal(t, "2023-01-02 03:04:05", record.CreateTime)
	require.Len(t, record.Files, 1)
	assert.Equal(t, int64(3), record.Files[0].DownloadCount)
	assert.Equal(t, legacyFile, record.Files[0].Path)

	newFile := writeFile(t, dir, "new.txt", "fresh")
	id, err := store.AddShareHistory([]string{newFile})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	added, err := store.ReadShareHistory(id)
	require.NoError(t, err)
	require.Len(t, added.Files, 1)
	assert.Equal(t, int64(0), added.Files[0].DownloadCount)

	rows, err := store.DeleteShareHistory(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	_, err = store.ReadFilePath(record.Files[0].FileID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddShareHistory_SkipsMissingPaths(t *testing.T) {
	store := newTestStore(t)
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	store.SetClock(func() time.Time { return fixed })

	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "hello")
	b := writeFile(t, dir, "b.bin", "world!")
	missing := filepath.Join(dir, "missing.txt")

	id, err := store.AddShareHistory([]string{a, missing, dir, b})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	record, err := store.ReadShareHistory(id)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06 07:08:09", record.CreateTime)
	assert.Empty(t, record.VerifyCode)
	require.Len(t, record.Files, 2)
	assert.Equal(t, a, record.Files[0].Path)
	assert.Equal(t, b, record.Files[1].Path)
	assert.Equal(t, int64(0), record.Files[0].DownloadCount)
}

func TestAddShareHistory_ZeroFiles(t *testing.T) {
	store := newTestStore(t)

	id, err := store.AddShareHistory([]string{"/definitely/not/here"})
	require.NoError(t, err)

	record, err := store.ReadShareHistory(id)
	require.NoError(t, err)
	assert.Empty(t, record.Files)
}

func TestReadShareHistory_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ReadShareHistory(42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.ReadFilePath(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadAllShareHistory_Ordered(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")

	first, err := store.AddShareHistory([]string{a})
	require.NoError(t, err)
	second, err := store.AddShareHistory(nil)
	require.NoError(t, err)

	records, err := store.ReadAllShareHistory()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].ShareID)
	assert.Len(t, records[0].Files, 1)
	assert.Equal(t, second, records[1].ShareID)
}

func TestAddShareFiles(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")

	id, err := store.AddShareHistory([]string{a})
	require.NoError(t, err)

	n, err := store.AddShareFiles(id, []string{b, filepath.Join(dir, "nope")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	record, err := store.ReadShareHistory(id)
	require.NoError(t, err)
	assert.Len(t, record.Files, 2)

	_, err = store.AddShareFiles(999, []string{b})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteShareFile(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")

	id, err := store.AddShareHistory([]string{a})
	require.NoError(t, err)
	record, err := store.ReadShareHistory(id)
	require.NoError(t, err)
	fileID := record.Files[0].FileID

	rows, err := store.DeleteShareFile(fileID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = store.DeleteShareFile(fileID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	_, err = store.ReadFilePath(fileID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteShareHistory_Cascades(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")

	id, err := store.AddShareHistory([]string{a, b})
	require.NoError(t, err)
	record, err := store.ReadShareHistory(id)
	require.NoError(t, err)

	rows, err := store.DeleteShareHistory(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	_, err = store.ReadShareHistory(id)
	assert.ErrorIs(t, err, ErrNotFound)
	for _, f := range record.Files {
		_, err := store.ReadShareFile(f.FileID)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	// the files on disk are only referenced, never touched
	_, err = os.Stat(a)
	assert.NoError(t, err)
}

func TestIncrementDownloadCount_Concurrent(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")

	id, err := store.AddShareHistory([]string{a})
	require.NoError(t, err)
	record, err := store.ReadShareHistory(id)
	require.NoError(t, err)
	fileID := record.Files[0].FileID

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementDownloadCount(fileID))
		}()
	}
	wg.Wait()

	file, err := store.ReadShareFile(fileID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), file.DownloadCount)

	assert.NoError(t, store.IncrementDownloadCount(12345))
}

func TestUpdateSingleValue(t *testing.T) {
	store := newTestStore(t)
	id, err := store.AddShareHistory(nil)
	require.NoError(t, err)

	rows, err := store.UpdateDescription(id, "holiday photos")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	rows, err = store.UpdateVerifyCode(id, "1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	record, err := store.ReadShareHistory(id)
	require.NoError(t, err)
	assert.Equal(t, "holiday photos", record.Description)
	assert.Equal(t, "1234", record.VerifyCode)

	rows, err = store.UpdateDescription(999, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	tests := []struct {
		table, search, update string
	}{
		{"users", "ShareId", "Description"},
		{"ShareHistory", "ShareId; DROP TABLE FilePath", "Description"},
		{"ShareHistory", "ShareId", "Path"},
	}
	for _, tt := range tests {
		_, err := store.UpdateSingleValue(tt.table, tt.search, id, tt.update, "x")
		assert.ErrorIs(t, err, ErrInvalidColumn)
	}
}

func TestSubscribe(t *testing.T) {
	store := newTestStore(t)
	events, cancel := store.Subscribe()

	id, err := store.AddShareHistory(nil)
	require.NoError(t, err)
	_, err = store.UpdateDescription(id, "d")
	require.NoError(t, err)
	_, err = store.DeleteShareHistory(id)
	require.NoError(t, err)

	assert.Equal(t, ChangeEvent{Kind: ShareCreated, ShareID: id}, <-events)
	assert.Equal(t, ChangeEvent{Kind: ShareUpdated, ShareID: id}, <-events)
	assert.Equal(t, ChangeEvent{Kind: ShareDeleted, ShareID: id}, <-events)

	cancel()
	_, ok := <-events
	assert.False(t, ok)
	cancel()
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := newTestStore(t)
	_, cancel := store.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		_, err := store.AddShareHistory(nil)
		require.NoError(t, err)
	}
}
