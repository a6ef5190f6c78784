package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolsoapp/bolso/internal/domain"
)

func testManager(t *testing.T, retention int) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	store := filepath.Join(dir, "ledger.db")
	require.NoError(t, os.WriteFile(store, []byte("live-data"), 0o644))

	m := NewManager(Config{
		StorePath: store,
		Dir:       filepath.Join(dir, "backups"),
		Retention: retention,
		Logger:    zerolog.Nop(),
	})
	return m, store
}

func TestCreateBackup_CopiesStore(t *testing.T) {
	m, _ := testManager(t, 7)

	artifact, err := m.CreateBackup()
	require.NoError(t, err)

	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("live-data"), data)
	assert.Equal(t, int64(len("live-data")), artifact.Size)
}

func TestCreateBackup_PrunesBeyondRetention(t *testing.T) {
	m, _ := testManager(t, 3)

	for i := 0; i < 5; i++ {
		_, err := m.CreateBackup()
		require.NoError(t, err)
	}

	artifacts, err := m.ListBackups()
	require.NoError(t, err)
	assert.Len(t, artifacts, 3)
}

func TestListBackups_NewestFirst(t *testing.T) {
	m, _ := testManager(t, 7)
	dir := m.dir
	require.NoError(t, os.MkdirAll(dir, 0o755))

	for _, name := range []string{
		"ledger-20250101-120000.db",
		"ledger-20250301-120000.db",
		"ledger-20250201-120000.db",
		"unrelated.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	artifacts, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.Equal(t, "ledger-20250301-120000.db", artifacts[0].Name)
	assert.Equal(t, "ledger-20250201-120000.db", artifacts[1].Name)
	assert.Equal(t, "ledger-20250101-120000.db", artifacts[2].Name)
}

func TestRestoreBackup_ReplacesStore(t *testing.T) {
	m, store := testManager(t, 7)

	artifact, err := m.CreateBackup()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store, []byte("mutated"), 0o644))
	require.NoError(t, m.RestoreBackup(artifact.Path))

	data, err := os.ReadFile(store)
	require.NoError(t, err)
	assert.Equal(t, []byte("live-data"), data)

	// Safety copy is cleaned up after a successful restore.
	_, err = os.Stat(store + ".safety")
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreBackup_MissingArtifact(t *testing.T) {
	m, store := testManager(t, 7)

	err := m.RestoreBackup(filepath.Join(m.dir, "ledger-20990101-000000.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	data, readErr := os.ReadFile(store)
	require.NoError(t, readErr)
	assert.Equal(t, []byte("live-data"), data)
}

func TestRunDue_SkipsFreshBackup(t *testing.T) {
	m, _ := testManager(t, 7)

	_, err := m.CreateBackup()
	require.NoError(t, err)

	require.NoError(t, m.RunDue())

	artifacts, err := m.ListBackups()
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestRunDue_BacksUpWhenNoneExists(t *testing.T) {
	m, _ := testManager(t, 7)

	require.NoError(t, m.RunDue())

	artifacts, err := m.ListBackups()
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestRunDue_BacksUpWhenStale(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "ledger.db")
	require.NoError(t, os.WriteFile(store, []byte("live-data"), 0o644))

	m := NewManager(Config{
		StorePath: store,
		Dir:       filepath.Join(dir, "backups"),
		MaxAge:    time.Nanosecond,
		Logger:    zerolog.Nop(),
	})

	_, err := m.CreateBackup()
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	require.NoError(t, m.RunDue())

	artifacts, err := m.ListBackups()
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
}

func TestScheduler_StopTerminates(t *testing.T) {
	m, _ := testManager(t, 7)

	m.StartScheduler(10 * time.Millisecond)
	assert.Eventually(t, func() bool {
		artifacts, err := m.ListBackups()
		return err == nil && len(artifacts) == 1
	}, time.Second, 10*time.Millisecond)

	m.StopScheduler()
	// Idempotent stop.
	m.StopScheduler()
}
