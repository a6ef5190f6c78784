// Package backup creates point-in-time copies of the ledger store file,
// prunes old artifacts beyond a retention count and restores snapshots with
// a safety net.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bolsoapp/bolso/internal/domain"
)

const (
	artifactPrefix = "ledger-"
	artifactExt    = ".db"
	timeLayout     = "20060102-150405"
)

// Artifact describes one backup file.
type Artifact struct {
	Name      string
	Path      string
	CreatedAt time.Time
	Size      int64
}

// Manager copies the live store into a backup directory. It never writes to
// the store through any path other than whole-file copy, so it cannot
// violate ledger invariants.
type Manager struct {
	storePath string
	dir       string
	retention int
	maxAge    time.Duration
	logger    zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Config configures a backup manager.
type Config struct {
	// StorePath is the live sqlite file.
	StorePath string
	// Dir receives the timestamped artifacts.
	Dir string
	// Retention is how many artifacts to keep (default 7).
	Retention int
	// MaxAge triggers a scheduled backup when the newest artifact is older
	// (default 7 days).
	MaxAge time.Duration
	Logger zerolog.Logger
}

// NewManager creates a backup manager.
func NewManager(cfg Config) *Manager {
	if cfg.Retention == 0 {
		cfg.Retention = 7
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	return &Manager{
		storePath: cfg.StorePath,
		dir:       cfg.Dir,
		retention: cfg.Retention,
		maxAge:    cfg.MaxAge,
		logger:    cfg.Logger,
	}
}

// CreateBackup copies the current store to a timestamped artifact and prunes
// artifacts beyond the retention count.
func (m *Manager) CreateBackup() (*Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create backup dir: %v", domain.ErrPersistence, err)
	}

	now := time.Now().UTC()
	name := artifactPrefix + now.Format(timeLayout) + artifactExt
	dest := filepath.Join(m.dir, name)

	// Second-resolution stamps can collide under rapid manual backups.
	for seq := 1; ; seq++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s%s-%d%s", artifactPrefix, now.Format(timeLayout), seq, artifactExt)
		dest = filepath.Join(m.dir, name)
	}

	if err := copyFile(m.storePath, dest); err != nil {
		return nil, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: stat backup: %v", domain.ErrPersistence, err)
	}

	m.logger.Info().Str("artifact", name).Int64("bytes", info.Size()).Msg("backup created")

	if err := m.pruneLocked(); err != nil {
		// Pruning failure never fails the backup itself.
		m.logger.Warn().Err(err).Msg("backup pruning failed")
	}

	return &Artifact{Name: name, Path: dest, CreatedAt: now, Size: info.Size()}, nil
}

// ListBackups returns artifacts sorted newest first.
func (m *Manager) ListBackups() ([]Artifact, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read backup dir: %v", domain.ErrPersistence, err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactExt)
		if len(stamp) > len(timeLayout) {
			stamp = stamp[:len(timeLayout)]
		}
		createdAt, err := time.Parse(timeLayout, stamp)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:      name,
			Path:      filepath.Join(m.dir, name),
			CreatedAt: createdAt,
			Size:      info.Size(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

// RestoreBackup replaces the live store with the given artifact. The current
// state is first copied to a safety file; a failed restore copies the safety
// back, so the store is never left half-restored.
func (m *Manager) RestoreBackup(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: backup artifact %s", domain.ErrNotFound, path)
	}

	safety := m.storePath + ".safety"
	if err := copyFile(m.storePath, safety); err != nil {
		return err
	}

	if err := copyFile(path, m.storePath); err != nil {
		if revertErr := copyFile(safety, m.storePath); revertErr != nil {
			m.logger.Error().Err(revertErr).Msg("safety restore failed")
			return fmt.Errorf("%w: restore failed and safety revert failed: %v", domain.ErrPersistence, revertErr)
		}
		return err
	}

	if err := os.Remove(safety); err != nil {
		m.logger.Warn().Err(err).Msg("could not remove safety copy")
	}

	m.logger.Info().Str("artifact", filepath.Base(path)).Msg("backup restored")
	return nil
}

// RunDue creates a backup if the newest artifact is older than the
// configured age, or if none exists.
func (m *Manager) RunDue() error {
	artifacts, err := m.ListBackups()
	if err != nil {
		return err
	}
	if len(artifacts) > 0 && time.Since(artifacts[0].CreatedAt) < m.maxAge {
		return nil
	}
	_, err = m.CreateBackup()
	return err
}

// StartScheduler checks periodically whether a backup is due. Stop cancels
// the timer; it is independent of the sync engine's cadence.
func (m *Manager) StartScheduler(checkInterval time.Duration) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.RunDue(); err != nil {
					m.logger.Error().Err(err).Msg("scheduled backup failed")
				}
			case <-stop:
				return
			}
		}
	}()
}

// StopScheduler halts the scheduler and waits for it to exit.
func (m *Manager) StopScheduler() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// pruneLocked removes artifacts beyond the retention count, oldest first.
func (m *Manager) pruneLocked() error {
	artifacts, err := m.ListBackups()
	if err != nil {
		return err
	}
	for _, artifact := range artifacts[min(m.retention, len(artifacts)):] {
		if err := os.Remove(artifact.Path); err != nil {
			return fmt.Errorf("%w: prune %s: %v", domain.ErrPersistence, artifact.Name, err)
		}
		m.logger.Debug().Str("artifact", artifact.Name).Msg("backup pruned")
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrPersistence, src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), ".tmp-backup-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", domain.ErrPersistence, err)
	}
	tmp := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: copy to %s: %v", domain.ErrPersistence, dest, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: sync %s: %v", domain.ErrPersistence, dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", domain.ErrPersistence, dest, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: move into place: %v", domain.ErrPersistence, err)
	}
	return nil
}
