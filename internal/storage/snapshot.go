// Package storage persists sampled allocator reports to an append-only
// snapshot log: one JSON document per line, newest last. A file lock
// guards the log against concurrent recorders; readers never take the
// lock.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/tidwall/gjson"

	"github.com/genc-murat/mallocinfo/pkg/report"
)

var (
	// ErrLocked means another recorder holds the snapshot log.
	ErrLocked = errors.New("storage: snapshot log is locked by another recorder")
	// ErrEmpty means the snapshot log holds no snapshots yet.
	ErrEmpty = errors.New("storage: snapshot log is empty")
)

// Snapshot is one recorded report with its capture time.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Report    *report.Malloc `json:"report"`
}

// SnapshotLog appends snapshots to a file, syncing in the background
// like an AOF. The lock file next to the log path is held for the
// lifetime of the SnapshotLog.
type SnapshotLog struct {
	file *os.File
	lock *flock.Flock
	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

// NewSnapshotLog opens (or creates) the log at path for appending and
// takes an exclusive lock. syncInterval controls the background fsync
// cadence.
func NewSnapshotLog(path string, syncInterval time.Duration) (*SnapshotLog, error) {
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storage: lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, ErrLocked
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	l := &SnapshotLog{file: f, lock: fl, done: make(chan struct{})}
	go l.syncLoop(syncInterval)
	return l, nil
}

func (l *SnapshotLog) syncLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.file.Sync()
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

// Append records one report, timestamped now.
func (l *SnapshotLog) Append(r *report.Malloc) error {
	line, err := json.Marshal(Snapshot{Timestamp: time.Now().UTC(), Report: r})
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("storage: append snapshot: %w", err)
	}
	return nil
}

// Close stops the sync loop, syncs and closes the file, and releases
// the lock. Safe to call more than once.
func (l *SnapshotLog) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		l.mu.Lock()
		l.file.Sync()
		err = l.file.Close()
		l.mu.Unlock()
		if uerr := l.lock.Unlock(); err == nil {
			err = uerr
		}
	})
	return err
}

// LastSnapshot returns the raw JSON of the newest snapshot in the log
// at path. It does not take the recorder lock, so it can inspect a log
// that a live recorder is still appending to.
func LastSnapshot(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}

	lines := bytes.Split(data, []byte{'\n'})
	for i := len(lines) - 1; i >= 0; i-- {
		if line := bytes.TrimSpace(lines[i]); len(line) > 0 {
			return line, nil
		}
	}
	return nil, ErrEmpty
}

// Query evaluates a gjson path expression against the newest snapshot
// in the log at path, e.g. "report.system.0.size" or
// "report.heaps.#".
func Query(path, expr string) (gjson.Result, error) {
	line, err := LastSnapshot(path)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.GetBytes(line, expr)
	if !res.Exists() {
		return gjson.Result{}, fmt.Errorf("storage: path %q not found in snapshot", expr)
	}
	return res, nil
}
