package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genc-murat/mallocinfo/pkg/report"
)

func sampleReport(version string, size uint64) *report.Malloc {
	return &report.Malloc{
		Version: version,
		Heaps:   []report.Heap{{Nr: 0}},
		System:  []report.System{{Type: report.SystemCurrent, Size: size}},
	}
}

func TestAppendAndLastSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.snapshots")

	log, err := NewSnapshotLog(path, time.Second)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append(sampleReport("1", 100)))
	require.NoError(t, log.Append(sampleReport("1", 200)))

	line, err := LastSnapshot(path)
	require.NoError(t, err)
	assert.Contains(t, string(line), `"size":200`, "newest snapshot should win")
}

func TestQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.snapshots")

	log, err := NewSnapshotLog(path, time.Second)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append(sampleReport("1", 4096)))

	res, err := Query(path, "report.version")
	require.NoError(t, err)
	assert.Equal(t, "1", res.String())

	res, err = Query(path, "report.system.0.size")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), res.Int())

	res, err = Query(path, "report.heaps.#")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Int())

	_, err = Query(path, "report.no.such.path")
	assert.Error(t, err)
}

func TestSecondRecorderRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.snapshots")

	first, err := NewSnapshotLog(path, time.Second)
	require.NoError(t, err)
	defer first.Close()

	_, err = NewSnapshotLog(path, time.Second)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestLockReleasedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.snapshots")

	first, err := NewSnapshotLog(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "Close must be idempotent")

	second, err := NewSnapshotLog(path, time.Second)
	require.NoError(t, err)
	defer second.Close()
}

func TestLastSnapshotEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.snapshots")

	log, err := NewSnapshotLog(path, time.Second)
	require.NoError(t, err)
	defer log.Close()

	_, err = LastSnapshot(path)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLastSnapshotMissingFile(t *testing.T) {
	_, err := LastSnapshot(filepath.Join(t.TempDir(), "nope.snapshots"))
	assert.Error(t, err)
}
