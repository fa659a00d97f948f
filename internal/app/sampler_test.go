package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genc-murat/mallocinfo/internal/config"
	"github.com/genc-murat/mallocinfo/pkg/report"
)

func fixtureReport() *report.Malloc {
	return &report.Malloc{
		Version: "1",
		Heaps: []report.Heap{
			{Nr: 0, Sizes: &report.Sizes{Entries: []report.Size{
				{Kind: report.SizeSorted, From: 17, To: 32, Total: 64, Count: 2},
				{Kind: report.SizeUnsorted, Total: 256, Count: 1},
			}}},
			{Nr: 1, Sizes: &report.Sizes{Entries: []report.Size{}}},
			{Nr: 2},
		},
		Total: []report.Total{
			{Type: report.TotalFast, Count: 3, Size: 144},
			{Type: report.TotalRest, Count: 1, Size: 2048},
			{Type: report.TotalMmap, Count: 1, Size: 1 << 20},
			{Type: report.TotalOther, Raw: "hugepages", Size: 42},
		},
		System: []report.System{
			{Type: report.SystemCurrent, Size: 135168},
			{Type: report.SystemMax, Size: 270336},
		},
		Aspace: []report.Aspace{
			{Type: report.AspaceTotal, Size: 135168},
		},
	}
}

type fakeRecorder struct {
	records []*report.Malloc
	err     error
}

func (f *fakeRecorder) Append(r *report.Malloc) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

func staticSource(r *report.Malloc) Source {
	return func() (*report.Malloc, error) { return r, nil }
}

func TestSummarize(t *testing.T) {
	sum := Summarize(fixtureReport())

	assert.Equal(t, 3, sum.Arenas)
	assert.Equal(t, uint64(144), sum.FastBytes)
	assert.Equal(t, uint64(3), sum.FastChunks)
	assert.Equal(t, uint64(2048), sum.RestBytes)
	assert.Equal(t, uint64(1<<20), sum.MmapBytes)
	assert.Equal(t, uint64(135168), sum.CurrentBytes)
	assert.Equal(t, uint64(270336), sum.MaxBytes)
	assert.Equal(t, 2, sum.FreeBuckets, "nil and empty sizes sections contribute no buckets")
}

func TestOnceTextOutput(t *testing.T) {
	var out bytes.Buffer
	s := NewSampler(staticSource(fixtureReport()), nil, &out, config.Default().Sampler)

	require.NoError(t, s.Once())

	text := out.String()
	assert.Contains(t, text, "malloc_info v1: 3 arena(s), 2 free bucket(s)")
	assert.Contains(t, text, "132.0 KiB current")
	assert.Contains(t, text, "arena 0: 2 buckets")
	assert.Contains(t, text, "arena 1: 0 buckets")
	assert.Contains(t, text, "arena 2: no bucket detail")
}

func TestOnceTopHeapsLimit(t *testing.T) {
	cfg := config.Default().Sampler
	cfg.TopHeaps = 1

	var out bytes.Buffer
	s := NewSampler(staticSource(fixtureReport()), nil, &out, cfg)
	require.NoError(t, s.Once())

	text := out.String()
	assert.Contains(t, text, "arena 0:")
	assert.NotContains(t, text, "arena 1:")
	assert.Contains(t, text, "... 2 more arena(s)")
}

func TestOnceJSONOutput(t *testing.T) {
	cfg := config.Default().Sampler
	cfg.Format = "json"

	var out bytes.Buffer
	s := NewSampler(staticSource(fixtureReport()), nil, &out, cfg)
	require.NoError(t, s.Once())

	var decoded report.Malloc
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "1", decoded.Version)
	require.Len(t, decoded.Heaps, 3)
	assert.Nil(t, decoded.Heaps[2].Sizes)
}

func TestOnceRecords(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSampler(staticSource(fixtureReport()), rec, &bytes.Buffer{}, config.Default().Sampler)

	require.NoError(t, s.Once())
	require.NoError(t, s.Once())
	assert.Len(t, rec.records, 2)
}

func TestOncePropagatesErrors(t *testing.T) {
	srcErr := errors.New("introspection failed")
	s := NewSampler(func() (*report.Malloc, error) { return nil, srcErr }, nil, &bytes.Buffer{}, config.Default().Sampler)
	assert.ErrorIs(t, s.Once(), srcErr)

	recErr := errors.New("disk full")
	s = NewSampler(staticSource(fixtureReport()), &fakeRecorder{err: recErr}, &bytes.Buffer{}, config.Default().Sampler)
	assert.ErrorIs(t, s.Once(), recErr)
}

func TestRunStopsOnContextDone(t *testing.T) {
	cfg := config.Default().Sampler
	cfg.Interval = time.Hour

	var out bytes.Buffer
	s := NewSampler(staticSource(fixtureReport()), nil, &out, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
	assert.Contains(t, out.String(), "malloc_info v1", "Run samples once before waiting on the ticker")
}
