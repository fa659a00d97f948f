// Package app drives the mallocinfo CLI: it pulls allocator reports
// from a source, optionally records them, and renders them to an
// output.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/genc-murat/mallocinfo/internal/config"
	"github.com/genc-murat/mallocinfo/internal/util"
	"github.com/genc-murat/mallocinfo/pkg/report"
)

// Source produces one allocator report per call.
type Source func() (*report.Malloc, error)

// Recorder persists sampled reports. *storage.SnapshotLog satisfies it.
type Recorder interface {
	Append(*report.Malloc) error
}

// Sampler samples reports once or on a ticker. It holds no state
// between samples.
type Sampler struct {
	source Source
	rec    Recorder
	out    io.Writer
	cfg    config.SamplerConfig
}

// NewSampler builds a Sampler. rec may be nil to disable recording.
func NewSampler(source Source, rec Recorder, out io.Writer, cfg config.SamplerConfig) *Sampler {
	return &Sampler{
		source: source,
		rec:    rec,
		out:    out,
		cfg:    cfg,
	}
}

// Once takes a single sample: pull a report, record it if a recorder is
// attached, render it.
func (s *Sampler) Once() error {
	r, err := s.source()
	if err != nil {
		return err
	}
	if s.rec != nil {
		if err := s.rec.Append(r); err != nil {
			return err
		}
	}
	if s.cfg.Format == "json" {
		return json.NewEncoder(s.out).Encode(r)
	}
	return s.renderText(r)
}

// Run samples immediately and then on every tick of the configured
// interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	if err := s.Once(); err != nil {
		return err
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Once(); err != nil {
				return err
			}
		}
	}
}

// Summary condenses one report into the figures the text renderer
// prints.
type Summary struct {
	Arenas       int
	FastBytes    uint64
	FastChunks   uint64
	RestBytes    uint64
	MmapBytes    uint64
	CurrentBytes uint64
	MaxBytes     uint64
	FreeBuckets  int
}

// Summarize derives a Summary from the report's root-level aggregates
// and per-arena bucket counts. Other-tagged records are left out; they
// carry figures this renderer does not know how to label.
func Summarize(r *report.Malloc) Summary {
	s := Summary{Arenas: len(r.Heaps)}
	for _, t := range r.Total {
		switch t.Type {
		case report.TotalFast:
			s.FastBytes += t.Size
			s.FastChunks += t.Count
		case report.TotalRest:
			s.RestBytes += t.Size
		case report.TotalMmap:
			s.MmapBytes += t.Size
		}
	}
	for _, sys := range r.System {
		switch sys.Type {
		case report.SystemCurrent:
			s.CurrentBytes += sys.Size
		case report.SystemMax:
			s.MaxBytes += sys.Size
		}
	}
	for _, h := range r.Heaps {
		if h.Sizes != nil {
			s.FreeBuckets += len(h.Sizes.Entries)
		}
	}
	return s
}

func (s *Sampler) renderText(r *report.Malloc) error {
	sum := Summarize(r)
	if _, err := fmt.Fprintf(s.out, "malloc_info v%s: %d arena(s), %d free bucket(s)\n",
		r.Version, sum.Arenas, sum.FreeBuckets); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "  fast bins:   %s in %s chunks\n", util.FormatBytes(sum.FastBytes), util.FormatCount(sum.FastChunks))
	fmt.Fprintf(s.out, "  rest:        %s\n", util.FormatBytes(sum.RestBytes))
	fmt.Fprintf(s.out, "  mmap:        %s\n", util.FormatBytes(sum.MmapBytes))
	fmt.Fprintf(s.out, "  system:      %s current, %s max\n", util.FormatBytes(sum.CurrentBytes), util.FormatBytes(sum.MaxBytes))

	top := s.cfg.TopHeaps
	if top <= 0 || top > len(r.Heaps) {
		top = len(r.Heaps)
	}
	for _, h := range r.Heaps[:top] {
		switch {
		case h.Sizes == nil:
			fmt.Fprintf(s.out, "  arena %d: no bucket detail\n", h.Nr)
		case len(h.Sizes.Entries) == 0:
			fmt.Fprintf(s.out, "  arena %d: 0 buckets\n", h.Nr)
		default:
			var free uint64
			for _, e := range h.Sizes.Entries {
				free += e.Total
			}
			fmt.Fprintf(s.out, "  arena %d: %d buckets, %s free\n", h.Nr, len(h.Sizes.Entries), util.FormatBytes(free))
		}
	}
	if rest := len(r.Heaps) - top; rest > 0 {
		fmt.Fprintf(s.out, "  ... %d more arena(s)\n", rest)
	}
	return nil
}
