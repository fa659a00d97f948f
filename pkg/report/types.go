// Package report models the XML document emitted by glibc's
// malloc_info(3) and decodes it into a plain value tree. The format is
// versioned and may grow new type tags over time, so every tag
// enumeration carries an Other fallback and decoding never fails on an
// unrecognized tag value.
package report

// TotalType tags a Total record. Unrecognized tags map to TotalOther.
type TotalType string

const (
	TotalFast  TotalType = "fast"
	TotalRest  TotalType = "rest"
	TotalMmap  TotalType = "mmap"
	TotalOther TotalType = "other"
)

// Total is an allocation total, reported per process at the document
// root (and per arena inside heap elements, which this package does not
// surface).
type Total struct {
	Type TotalType `json:"type"`
	// Raw preserves the original type attribute text when Type is the
	// Other fallback; it is empty for recognized tags. The same holds
	// for the Raw field on System and Aspace.
	Raw   string `json:"raw,omitempty"`
	Count uint64 `json:"count"`
	Size  uint64 `json:"size"`
}

// SystemType tags a System record. Unrecognized tags map to SystemOther.
type SystemType string

const (
	SystemCurrent SystemType = "current"
	SystemMax     SystemType = "max"
	SystemOther   SystemType = "other"
)

// System is a system-memory figure (bytes obtained from the OS).
type System struct {
	Type SystemType `json:"type"`
	Raw  string     `json:"raw,omitempty"`
	Size uint64     `json:"size"`
}

// AspaceType tags an Aspace record. Unrecognized tags map to AspaceOther.
type AspaceType string

const (
	AspaceTotal    AspaceType = "total"
	AspaceMprotect AspaceType = "mprotect"
	AspaceSubheaps AspaceType = "subheaps"
	AspaceOther    AspaceType = "other"
)

// Aspace is an address-space figure.
type Aspace struct {
	Type AspaceType `json:"type"`
	Raw  string     `json:"raw,omitempty"`
	Size uint64     `json:"size"`
}

// SizeKind distinguishes the two bucket element kinds inside a sizes
// section.
type SizeKind string

const (
	// SizeSorted is a bucket kept in a size-sorted free list.
	SizeSorted SizeKind = "size"
	// SizeUnsorted is the catch-all unsorted bucket.
	SizeUnsorted SizeKind = "unsorted"
)

// Size is one free-chunk bucket covering the half-open byte range
// [From, To).
type Size struct {
	Kind  SizeKind `json:"kind"`
	From  uint64   `json:"from"`
	To    uint64   `json:"to"`
	Total uint64   `json:"total"`
	Count uint64   `json:"count"`
}

// Sizes is a heap's bucket section. A nil *Sizes on Heap means the
// section was absent from the document; a non-nil Sizes with zero
// entries means the section was present but empty. The two cases carry
// no documented semantic difference but are preserved as emitted.
type Sizes struct {
	Entries []Size `json:"entries"`
}

// Heap holds per-arena detail.
type Heap struct {
	// Nr is the arena number, unique within one report.
	Nr uint64 `json:"nr"`
	// Sizes is the optional bucket section, nil when absent.
	Sizes *Sizes `json:"sizes,omitempty"`
}

// Malloc is the report root. Slice order matches document order.
type Malloc struct {
	Version string   `json:"version"`
	Heaps   []Heap   `json:"heaps"`
	Total   []Total  `json:"total"`
	System  []System `json:"system"`
	Aspace  []Aspace `json:"aspace"`
}
