package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError reports a structurally malformed report document: missing
// root element, missing required attribute, or an attribute value that
// does not parse as its declared type. Unknown type tags are not parse
// errors; they decode to the Other fallback of their enumeration.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("report: %s: %v", e.Msg, e.Err)
	}
	return "report: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrf(err error, format string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// Decode parses a complete malloc_info XML document into a Malloc tree.
// It is single-pass and total: it returns either the fully populated
// tree or an error, never a partial value. Element order within each
// collected sequence is document order. Unknown elements are skipped;
// aggregate elements nested inside <heap> are recognized but not merged
// into the root-level sequences.
func Decode(data []byte) (*Malloc, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	root, err := findRoot(dec)
	if err != nil {
		return nil, err
	}

	version, ok := attrValue(root, "version")
	if !ok {
		return nil, parseErrf(nil, "<malloc> element has no version attribute")
	}

	m := &Malloc{Version: version}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, parseErrf(err, "reading <malloc> children")
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "heap":
				h, err := decodeHeap(dec, el)
				if err != nil {
					return nil, err
				}
				m.Heaps = append(m.Heaps, h)
			case "total":
				t, err := decodeTotal(el)
				if err != nil {
					return nil, err
				}
				if err := dec.Skip(); err != nil {
					return nil, parseErrf(err, "reading <total> element")
				}
				m.Total = append(m.Total, t)
			case "system":
				s, err := decodeSystem(el)
				if err != nil {
					return nil, err
				}
				if err := dec.Skip(); err != nil {
					return nil, parseErrf(err, "reading <system> element")
				}
				m.System = append(m.System, s)
			case "aspace":
				a, err := decodeAspace(el)
				if err != nil {
					return nil, err
				}
				if err := dec.Skip(); err != nil {
					return nil, parseErrf(err, "reading <aspace> element")
				}
				m.Aspace = append(m.Aspace, a)
			default:
				if err := dec.Skip(); err != nil {
					return nil, parseErrf(err, "skipping <%s> element", el.Name.Local)
				}
			}
		case xml.EndElement:
			// Closing </malloc>.
			return m, nil
		}
	}
}

// findRoot advances to the document's first element and checks that it
// is <malloc>.
func findRoot(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, parseErrf(nil, "document has no <malloc> root element")
		}
		if err != nil {
			return xml.StartElement{}, parseErrf(err, "reading document")
		}
		if el, ok := tok.(xml.StartElement); ok {
			if el.Name.Local != "malloc" {
				return xml.StartElement{}, parseErrf(nil, "root element is <%s>, want <malloc>", el.Name.Local)
			}
			return el, nil
		}
	}
}

func decodeHeap(dec *xml.Decoder, start xml.StartElement) (Heap, error) {
	nr, err := uintAttr(start, "nr")
	if err != nil {
		return Heap{}, err
	}
	h := Heap{Nr: nr}

	for {
		tok, err := dec.Token()
		if err != nil {
			return Heap{}, parseErrf(err, "reading children of <heap nr=%d>", nr)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "sizes" {
				s, err := decodeSizes(dec)
				if err != nil {
					return Heap{}, err
				}
				h.Sizes = s
				continue
			}
			// Per-arena total/system/aspace elements (and anything
			// unknown) are consumed here so they never leak into the
			// root-level sequences.
			if err := dec.Skip(); err != nil {
				return Heap{}, parseErrf(err, "skipping <%s> inside <heap>", el.Name.Local)
			}
		case xml.EndElement:
			return h, nil
		}
	}
}

// decodeSizes consumes a <sizes> element. The returned Sizes is never
// nil: a present-but-empty section decodes to zero entries, which is
// distinct from an absent section (nil on Heap).
func decodeSizes(dec *xml.Decoder) (*Sizes, error) {
	s := &Sizes{Entries: []Size{}}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, parseErrf(err, "reading <sizes> children")
		}
		switch el := tok.(type) {
		case xml.StartElement:
			var kind SizeKind
			switch el.Name.Local {
			case "size":
				kind = SizeSorted
			case "unsorted":
				kind = SizeUnsorted
			default:
				if err := dec.Skip(); err != nil {
					return nil, parseErrf(err, "skipping <%s> inside <sizes>", el.Name.Local)
				}
				continue
			}
			entry, err := decodeSize(el, kind)
			if err != nil {
				return nil, err
			}
			if err := dec.Skip(); err != nil {
				return nil, parseErrf(err, "reading <%s> element", el.Name.Local)
			}
			s.Entries = append(s.Entries, entry)
		case xml.EndElement:
			return s, nil
		}
	}
}

func decodeSize(el xml.StartElement, kind SizeKind) (Size, error) {
	var (
		entry = Size{Kind: kind}
		err   error
	)
	if entry.From, err = uintAttr(el, "from"); err != nil {
		return Size{}, err
	}
	if entry.To, err = uintAttr(el, "to"); err != nil {
		return Size{}, err
	}
	if entry.Total, err = uintAttr(el, "total"); err != nil {
		return Size{}, err
	}
	if entry.Count, err = uintAttr(el, "count"); err != nil {
		return Size{}, err
	}
	return entry, nil
}

func decodeTotal(el xml.StartElement) (Total, error) {
	tag, err := typeAttr(el)
	if err != nil {
		return Total{}, err
	}
	t := Total{}
	switch TotalType(tag) {
	case TotalFast, TotalRest, TotalMmap:
		t.Type = TotalType(tag)
	default:
		t.Type = TotalOther
		t.Raw = tag
	}
	if t.Count, err = uintAttr(el, "count"); err != nil {
		return Total{}, err
	}
	if t.Size, err = uintAttr(el, "size"); err != nil {
		return Total{}, err
	}
	return t, nil
}

func decodeSystem(el xml.StartElement) (System, error) {
	tag, err := typeAttr(el)
	if err != nil {
		return System{}, err
	}
	s := System{}
	switch SystemType(tag) {
	case SystemCurrent, SystemMax:
		s.Type = SystemType(tag)
	default:
		s.Type = SystemOther
		s.Raw = tag
	}
	if s.Size, err = uintAttr(el, "size"); err != nil {
		return System{}, err
	}
	return s, nil
}

func decodeAspace(el xml.StartElement) (Aspace, error) {
	tag, err := typeAttr(el)
	if err != nil {
		return Aspace{}, err
	}
	a := Aspace{}
	switch AspaceType(tag) {
	case AspaceTotal, AspaceMprotect, AspaceSubheaps:
		a.Type = AspaceType(tag)
	default:
		a.Type = AspaceOther
		a.Raw = tag
	}
	if a.Size, err = uintAttr(el, "size"); err != nil {
		return Aspace{}, err
	}
	return a, nil
}

func attrValue(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// typeAttr returns the case-normalized type attribute of an aggregate
// element.
func typeAttr(el xml.StartElement) (string, error) {
	v, ok := attrValue(el, "type")
	if !ok {
		return "", parseErrf(nil, "<%s> element has no type attribute", el.Name.Local)
	}
	return strings.ToLower(strings.TrimSpace(v)), nil
}

func uintAttr(el xml.StartElement, name string) (uint64, error) {
	v, ok := attrValue(el, name)
	if !ok {
		return 0, parseErrf(nil, "<%s> element has no %s attribute", el.Name.Local, name)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, parseErrf(err, "<%s> attribute %s=%q is not a non-negative integer", el.Name.Local, name, v)
	}
	return n, nil
}
