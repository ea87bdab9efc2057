package obs

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Reserved metadata keys maintained by Writer.
const (
	KeyConditions = "_conditions"
	KeyAnalyzer   = "_analyzer"
	KeySources    = "_sources"
	KeyRunID      = "_run_id"
)

var (
	// ErrNoOpenSet is returned when a record or metadata key is written
	// outside Begin/Commit.
	ErrNoOpenSet = errors.New("obs: no open observation set")

	// ErrSetOpen is returned by Begin while the previous set is uncommitted.
	ErrSetOpen = errors.New("obs: observation set already open")
)

// Writer writes observation sets. All records observed between Begin and
// Commit carry the same set id. Writer is not safe for concurrent use.
type Writer struct {
	out  *bufio.Writer
	meta io.Writer

	lastID int
	open   bool
	md     Metadata
	conds  map[string]struct{}
	count  int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithMetadataSink makes Commit write the set metadata as one JSON object
// line to sink. Without a sink the metadata is only returned by Commit.
func WithMetadataSink(sink io.Writer) WriterOption {
	return func(w *Writer) { w.meta = sink }
}

// WithFirstSetID makes the first Begin assign id instead of 1.
func WithFirstSetID(id int) WriterOption {
	return func(w *Writer) { w.lastID = id - 1 }
}

// NewWriter returns a Writer emitting records to out.
func NewWriter(out io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{out: bufio.NewWriter(out)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Begin opens a new observation set and returns its id. Ids increase by
// exactly one per call.
func (w *Writer) Begin() (int, error) {
	if w.open {
		return 0, ErrSetOpen
	}
	w.lastID++
	w.open = true
	w.md = make(Metadata)
	w.conds = make(map[string]struct{})
	w.count = 0
	return w.lastID, nil
}

// SetID returns the id of the open set, or of the last committed set.
func (w *Writer) SetID() int {
	return w.lastID
}

// Set attaches a metadata key to the open set. Reserved keys written here
// are overwritten by Commit where Commit maintains them.
func (w *Writer) Set(key string, value any) error {
	if !w.open {
		return ErrNoOpenSet
	}
	w.md[key] = value
	return nil
}

// Observe stamps o with the open set id and writes it.
func (w *Writer) Observe(o Observation) error {
	if !w.open {
		return ErrNoOpenSet
	}
	o.SetID = w.lastID
	if err := Encode(w.out, o); err != nil {
		return err
	}
	w.conds[o.Condition] = struct{}{}
	w.count++
	return nil
}

// HasMetadataSink reports whether Commit writes the set metadata anywhere.
func (w *Writer) HasMetadataSink() bool {
	return w.meta != nil
}

// Count returns the number of records observed in the open set.
func (w *Writer) Count() int {
	return w.count
}

// Commit finalizes the open set: it records the sorted list of emitted
// conditions under _conditions, flushes the records, and writes the
// metadata to the sink if one was configured. The returned Metadata is the
// caller's to keep.
func (w *Writer) Commit() (Metadata, error) {
	if !w.open {
		return nil, ErrNoOpenSet
	}
	w.open = false

	conds := slices.Sorted(maps.Keys(w.conds))
	if conds == nil {
		conds = []string{}
	}
	w.md[KeyConditions] = conds

	if err := w.out.Flush(); err != nil {
		return nil, fmt.Errorf("obs: flush set %d: %w", w.lastID, err)
	}

	md := maps.Clone(w.md)
	if w.meta != nil {
		b, err := json.Marshal(md)
		if err != nil {
			return nil, fmt.Errorf("obs: marshal metadata for set %d: %w", w.lastID, err)
		}
		if _, err := fmt.Fprintf(w.meta, "%s\n", b); err != nil {
			return nil, fmt.Errorf("obs: write metadata for set %d: %w", w.lastID, err)
		}
	}
	return md, nil
}
