package obs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxLineBytes bounds a single wire record.
const maxLineBytes = 1 << 20

// ErrMalformedRecord matches every decode failure reported by Reader.
var ErrMalformedRecord = errors.New("malformed observation record")

// MalformedRecordError reports the line that poisoned a read.
type MalformedRecordError struct {
	Line int
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("obs: line %d: %v: %v", e.Line, ErrMalformedRecord, e.Err)
}

// Unwrap lets errors.Is match both ErrMalformedRecord and the cause.
func (e *MalformedRecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// Encode writes o to w as one JSON array line. The value element is left
// out entirely when o carries no value.
func Encode(w io.Writer, o Observation) error {
	path := o.Path
	if path == nil {
		path = []string{}
	}
	rec := []any{o.SetID, formatTime(o.Start), formatTime(o.End), path, o.Condition}
	if o.HasValue() {
		rec = append(rec, o.Value)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("obs: encode %s: %w", o, err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("obs: write record: %w", err)
	}
	return nil
}

// Decode parses a single wire record. Errors are returned unwrapped; Reader
// attaches the line number.
func Decode(line []byte) (Observation, error) {
	var o Observation

	var elems []json.RawMessage
	if err := json.Unmarshal(line, &elems); err != nil {
		return o, fmt.Errorf("not a JSON array: %w", err)
	}
	if len(elems) < 5 || len(elems) > 6 {
		return o, fmt.Errorf("expected 5 or 6 elements, got %d", len(elems))
	}

	if err := json.Unmarshal(elems[0], &o.SetID); err != nil {
		return o, fmt.Errorf("set id: %w", err)
	}

	var start, end string
	if err := json.Unmarshal(elems[1], &start); err != nil {
		return o, fmt.Errorf("start time: %w", err)
	}
	if err := json.Unmarshal(elems[2], &end); err != nil {
		return o, fmt.Errorf("end time: %w", err)
	}
	var err error
	if o.Start, err = parseTime(start); err != nil {
		return o, fmt.Errorf("start time: %w", err)
	}
	if o.End, err = parseTime(end); err != nil {
		return o, fmt.Errorf("end time: %w", err)
	}
	if o.End.Before(o.Start) {
		return o, fmt.Errorf("end time %s before start time %s", end, start)
	}

	if err := json.Unmarshal(elems[3], &o.Path); err != nil {
		return o, fmt.Errorf("path: %w", err)
	}
	if len(o.Path) < 2 {
		return o, fmt.Errorf("path has %d elements, need at least 2", len(o.Path))
	}

	if err := json.Unmarshal(elems[4], &o.Condition); err != nil {
		return o, fmt.Errorf("condition: %w", err)
	}
	if o.Condition == "" {
		return o, errors.New("empty condition")
	}

	if len(elems) == 6 && !bytes.Equal(bytes.TrimSpace(elems[5]), []byte("null")) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, elems[5]); err != nil {
			return o, fmt.Errorf("value: %w", err)
		}
		o.Value = json.RawMessage(buf.Bytes())
	}

	return o, nil
}

// Reader decodes observations lazily, one line at a time. It is forward
// only: once exhausted, reading again means opening the source again.
//
//	r := obs.NewReader(in)
//	for r.Next() {
//		o := r.Observation()
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	sc   *bufio.Scanner
	line int
	cur  Observation
	err  error
}

// NewReader returns a Reader over in.
func NewReader(in io.Reader) *Reader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next advances to the next observation. It returns false at end of input
// or on the first error; check Err afterwards.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		o, err := Decode(line)
		if err != nil {
			r.err = &MalformedRecordError{Line: r.line, Err: err}
			return false
		}
		r.cur = o
		return true
	}
	if err := r.sc.Err(); err != nil {
		r.err = fmt.Errorf("obs: read line %d: %w", r.line+1, err)
	}
	return false
}

// Observation returns the record decoded by the last successful Next.
func (r *Reader) Observation() Observation {
	return r.cur
}

// Line returns the number of input lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// Err returns the first error encountered, or nil at clean end of input.
func (r *Reader) Err() error {
	return r.err
}
