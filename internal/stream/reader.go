// Package stream reads export documents one conversation record at a time.
// A document is either a single conversation object or an array of many; the
// array case is tokenized incrementally so peak memory is bounded by the size
// of one record, not the whole document.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrBadDocument is returned when the input starts with neither an array nor
// an object.
var ErrBadDocument = errors.New("document is neither a JSON array nor an object")

// RecordReader yields one record per Next call until io.EOF.
type RecordReader struct {
	dec    *json.Decoder
	array  bool
	opened bool
	done   bool
}

// NewRecordReader inspects the first non-whitespace byte of r to decide the
// document shape and prepares an incremental decoder over it.
func NewRecordReader(r io.Reader) (*RecordReader, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			if err := br.UnreadByte(); err != nil {
				return nil, err
			}
			return &RecordReader{dec: json.NewDecoder(br), array: true}, nil
		case '{':
			if err := br.UnreadByte(); err != nil {
				return nil, err
			}
			return &RecordReader{dec: json.NewDecoder(br)}, nil
		default:
			return nil, fmt.Errorf("%w (starts with %q)", ErrBadDocument, b)
		}
	}
}

// Next decodes the next record into v. It returns io.EOF once the document
// is exhausted; any other error means the document cannot be tokenized
// further and the caller should abort this input.
func (r *RecordReader) Next(v any) error {
	if r.done {
		return io.EOF
	}

	if !r.array {
		r.done = true
		if err := r.dec.Decode(v); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		return nil
	}

	if !r.opened {
		if _, err := r.dec.Token(); err != nil { // consume '['
			return fmt.Errorf("open array: %w", err)
		}
		r.opened = true
	}

	if !r.dec.More() {
		r.done = true
		if _, err := r.dec.Token(); err != nil { // consume ']'
			return fmt.Errorf("close array: %w", err)
		}
		return io.EOF
	}

	if err := r.dec.Decode(v); err != nil {
		r.done = true
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
