package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/jszwec/csvutil"
)

// CSVWriter writes entries as CSV rows with a header line.
type CSVWriter struct {
	mu  sync.Mutex
	w   *csv.Writer
	enc *csvutil.Encoder
	c   io.Closer
}

// NewCSVWriter writes to w. If w is an io.Closer, Close closes it.
func NewCSVWriter(w io.Writer) *CSVWriter {
	cw := csv.NewWriter(w)
	out := &CSVWriter{w: cw, enc: csvutil.NewEncoder(cw)}
	if c, ok := w.(io.Closer); ok {
		out.c = c
	}
	return out
}

// Write encodes one row. The header is written before the first row.
func (c *CSVWriter) Write(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enc.Encode(e); err != nil {
		return fmt.Errorf("journal: encode csv: %w", err)
	}
	return nil
}

// Record implements Recorder. Rows are flushed immediately.
func (c *CSVWriter) Record(_ context.Context, e Entry) error {
	if err := c.Write(e); err != nil {
		return err
	}
	return c.Flush()
}

// Flush writes buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the underlying writer if it is closable.
func (c *CSVWriter) Close() error {
	err := c.Flush()
	if c.c != nil {
		if cerr := c.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// MarshalCSV encodes entries as a CSV document with a header line.
func MarshalCSV(entries []Entry) ([]byte, error) {
	return csvutil.Marshal(entries)
}

// UnmarshalCSV decodes a CSV document written by CSVWriter or MarshalCSV.
func UnmarshalCSV(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := csvutil.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("journal: decode csv: %w", err)
	}
	return entries, nil
}
