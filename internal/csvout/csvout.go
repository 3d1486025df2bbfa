// Package csvout writes the email,name,attributes table.
//
// Quoting is done by hand rather than by encoding/csv: the attributes column
// already carries quotes and commas from its JSON-like content and is wrapped
// in a single pair of quotes as-is.
package csvout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header is the first line of every output file.
var Header = []string{"email", "name", "attributes"}

// Record is one output row.
type Record struct {
	Email      string
	Name       string
	Attributes string
}

// Writer emits rows to an underlying writer. It must be closed (or flushed)
// for buffered rows to reach the destination.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	rows   int
}

// NewWriter returns a Writer buffering into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create truncates or creates the file at path and returns a Writer for it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csvout: creating %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// WriteHeader writes the header line. Call it once, before any row.
func (w *Writer) WriteHeader() error {
	return w.line(strings.Join(Header, ","))
}

// Write appends one row. Email is quoted only when it needs to be; name and
// attributes are always wrapped in quotes.
func (w *Writer) Write(r Record) error {
	if err := w.line(quoteIfNeeded(r.Email) + "," + quote(r.Name) + ",\"" + r.Attributes + "\""); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows reports how many data rows have been written.
func (w *Writer) Rows() int {
	return w.rows
}

// Flush writes buffered data to the destination.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("csvout: flush: %w", err)
	}
	return nil
}

// Close flushes and, for writers from Create, closes the file.
// It is safe to call more than once.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("csvout: close: %w", cerr)
		}
		w.closer = nil
	}
	return err
}

func (w *Writer) line(s string) error {
	if _, err := w.w.WriteString(s + "\n"); err != nil {
		return fmt.Errorf("csvout: write: %w", err)
	}
	return nil
}

// quote wraps s in double quotes, doubling any quote inside it.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
