// Package output renders store rows for the terminal.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SL-LAIDLAW/metallaxis/internal/store"
)

// TabWriter writes rows in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a tab-delimited writer for rows with the given columns.
func NewTabWriter(w io.Writer, columns []string) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString("#" + strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single row.
func (tw *TabWriter) Write(row []any) error {
	if len(row) != len(tw.columns) {
		return fmt.Errorf("row has %d values, want %d", len(row), len(tw.columns))
	}
	values := make([]string, len(row))
	for i, v := range row {
		values[i] = FormatValue(v)
	}
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteRows writes the header followed by every row and flushes.
func WriteRows(w io.Writer, rows *store.Rows) error {
	tw := NewTabWriter(w, rows.Columns)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, row := range rows.Values {
		if err := tw.Write(row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// FormatValue renders a stored value. NULL is shown as the VCF missing
// value; floats use the shortest representation.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "."
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "T"
		}
		return "F"
	default:
		return fmt.Sprint(x)
	}
}
