package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Formats lists the supported formats in picker order.
var Formats = []Format{FormatCSV, FormatJSON}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or json)", s)
}

// FileName is the default export file name for day, e.g.
// habitlab-export-2026-03-01.csv.
func FileName(f Format, day time.Time) string {
	return "habitlab-export-" + day.Format("2006-01-02") + "." + string(f)
}

// Write encodes rows to w in format f.
func Write(w io.Writer, f Format, rows []Row) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// ToFile writes rows to path in format f.
func ToFile(f Format, rows []Row, path string) error {
	switch f {
	case FormatCSV:
		return ToCSV(rows, path)
	case FormatJSON:
		return ToJSON(rows, path)
	}
	return fmt.Errorf("unknown export format %q", f)
}
