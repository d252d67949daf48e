package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// WriteCSV writes Header and rows to w. Fields containing quotes, commas or
// newlines are quoted, with inner quotes doubled.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ToCSV(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
