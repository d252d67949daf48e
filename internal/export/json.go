package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

type jsonExport struct {
	ExportedAt string `json:"exported_at"`
	Count      int    `json:"count"`
	Records    []Row  `json:"records"`
}

func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	data, err := json.MarshalIndent(jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(rows),
		Records:    rows,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func ToJSON(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	if err := WriteJSON(f, rows); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return f.Close()
}
