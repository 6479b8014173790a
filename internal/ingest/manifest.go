package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Manifest maps a warehouse table to the local files downloaded for it, in
// listing order. It is the value handed from the download task to the load task.
type Manifest map[string][]string

// Tables returns the manifest's table names in sorted order.
func (m Manifest) Tables() []string {
	tables := make([]string, 0, len(m))
	for table := range m {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// FileCount is the number of paths across all tables.
func (m Manifest) FileCount() int {
	n := 0
	for _, files := range m {
		n += len(files)
	}
	return n
}

// Files flattens the manifest in table order.
func (m Manifest) Files() []string {
	files := make([]string, 0, m.FileCount())
	for _, table := range m.Tables() {
		files = append(files, m[table]...)
	}
	return files
}

func (m Manifest) Encode() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return payload, nil
}

func DecodeManifest(payload []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
