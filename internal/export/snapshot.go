package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

// Snapshot is the JSON backup artifact for the opportunity table.
type Snapshot struct {
	ExportedAt    time.Time           `json:"exported_at"`
	Count         int                 `json:"count"`
	Opportunities []model.Opportunity `json:"opportunities"`
}

// WriteSnapshot writes a backup of opps to path. The file appears atomically:
// it is staged in the target directory and renamed into place.
func WriteSnapshot(path string, opps []model.Opportunity) error {
	if opps == nil {
		opps = []model.Opportunity{}
	}
	snap := Snapshot{
		ExportedAt:    time.Now().UTC(),
		Count:         len(opps),
		Opportunities: opps,
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "snapshot: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return eris.Wrap(err, "snapshot: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "snapshot: encode")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "snapshot: close temp file")
	}

	return eris.Wrapf(os.Rename(tmpPath, path), "snapshot: rename to %s", path)
}

// ReadSnapshot loads a backup written by WriteSnapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", path)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "snapshot: parse %s", path)
	}
	return &snap, nil
}
