// Package artifacts owns the processed/ directory layout: per-record
// document, attachment, and structured snapshot files. The extractor is
// the only writer for a given identifier; the loader reads snapshots
// back exactly once (re-reads allowed for manual retries).
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
)

const tsLayout = "20060102_150405"

// Dir manages one processed/ directory.
type Dir struct {
	path string
	log  *zap.Logger
	now  func() time.Time
}

// New creates the artifact directory if needed.
func New(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifacts: create dir %s", path)
	}
	return &Dir{
		path: path,
		log:  zap.L().With(zap.String("component", "artifacts.dir")),
		now:  time.Now,
	}, nil
}

// Path returns the artifact directory.
func (d *Dir) Path() string { return d.path }

// SaveDocument writes the rendered document (PDF, or PNG when the
// renderer fell back to a screenshot) as <identifier>_<ts>.<ext>.
func (d *Dir) SaveDocument(identifier string, data []byte, ext string) (string, error) {
	name := fmt.Sprintf("%s_%s.%s", sanitize(identifier), d.now().UTC().Format(tsLayout), strings.TrimPrefix(ext, "."))
	return d.write(name, data)
}

// SaveAttachment writes the fetched evidence file, keeping the original
// extension: <identifier>_attachment_<ts>.<ext>.
func (d *Dir) SaveAttachment(identifier, originalName string, data []byte) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(originalName), ".")
	if ext == "" {
		ext = "bin"
	}
	name := fmt.Sprintf("%s_attachment_%s.%s", sanitize(identifier), d.now().UTC().Format(tsLayout), ext)
	return d.write(name, data)
}

// SaveRecord writes the structured snapshot as
// <identifier>_data_<ts>.json and returns its path.
func (d *Dir) SaveRecord(rec *model.ExtractedRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "artifacts: marshal record")
	}
	name := fmt.Sprintf("%s_data_%s.json", sanitize(rec.Radicado), d.now().UTC().Format(tsLayout))
	return d.write(name, data)
}

func (d *Dir) write(name string, data []byte) (string, error) {
	path := filepath.Join(d.path, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "artifacts: write %s", name)
	}
	return path, nil
}

// ListRecords loads every structured snapshot in the directory, oldest
// first by filename. Unparsable snapshots are skipped with a warning so
// one bad file cannot block a replay.
func (d *Dir) ListRecords() ([]*model.ExtractedRecord, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifacts: read dir %s", d.path)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), "_data_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	records := make([]*model.ExtractedRecord, 0, len(names))
	for _, name := range names {
		data, readErr := os.ReadFile(filepath.Join(d.path, name))
		if readErr != nil {
			d.log.Warn("skipping unreadable snapshot", zap.String("file", name), zap.Error(readErr))
			continue
		}
		var rec model.ExtractedRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr != nil {
			d.log.Warn("skipping corrupt snapshot", zap.String("file", name), zap.Error(jsonErr))
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// sanitize strips path separators and other characters that are unsafe
// in artifact filenames. Radicados are usually clean, but synthetic or
// scraped identifiers are not trusted.
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}
	return strings.Map(mapper, s)
}
