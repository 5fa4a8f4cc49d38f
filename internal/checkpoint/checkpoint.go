// Package checkpoint persists pagination progress as immutable,
// timestamped JSON snapshots so a run can resume after a crash or stop.
package checkpoint

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
)

// State is the durable snapshot of pagination progress. In memory it is
// owned and mutated only by the pagination engine; durability lives
// here, not in the process.
type State struct {
	Timestamp        time.Time `json:"timestamp"`
	CurrentPage      int       `json:"current_page"`
	TotalRecords     int       `json:"total_records"`
	ProcessedRecords int       `json:"processed_records"`
	RecordsPerPage   int       `json:"records_per_page"`
	TotalPages       int       `json:"total_pages"`
	SessionStart     time.Time `json:"session_start"`
	LastCheckpoint   time.Time `json:"last_checkpoint"`
}

// TotalPagesFor derives the page count, rounding up.
func TotalPagesFor(totalRecords, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (totalRecords + perPage - 1) / perPage
}

// Store persists and restores checkpoints. Checkpoints are write-once;
// there is no update or delete.
type Store interface {
	// Save writes a new checkpoint and returns its identifier.
	Save(st State) (string, error)

	// LoadLatest returns the newest parsable checkpoint, or nil when
	// the directory is empty or every entry is corrupt.
	LoadLatest() (*State, error)
}

// DirStore implements Store over a directory of
// checkpoint_<YYYYMMDD_HHMMSS>.json files. The "current" checkpoint is
// the one with the newest modification time.
type DirStore struct {
	dir string
	log *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewDirStore creates the checkpoint directory if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: create dir %s", dir)
	}
	return &DirStore{
		dir: dir,
		log: zap.L().With(zap.String("component", "checkpoint.dirstore")),
		now: time.Now,
	}, nil
}

// Save writes the state as a fresh checkpoint file. Never overwrites:
// a nanosecond suffix disambiguates saves within the same second.
func (s *DirStore) Save(st State) (string, error) {
	now := s.now().UTC()
	st.LastCheckpoint = now
	if st.Timestamp.IsZero() {
		st.Timestamp = now
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "checkpoint: marshal state")
	}

	name := fmt.Sprintf("checkpoint_%s.json", now.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if _, statErr := os.Stat(path); statErr == nil {
		name = fmt.Sprintf("checkpoint_%s_%09d.json", now.Format("20060102_150405"), now.Nanosecond())
		path = filepath.Join(s.dir, name)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "checkpoint: write %s", name)
	}

	s.log.Debug("checkpoint saved",
		zap.String("file", name),
		zap.Int("current_page", st.CurrentPage),
		zap.Int("processed_records", st.ProcessedRecords),
	)
	return name, nil
}

// LoadLatest scans the directory for checkpoint files, newest
// modification time first, and returns the first one that parses.
// Corrupt entries are skipped with a warning, not fatal.
func (s *DirStore) LoadLatest() (*State, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: read dir %s", s.dir)
	}

	type candidate struct {
		name    string
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "checkpoint_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		candidates = append(candidates, candidate{
			name:    e.Name(),
			path:    filepath.Join(s.dir, e.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].modTime.After(candidates[j].modTime)
		}
		// Back-to-back saves can share an mtime; the embedded timestamp
		// (and nanosecond suffix) in the name orders them.
		return candidates[i].name > candidates[j].name
	})

	for _, c := range candidates {
		data, readErr := os.ReadFile(c.path)
		if readErr != nil {
			s.log.Warn("skipping unreadable checkpoint", zap.String("file", c.path), zap.Error(readErr))
			continue
		}
		var st State
		if jsonErr := json.Unmarshal(data, &st); jsonErr != nil {
			s.log.Warn("skipping corrupt checkpoint", zap.String("file", c.path), zap.Error(jsonErr))
			continue
		}
		return &st, nil
	}
	return nil, nil
}
