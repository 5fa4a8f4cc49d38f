package control

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Sentinel file names inside the control directory. Zero-byte files;
// presence is the signal.
const (
	pauseFile  = "PAUSE"
	resumeFile = "RESUME"
	stopFile   = "STOP"
	statusFile = "STATUS.json"
)

// FileStore implements Store over sentinel files in a control directory.
// File drops are a deliberately simple cross-process IPC channel: an
// operator (or cron job) touches control/PAUSE and the running batch
// picks it up on the next tick.
type FileStore struct {
	dir string
	log *zap.Logger
}

// NewFileStore creates the control directory if needed and returns a
// file-backed control store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "control: create dir %s", dir)
	}
	return &FileStore{
		dir: dir,
		log: zap.L().With(zap.String("component", "control.filestore")),
	}, nil
}

// Dir returns the control directory path.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// Poll derives the current signal from the sentinel files. STOP wins
// over everything. RESUME next to PAUSE clears both markers so the
// subsequent poll returns CONTINUE.
func (s *FileStore) Poll() Signal {
	if s.exists(stopFile) {
		return SignalStop
	}

	paused := s.exists(pauseFile)
	resumed := s.exists(resumeFile)

	switch {
	case paused && resumed:
		// Operator asked to resume: clear both markers. Removal errors
		// are logged and the batch keeps going.
		s.removeSentinels(pauseFile, resumeFile)
		return SignalResume
	case resumed:
		// A RESUME with nothing to resume is stale; left on disk it
		// would instantly cancel the next PAUSE.
		s.removeSentinels(resumeFile)
		return SignalContinue
	case paused:
		return SignalPause
	}
	return SignalContinue
}

func (s *FileStore) removeSentinels(names ...string) {
	for _, f := range names {
		if err := os.Remove(filepath.Join(s.dir, f)); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to clear sentinel", zap.String("file", f), zap.Error(err))
		}
	}
}

// Emit writes STATUS.json atomically (write temp, rename). Failures are
// logged and dropped; status is advisory output only.
func (s *FileStore) Emit(st Status) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.log.Warn("failed to marshal status", zap.Error(err))
		return
	}

	tmp := filepath.Join(s.dir, statusFile+".tmp")
	final := filepath.Join(s.dir, statusFile)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Warn("failed to write status", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, final); err != nil {
		s.log.Warn("failed to publish status", zap.Error(err))
	}
}

// Drop creates one sentinel file. Idempotent: dropping an existing
// signal is a no-op.
func (s *FileStore) Drop(sig Signal) error {
	name, err := sentinelName(sig)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "control: drop %s", name)
	}
	return f.Close()
}

// Clear removes all sentinel files. Idempotent.
func (s *FileStore) Clear() error {
	for _, name := range []string{pauseFile, resumeFile, stopFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "control: remove %s", name)
		}
	}
	return nil
}

// ReadStatus loads the last emitted status snapshot, for the operator
// `status` command. Returns nil when no snapshot exists yet.
func (s *FileStore) ReadStatus() (*Status, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, statusFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "control: read status")
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrap(err, "control: parse status")
	}
	return &st, nil
}

func sentinelName(sig Signal) (string, error) {
	switch sig {
	case SignalPause:
		return pauseFile, nil
	case SignalResume:
		return resumeFile, nil
	case SignalStop:
		return stopFile, nil
	default:
		return "", eris.Errorf("control: no sentinel for signal %s", sig)
	}
}
