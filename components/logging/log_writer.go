package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// intervalRotatingWriter rotates its underlying file once RotateInterval
// has elapsed since it was opened. Filenames carry a date tag
// (YYYYMMDD) when the interval is a day or longer, and a full
// date-time tag (YYYYMMDDHHMMSS) otherwise, so sub-daily rotations get
// distinct files unless two of them fall within the same second.
type intervalRotatingWriter struct {
	mu   sync.Mutex
	dir  string
	base string
	cfg  *RotateConfig

	file     *os.File
	openedAt time.Time
}

var (
	dateTag     = regexp.MustCompile(`^.+\.log\.[0-9]{8}$`)
	dateTimeTag = regexp.MustCompile(`^.+\.log\.[0-9]{14}$`)
)

func newIntervalRotatingWriter(dir, base string, cfg *RotateConfig) (*intervalRotatingWriter, error) {
	if cfg == nil || cfg.RotateInterval <= 0 {
		return nil, fmt.Errorf("logging: invalid rotate interval %v", cfg)
	}
	w := &intervalRotatingWriter{dir: dir, base: base, cfg: cfg}
	if err := w.rotateIfDueLocked(time.Now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *intervalRotatingWriter) tag(t time.Time) string {
	if w.cfg.RotateInterval >= 24*time.Hour {
		return t.Format("20060102")
	}
	return t.Format("20060102150405")
}

func (w *intervalRotatingWriter) pathFor(tag string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s.log.%s", w.base, tag))
}

func (w *intervalRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfDueLocked(time.Now()); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *intervalRotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Sync()
	}
	return nil
}

// Close releases the currently open file. Safe to call even if no
// file has been opened yet.
func (w *intervalRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *intervalRotatingWriter) rotateIfDueLocked(now time.Time) error {
	if w.file != nil {
		if now.Sub(w.openedAt) < w.cfg.RotateInterval {
			return nil
		}
		_ = w.file.Sync()
		_ = w.file.Close()
	}

	path := w.pathFor(w.tag(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("logging: open rotated log file: %w", err)
	}
	w.file = f
	w.openedAt = now

	if w.cfg.CleanupEnabled && w.cfg.MaxAge > 0 {
		w.cleanupLocked(now)
	}
	return nil
}

func (w *intervalRotatingWriter) cleanupLocked(now time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	cutoff := now.Add(-w.cfg.MaxAge)
	prefix := w.base + ".log."
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if !(dateTag.MatchString(name) || dateTimeTag.MatchString(name)) {
			continue
		}
		stamp := strings.TrimPrefix(name, prefix)
		layout := "20060102"
		if len(stamp) == 14 {
			layout = "20060102150405"
		}
		parsed, err := time.Parse(layout, stamp)
		if err != nil {
			continue
		}
		if parsed.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}
