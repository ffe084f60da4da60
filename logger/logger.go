package logger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blockdreamer/config"
)

const (
	MaxLogSize    = 50 * 1024 * 1024 // bytes written to a file before it is rotated
	MaxLogBackups = 5                // rotated files kept next to the live one

	tsFormat = "20060102150405"
)

var (
	DreamLogger, ReportLogger, GlobalLogger *slog.Logger
	consoleEnabled                          = true

	globalRW, dreamRW, reportRW *rotatingWriter
)

// rotatingWriter appends to dir/prefix.log. Once a write would push the file past maxSize the
// file is shifted to prefix.1.log, older backups move up by one and the oldest is removed.
type rotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	dir        string
	prefix     string // e.g. "blockdreamer_20250925101122_run_dream"
	size       int64
	maxSize    int64
	maxBackups int
}

func newRotatingWriter(dir, prefix string, maxSize int64, maxBackups int) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &rotatingWriter{dir: dir, prefix: prefix, maxSize: maxSize, maxBackups: maxBackups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// name of the live file for n == 0, of the n-th backup otherwise
func (w *rotatingWriter) name(n int) string {
	if n == 0 {
		return filepath.Join(w.dir, w.prefix+".log")
	}
	return filepath.Join(w.dir, fmt.Sprintf("%s.%d.log", w.prefix, n))
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.name(0), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file, w.size = f, info.Size()
	return nil
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if w.maxBackups <= 0 {
		if err := os.Remove(w.name(0)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return w.open()
	}
	if err := os.Remove(w.name(w.maxBackups)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for n := w.maxBackups - 1; n >= 0; n-- {
		if err := os.Rename(w.name(n), w.name(n+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return w.open()
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	// A record larger than maxSize still goes to a fresh file whole
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotate %s: %w", w.name(0), err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func SetConsoleEnabled(enabled bool) {
	consoleEnabled = enabled
	resetLoggers()
}

// InitLogs gives the dream and report subsystems their own files for cmdName.
func InitLogs(cmdName string) {
	ts := time.Now().Format(tsFormat)
	dreamRW = mustWriter(fmt.Sprintf("blockdreamer_%s_%s_dream", ts, cmdName))
	reportRW = mustWriter(fmt.Sprintf("blockdreamer_%s_%s_report", ts, cmdName))
	resetLoggers()
}

func init() {
	globalRW = mustWriter(fmt.Sprintf("blockdreamer_%s_global", time.Now().Format(tsFormat)))
	// Subsystems log to the global file until InitLogs gives them their own
	resetLoggers()
}

func mustWriter(prefix string) *rotatingWriter {
	w, err := newRotatingWriter(config.LogPath, prefix, MaxLogSize, MaxLogBackups)
	if err != nil {
		log.Fatal(err)
	}
	return w
}

func CloseAll() {
	for _, w := range []*rotatingWriter{globalRW, dreamRW, reportRW} {
		if w != nil {
			_ = w.Close()
		}
	}
}

func newHandler(fileWriter io.Writer) slog.Handler {
	w := fileWriter
	if consoleEnabled {
		w = io.MultiWriter(os.Stdout, fileWriter)
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: true,
	})
}

func resetLoggers() {
	if globalRW != nil {
		GlobalLogger = slog.New(newHandler(globalRW))
	}
	if dreamRW != nil {
		DreamLogger = slog.New(newHandler(dreamRW))
	} else {
		DreamLogger = GlobalLogger
	}
	if reportRW != nil {
		ReportLogger = slog.New(newHandler(reportRW))
	} else {
		ReportLogger = GlobalLogger
	}
}
