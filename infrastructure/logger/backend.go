package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

const normalLogSize = 512

// Flags that add the logging callsite to every line. LogFlagShortFile takes
// precedence over LogFlagLongFile.
const (
	LogFlagLongFile uint32 = 1 << iota
	LogFlagShortFile
)

// defaultFlags is read from the comma separated LOGFLAGS environment variable.
// It is a var initializer so that it is set before BackendLog is built.
var defaultFlags = parseLogFlags(os.Getenv("LOGFLAGS"))

func parseLogFlags(value string) (flags uint32) {
	for _, flag := range strings.Split(value, ",") {
		switch strings.TrimSpace(flag) {
		case "longfile":
			flags |= LogFlagLongFile
		case "shortfile":
			flags |= LogFlagShortFile
		}
	}
	return flags
}

// 100 MB per file, 8 rolled files
const (
	defaultThresholdKB = 100 * 1000
	defaultMaxRolls    = 8
)

var errBackendRunning = errors.New("the logger backend is already running")

type levelWriter struct {
	io.WriteCloser
	level Level
}

// Backend fans log entries of all subsystems out to its writers. Entries are
// written by a single goroutine, so writes from different subsystems never
// interleave.
type Backend struct {
	flag      uint32
	isRunning uint32
	writers   []levelWriter
	writeChan chan logEntry
	done      sync.WaitGroup
}

// NewBackend creates a logger backend using the flags from LOGFLAGS.
func NewBackend() *Backend {
	return &Backend{flag: defaultFlags, writeChan: make(chan logEntry)}
}

// AddLogFile adds a rotated log file receiving every entry at or above
// logLevel, using the default rotation settings.
func (b *Backend) AddLogFile(logFile string, logLevel Level) error {
	return b.AddLogFileWithCustomRotator(logFile, logLevel, defaultThresholdKB, defaultMaxRolls)
}

// AddLogFileWithCustomRotator adds a rotated log file receiving every entry at
// or above logLevel. The file and its directory are created if missing.
func (b *Backend) AddLogFileWithCustomRotator(logFile string, logLevel Level, thresholdKB int64, maxRolls int) error {
	if b.IsRunning() {
		return errBackendRunning
	}
	if logDir := filepath.Dir(logFile); logDir != "." {
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return errors.Wrapf(err, "failed to create log directory %s", logDir)
		}
	}
	r, err := rotator.New(logFile, thresholdKB, false, maxRolls)
	if err != nil {
		return errors.Wrapf(err, "failed to create file rotator for %s", logFile)
	}
	return b.AddLogWriter(r, logLevel)
}

// AddLogWriter adds a writer receiving every entry at or above logLevel.
func (b *Backend) AddLogWriter(writer io.WriteCloser, logLevel Level) error {
	if b.IsRunning() {
		return errBackendRunning
	}
	b.writers = append(b.writers, levelWriter{WriteCloser: writer, level: logLevel})
	return nil
}

// Run starts writing entries in a separate goroutine. It may only be called
// once.
func (b *Backend) Run() error {
	if !atomic.CompareAndSwapUint32(&b.isRunning, 0, 1) {
		return errBackendRunning
	}
	b.done.Add(1)
	go func() {
		defer b.done.Done()
		defer func() {
			if err := recover(); err != nil {
				fmt.Fprintf(os.Stderr, "Fatal error in the logger backend: %+v\n%s\n", err, debug.Stack())
			}
		}()
		for entry := range b.writeChan {
			for _, writer := range b.writers {
				if entry.level >= writer.level {
					_, _ = writer.Write(entry.log)
				}
			}
		}
	}()
	return nil
}

// IsRunning returns whether Run has been called.
func (b *Backend) IsRunning() bool {
	return atomic.LoadUint32(&b.isRunning) != 0
}

// Close flushes the pending entries and closes all writers. Entries logged
// afterwards go to stderr.
func (b *Backend) Close() {
	atomic.StoreUint32(&b.isRunning, 0)
	close(b.writeChan)
	b.done.Wait()
	for _, writer := range b.writers {
		_ = writer.Close()
	}
}

// Logger returns a logger for the given subsystem tag. It is off until its
// level is set.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{LevelOff, subsystemTag, b, b.writeChan}
}
