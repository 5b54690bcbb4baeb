// Package logger provides leveled logging for indexsync.
// Debug and Section output appears only in verbose mode (--verbose).
// Info, Warn and Error are always written so a daemon never fails silently.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu         sync.Mutex
	verbose    bool
	timestamps bool
	console    io.Writer = os.Stderr
	output     io.Writer = os.Stderr
	fileSink   *lumberjack.Logger
)

// FileOptions configures rotating file output.
type FileOptions struct {
	// Path is the log file location.
	Path string

	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetTimestamps prefixes each line with an RFC 3339 timestamp.
// Long-running commands enable it; one-shot commands leave it off.
func SetTimestamps(v bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = v
}

// SetOutput sets the console writer for logs.
// Defaults to os.Stderr. Useful for testing. An open log file keeps
// receiving output alongside w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	console = w
	output = w
	if fileSink != nil {
		output = io.MultiWriter(w, fileSink)
	}
}

// SetFile routes logs to a size-rotated file in addition to the console writer.
func SetFile(opts FileOptions) {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		_ = fileSink.Close()
	}
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	fileSink = &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	output = io.MultiWriter(console, fileSink)
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileSink == nil {
		return nil
	}
	err := fileSink.Close()
	fileSink = nil
	output = console
	return err
}

func write(level string, onlyVerbose bool, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if onlyVerbose && !verbose {
		return
	}
	prefix := "[" + level + "] "
	if timestamps {
		prefix = time.Now().UTC().Format(time.RFC3339) + " " + prefix
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write("DEBUG", true, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message.
func Info(format string, args ...any) {
	write("INFO", false, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	write("WARN", false, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	write("ERROR", false, format, args...)
}
