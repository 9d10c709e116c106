package badgerstore

import (
	"fmt"
	"log/slog"
)

// Config configures a badger-backed store.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps the database entirely in memory (tests).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal log lines. Nil disables them.
	Logger *slog.Logger

	// CompressionLevel is the zlib level (0-9) for dataset blobs.
	CompressionLevel int

	// Shuffle enables byte shuffling ahead of compression.
	Shuffle bool

	// Checksum appends a Fletcher-32 checksum to each blob.
	Checksum bool
}

// DefaultConfig returns the configuration used for .emd files.
func DefaultConfig() Config {
	return Config{
		SyncWrites:       true,
		CompressionLevel: 6,
		Shuffle:          true,
		Checksum:         true,
	}
}

// InMemoryConfig returns a configuration for an ephemeral store.
func InMemoryConfig() Config {
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.SyncWrites = false
	return cfg
}

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
