package hdf5store

import "log/slog"

// Config configures an HDF5-backed store.
type Config struct {
	// Path is the .emd file. A missing file starts an empty container that
	// is created on Close.
	Path string

	// ReadOnly discards changes instead of writing them on Close.
	ReadOnly bool

	// Logger receives notes about objects that cannot be represented, such
	// as compound datatypes or densely stored links. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used for .emd files.
func DefaultConfig() Config {
	return Config{}
}
