package emd

import (
	"log/slog"
	"time"

	"github.com/robert-malhotra/go-emd/store"
	"github.com/robert-malhotra/go-emd/store/hdf5store"
)

// MemoryLimit is the default ceiling for a single dataset load (2 TiB).
const MemoryLimit uint64 = 2048 * 1024 * 1024 * 1024

// Recorder receives decode and lifecycle events. internal/metrics provides
// a Prometheus implementation.
type Recorder interface {
	ObserveDecode(format string, d time.Duration, err error)
	DatasetLoaded(n int64)
	DatasetUnloaded(n int64)
	LoadRejected()
}

type nopRecorder struct{}

func (nopRecorder) ObserveDecode(string, time.Duration, error) {}
func (nopRecorder) DatasetLoaded(int64)                        {}
func (nopRecorder) DatasetUnloaded(int64)                      {}
func (nopRecorder) LoadRejected()                              {}

// Option configures a Model.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	memoryLimit uint64
	sampler     *Sampler
	recorder    Recorder
	opener      store.Opener
}

func defaultOptions() *options {
	return &options{
		logger:      slog.New(slog.DiscardHandler),
		memoryLimit: MemoryLimit,
		recorder:    nopRecorder{},
		opener:      hdf5store.OpenPath,
	}
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMemoryLimit sets the per-dataset load ceiling in bytes.
func WithMemoryLimit(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.memoryLimit = n
		}
	}
}

// WithSampler sets the sampler used for frame display ranges.
func WithSampler(s *Sampler) Option {
	return func(o *options) {
		o.sampler = s
	}
}

// WithMetrics sets the event recorder.
func WithMetrics(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithStoreOpener sets how .emd containers are opened. The default opens
// the path as an HDF5 file, creating it on first save.
func WithStoreOpener(fn store.Opener) Option {
	return func(o *options) {
		if fn != nil {
			o.opener = fn
		}
	}
}
