package export

import (
	"context"
	"log/slog"
	"sync"

	"framecast/internal/config"
	"framecast/internal/events"
	"framecast/internal/journal"
	"framecast/internal/logging"
	"framecast/internal/services"
	"framecast/internal/session"
)

// PathChooser supplies the destination path for a finished export. Returning
// ok=false means the caller declined (for example a dismissed save dialog)
// and the export is treated as cancelled.
type PathChooser func(format Format) (path string, ok bool, err error)

// FixedPath returns a chooser that always picks the given destination.
func FixedPath(path string) PathChooser {
	return func(Format) (string, bool, error) {
		return path, true, nil
	}
}

// Result describes a completed export.
type Result struct {
	OutputPath string
	SizeBytes  int64
	Frames     int64
}

// Exporter owns one export session at a time and drives it through
// finalization. All methods are safe for concurrent use.
type Exporter struct {
	cfg     *config.Config
	bus     *events.Bus
	logger  *slog.Logger
	parser  ProgressParser
	journal *journal.Store

	mu     sync.Mutex
	sess   *session.Session
	state  State
	cancel context.CancelFunc
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithJournal records completed exports in the given store.
func WithJournal(store *journal.Store) Option {
	return func(e *Exporter) { e.journal = store }
}

// WithProgressParser overrides the encoder output parser.
func WithProgressParser(parser ProgressParser) Option {
	return func(e *Exporter) { e.parser = parser }
}

// New builds an Exporter around the given configuration and event bus.
func New(cfg *config.Config, bus *events.Bus, logger *slog.Logger, opts ...Option) *Exporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Exporter{
		cfg:    cfg,
		bus:    bus,
		logger: logging.WithComponent(logger, "export"),
		parser: NewFrameParser(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Begin opens a fresh workspace for the given render settings and returns
// its path. A Begin while a finalize is in flight is rejected; a Begin over
// an abandoned idle session discards it and starts fresh.
func (e *Exporter) Begin(settings session.Settings) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle && !e.state.Terminal() {
		return "", services.Wrap(services.ErrEncode, "begin", "", "an export is already in progress", nil)
	}
	if e.sess != nil && e.sess.Active() {
		e.sess.Cleanup()
	}

	sess, err := session.Begin(e.cfg.Paths.ScratchDir, settings, e.logger)
	if err != nil {
		return "", err
	}
	e.sess = sess
	e.state = StateIdle
	return sess.Dir(), nil
}

// SaveFrameBatch persists a batch of rendered frames into the workspace.
func (e *Exporter) SaveFrameBatch(ctx context.Context, payloads [][]byte) (int, error) {
	sess, err := e.activeSession()
	if err != nil {
		return 0, err
	}
	return sess.SaveFrameBatch(ctx, payloads)
}

// SaveFrame persists a single rendered frame into the workspace.
func (e *Exporter) SaveFrame(ctx context.Context, payload []byte) (int, error) {
	sess, err := e.activeSession()
	if err != nil {
		return 0, err
	}
	return sess.SaveFrame(ctx, payload)
}

// SaveAudio persists the session's audio track into the workspace.
func (e *Exporter) SaveAudio(ctx context.Context, blob []byte) (string, error) {
	sess, err := e.activeSession()
	if err != nil {
		return "", err
	}
	return sess.SaveAudio(ctx, blob)
}

// FrameCount returns the number of frames persisted so far.
func (e *Exporter) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return 0
	}
	return e.sess.FrameCount()
}

// Cancel aborts the export. With a finalize in flight the encoder process is
// killed and Finalize returns through its cancelled path; otherwise the
// workspace is discarded immediately and a cancellation event is published.
func (e *Exporter) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		return nil
	}
	if e.sess == nil || !e.sess.Active() {
		return services.Wrap(services.ErrNotInitialized, "cancel", "", "no active export session", nil)
	}
	e.sess.Cleanup()
	e.sess = nil
	e.state = StateCancelled
	if e.bus != nil {
		e.bus.Publish(events.ExportCanceled{})
	}
	e.logger.Info("export cancelled before finalize")
	return nil
}

func (e *Exporter) activeSession() (*session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil, services.Wrap(services.ErrNotInitialized, "session", "", "no active export session", nil)
	}
	return e.sess, nil
}
