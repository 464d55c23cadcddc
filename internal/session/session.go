package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"framecast/internal/logging"
	"framecast/internal/services"
)

const (
	// FramePattern is the printf pattern ffmpeg consumes frames through.
	FramePattern = "frame_%06d.png"
	// AudioFileName is the fixed name of the session's audio blob.
	AudioFileName = "audio.wav"
	// TempOutputPrefix names the transient encode output inside the
	// workspace; the mode-specific extension is appended.
	TempOutputPrefix = "export_temp"

	lockFileName = ".framecast.lock"
)

// Settings captures the render parameters supplied when a session opens.
type Settings struct {
	Width  int
	Height int
	FPS    int
}

// Session is the private workspace for one export.
type Session struct {
	mu         sync.Mutex
	dir        string
	settings   Settings
	frameCount int
	lock       *flock.Flock
	active     bool
	logger     *slog.Logger
}

// Begin creates a fresh uuid-named workspace under scratchDir and locks it
// against other framecast processes. The caller owns the returned session
// and must end it with Cleanup.
func Begin(scratchDir string, settings Settings, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if settings.FPS <= 0 {
		return nil, fmt.Errorf("session: frame rate must be positive, got %d", settings.FPS)
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create scratch dir: %w", err)
	}

	dir := filepath.Join(scratchDir, "session-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create workspace: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		_ = os.RemoveAll(dir)
		if err == nil {
			err = fmt.Errorf("workspace already locked")
		}
		return nil, fmt.Errorf("session: lock workspace: %w", err)
	}

	logger.Debug("session started",
		logging.String("workspace", dir),
		logging.Int("width", settings.Width),
		logging.Int("height", settings.Height),
		logging.Int("fps", settings.FPS),
	)

	return &Session{
		dir:      dir,
		settings: settings,
		lock:     lock,
		active:   true,
		logger:   logger,
	}, nil
}

// Dir returns the workspace directory.
func (s *Session) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Settings returns the render parameters the session opened with.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// FrameCount returns the cumulative number of persisted frames.
func (s *Session) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// Active reports whether the session has not yet been cleaned up.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// FramePath returns the on-disk path for the given frame index.
func (s *Session) FramePath(index int) string {
	return filepath.Join(s.Dir(), fmt.Sprintf(FramePattern, index))
}

// InputPattern returns the sequential-index pattern ffmpeg reads frames with.
func (s *Session) InputPattern() string {
	return filepath.Join(s.Dir(), FramePattern)
}

// AudioPath returns the fixed audio blob location.
func (s *Session) AudioPath() string {
	return filepath.Join(s.Dir(), AudioFileName)
}

// HasAudio reports whether an audio blob exists on disk.
func (s *Session) HasAudio() bool {
	info, err := os.Stat(s.AudioPath())
	return err == nil && !info.IsDir()
}

// TempOutputPath returns the transient encode output path for the given
// extension (including the dot).
func (s *Session) TempOutputPath(ext string) string {
	return filepath.Join(s.Dir(), TempOutputPrefix+ext)
}

// Cleanup removes the workspace and deactivates the session. It is
// idempotent and safe from any state; individual removal errors are logged
// and otherwise ignored.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active && s.dir == "" {
		return
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
	if s.dir != "" {
		if err := os.RemoveAll(s.dir); err != nil {
			s.logger.Warn("failed to remove workspace",
				logging.String("workspace", s.dir),
				logging.Error(err),
			)
		} else {
			s.logger.Debug("workspace removed", logging.String("workspace", s.dir))
		}
		s.dir = ""
	}
	s.active = false
	s.frameCount = 0
}

func (s *Session) ensureActive() error {
	if !s.active {
		return services.Wrap(services.ErrNotInitialized, "session", "", "no active export session", nil)
	}
	return nil
}
