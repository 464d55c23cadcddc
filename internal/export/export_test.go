package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"framecast/internal/config"
	"framecast/internal/events"
	"framecast/internal/logging"
	"framecast/internal/services"
	"framecast/internal/session"
)

func testConfig(t *testing.T, ffmpegPath string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.ScratchDir = t.TempDir()
	cfg.Encoder.FFmpegPath = ffmpegPath
	return &cfg
}

// writeEncoderStub writes a shell script standing in for ffmpeg. Every
// invocation except the locate probe appends its arguments to a log file,
// emits progress on stderr, and creates the output file named by its final
// argument.
func writeEncoderStub(t *testing.T, dir string) (stub, callLog string) {
	t.Helper()
	callLog = filepath.Join(dir, "calls.log")
	body := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "-version" ]; then exit 0; fi
for a in "$@"; do last="$a"; done
echo "$@" >> %q
printf 'frame=    1 fps=0.0 q=28.0 size=       0KiB\r' >&2
printf 'frame=    2 fps=30 q=28.0 size=     128KiB\r' >&2
printf 'frame=    3 fps=30 q=28.0 size=     256KiB\n' >&2
echo encoded > "$last"
exit 0
`, callLog)
	stub = filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(stub, []byte(body), 0o755); err != nil {
		t.Fatalf("write encoder stub: %v", err)
	}
	return stub, callLog
}

func writeFailingStub(t *testing.T, dir, message string) string {
	t.Helper()
	body := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "-version" ]; then exit 0; fi
echo %q >&2
exit 1
`, message)
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write failing stub: %v", err)
	}
	return path
}

func writeHangingStub(t *testing.T, dir string) string {
	t.Helper()
	body := `#!/bin/sh
if [ "$1" = "-version" ]; then exit 0; fi
printf 'frame=    1 fps=0.0\r' >&2
exec sleep 30
`
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write hanging stub: %v", err)
	}
	return path
}

func saveFrames(t *testing.T, e *Exporter, count int) {
	t.Helper()
	payloads := make([][]byte, count)
	for i := range payloads {
		payloads[i] = []byte(fmt.Sprintf("frame-%d", i))
	}
	if _, err := e.SaveFrameBatch(context.Background(), payloads); err != nil {
		t.Fatalf("SaveFrameBatch: %v", err)
	}
}

func readCallLog(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read call log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func scratchEntries(t *testing.T, scratchDir string) int {
	t.Helper()
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	return len(entries)
}

func TestFinalizeH264RunsEncodeAndRemux(t *testing.T) {
	stubDir := t.TempDir()
	stub, callLog := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)
	bus := events.New()

	completed := make(chan events.ExportCompleted, 1)
	defer bus.Subscribe(func(e events.ExportCompleted) { completed <- e })()
	progressCh := make(chan any, 64)
	defer events.SubscribeToChannel[events.ExportProgress](bus, progressCh)()

	e := New(cfg, bus, logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 3)

	dest := filepath.Join(t.TempDir(), "movie.mp4")
	result, err := e.Finalize(context.Background(), FormatH264, FixedPath(dest))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.OutputPath != dest || result.Frames != 3 || result.SizeBytes == 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("destination missing: %v", err)
	}

	calls := readCallLog(t, callLog)
	if len(calls) != 2 {
		t.Fatalf("expected encode + remux invocations, got %d: %v", len(calls), calls)
	}
	if !strings.Contains(calls[0], "-c:v libx264") || !strings.Contains(calls[0], "-an") {
		t.Fatalf("unexpected encode invocation %q", calls[0])
	}
	if !strings.Contains(calls[1], "-c copy") || !strings.Contains(calls[1], "-movflags +faststart") {
		t.Fatalf("unexpected remux invocation %q", calls[1])
	}

	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
	if e.State() != StateDone {
		t.Fatalf("unexpected state %s", e.State())
	}

	select {
	case ev := <-completed:
		if ev.OutputPath != dest || ev.SizeBytes == 0 {
			t.Fatalf("unexpected completion event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion event")
	}

	var last int64 = -1
	for len(progressCh) > 0 {
		ev := (<-progressCh).(events.ExportProgress)
		if ev.Frame <= last {
			t.Fatalf("progress not strictly increasing: %d after %d", ev.Frame, last)
		}
		if ev.Frame > ev.Total || ev.Total != 3 {
			t.Fatalf("progress out of range %+v", ev)
		}
		last = ev.Frame
	}
}

func TestFinalizeProResMovesOutputInOnePass(t *testing.T) {
	stubDir := t.TempDir()
	stub, callLog := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 24}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 3)

	dest := filepath.Join(t.TempDir(), "movie.mov")
	result, err := e.Finalize(context.Background(), FormatProRes, FixedPath(dest))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.OutputPath != dest {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("destination missing: %v", err)
	}

	calls := readCallLog(t, callLog)
	if len(calls) != 1 {
		t.Fatalf("expected a single invocation, got %d: %v", len(calls), calls)
	}
	if !strings.Contains(calls[0], "-c:v prores_ks") || !strings.Contains(calls[0], "-pix_fmt yuv422p10le") {
		t.Fatalf("unexpected encode invocation %q", calls[0])
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
}

func TestFinalizeIncludesAudioWhenPresent(t *testing.T) {
	stubDir := t.TempDir()
	stub, callLog := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 2)
	if _, err := e.SaveAudio(context.Background(), []byte("RIFF-ish audio bytes")); err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "movie.mp4")
	if _, err := e.Finalize(context.Background(), FormatH264, FixedPath(dest)); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	calls := readCallLog(t, callLog)
	if !strings.Contains(calls[0], "-c:a aac") || !strings.Contains(calls[0], "-shortest") {
		t.Fatalf("expected audio args in encode invocation %q", calls[0])
	}
}

func TestFinalizeWithoutFramesFails(t *testing.T) {
	stubDir := t.TempDir()
	stub, _ := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)
	bus := events.New()

	failed := make(chan events.ExportFailed, 1)
	defer bus.Subscribe(func(e events.ExportFailed) { failed <- e })()

	e := New(cfg, bus, logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	_, err := e.Finalize(context.Background(), FormatH264, FixedPath(filepath.Join(t.TempDir(), "movie.mp4")))
	if !errors.Is(err, services.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
	if e.State() != StateFailed {
		t.Fatalf("unexpected state %s", e.State())
	}
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure event")
	}
}

func TestFinalizeDeclinedDestinationCancels(t *testing.T) {
	stubDir := t.TempDir()
	stub, callLog := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)
	bus := events.New()

	canceled := make(chan events.ExportCanceled, 1)
	defer bus.Subscribe(func(e events.ExportCanceled) { canceled <- e })()

	e := New(cfg, bus, logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 2)

	declined := func(Format) (string, bool, error) { return "", false, nil }
	_, err := e.Finalize(context.Background(), FormatH264, declined)
	if !services.IsCanceled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, statErr := os.Stat(callLog); statErr == nil {
		t.Fatal("encoder must not run when the destination is declined")
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancel event")
	}
}

func TestFinalizeEncoderFailureSurfacesStderr(t *testing.T) {
	stubDir := t.TempDir()
	stub := writeFailingStub(t, stubDir, "x264 [error]: cannot open output")
	cfg := testConfig(t, stub)

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 2)

	_, err := e.Finalize(context.Background(), FormatH264, FixedPath(filepath.Join(t.TempDir(), "movie.mp4")))
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if !strings.Contains(err.Error(), "cannot open output") {
		t.Fatalf("expected encoder stderr in error, got %v", err)
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
}

func TestFinalizeMissingEncoderReturnsGuidance(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent-ffmpeg"))
	cfg.Encoder.ProbeTimeout = 1

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 1)

	_, err := e.Finalize(context.Background(), FormatH264, FixedPath(filepath.Join(t.TempDir(), "movie.mp4")))
	if err == nil {
		t.Fatal("expected error")
	}
	// On hosts with a system ffmpeg the bare-name fallback may still
	// succeed, so only assert the taxonomy when lookup actually failed.
	if errors.Is(err, services.ErrEncoderNotFound) {
		if !strings.Contains(err.Error(), "FFmpeg not found") {
			t.Fatalf("expected installation guidance, got %v", err)
		}
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
}

func TestFinalizeDeadContextReachesCancelledState(t *testing.T) {
	stubDir := t.TempDir()
	stub, callLog := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)
	bus := events.New()

	canceled := make(chan events.ExportCanceled, 1)
	defer bus.Subscribe(func(e events.ExportCanceled) { canceled <- e })()

	e := New(cfg, bus, logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Finalize(ctx, FormatH264, FixedPath(filepath.Join(t.TempDir(), "movie.mp4")))
	if !services.IsCanceled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if errors.Is(err, services.ErrEncoderNotFound) {
		t.Fatalf("cancellation misclassified as missing encoder: %v", err)
	}
	if e.State() != StateCancelled {
		t.Fatalf("unexpected state %s", e.State())
	}
	if _, statErr := os.Stat(callLog); statErr == nil {
		t.Fatal("encoder must not run under a dead context")
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancel event")
	}
}

// writeRemuxFailingStub succeeds on its first real invocation (the encode,
// creating the temp output) and exits non-zero on the second (the remux).
func writeRemuxFailingStub(t *testing.T, dir string) string {
	t.Helper()
	marker := filepath.Join(dir, "encoded.marker")
	body := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "-version" ]; then exit 0; fi
for a in "$@"; do last="$a"; done
if [ -e %q ]; then
  echo "moov atom not found" >&2
  exit 1
fi
touch %q
echo encoded > "$last"
exit 0
`, marker, marker)
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write remux-failing stub: %v", err)
	}
	return path
}

func TestFinalizeRemuxFailureRemovesTempOutput(t *testing.T) {
	stubDir := t.TempDir()
	stub := writeRemuxFailingStub(t, stubDir)
	cfg := testConfig(t, stub)

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 2)

	dest := filepath.Join(t.TempDir(), "movie.mp4")
	_, err := e.Finalize(context.Background(), FormatH264, FixedPath(dest))
	if !errors.Is(err, services.ErrRemux) {
		t.Fatalf("expected ErrRemux, got %v", err)
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected remux stderr in error, got %v", err)
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		t.Fatal("failed remux must not leave a destination file")
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace (and temp output) not cleaned up, %d entries remain", n)
	}
	if e.State() != StateFailed {
		t.Fatalf("unexpected state %s", e.State())
	}
}

// writeSilentStub exits zero without creating any output file.
func writeSilentStub(t *testing.T, dir string) string {
	t.Helper()
	body := `#!/bin/sh
if [ "$1" = "-version" ]; then exit 0; fi
exit 0
`
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write silent stub: %v", err)
	}
	return path
}

func TestFinalizeEncoderWithoutOutputIsEncodeFailure(t *testing.T) {
	stubDir := t.TempDir()
	stub := writeSilentStub(t, stubDir)
	cfg := testConfig(t, stub)

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 2)

	_, err := e.Finalize(context.Background(), FormatH264, FixedPath(filepath.Join(t.TempDir(), "movie.mp4")))
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if !strings.Contains(err.Error(), "no output file") {
		t.Fatalf("expected missing-output detail, got %v", err)
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
}

func TestFinalizeOversizedStderrLineSurfacesTruncation(t *testing.T) {
	stubDir := t.TempDir()
	body := `#!/bin/sh
if [ "$1" = "-version" ]; then exit 0; fi
head -c 2097152 /dev/zero | tr '\0' 'x' >&2
exit 1
`
	stub := filepath.Join(stubDir, "ffmpeg")
	if err := os.WriteFile(stub, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	cfg := testConfig(t, stub)

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 1)

	_, err := e.Finalize(context.Background(), FormatH264, FixedPath(filepath.Join(t.TempDir(), "movie.mp4")))
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if !strings.Contains(err.Error(), "stderr truncated") {
		t.Fatalf("expected truncation note in error, got %v", err)
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
}

func TestCancelKillsRunningEncoder(t *testing.T) {
	stubDir := t.TempDir()
	stub := writeHangingStub(t, stubDir)
	cfg := testConfig(t, stub)
	bus := events.New()

	canceled := make(chan events.ExportCanceled, 1)
	defer bus.Subscribe(func(e events.ExportCanceled) { canceled <- e })()

	e := New(cfg, bus, logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 2)

	done := make(chan error, 1)
	go func() {
		_, err := e.Finalize(context.Background(), FormatH264, FixedPath(filepath.Join(t.TempDir(), "movie.mp4")))
		done <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for e.State() != StateEncoding {
		if time.Now().After(deadline) {
			t.Fatal("encoder never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := e.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	select {
	case err := <-done:
		if !services.IsCanceled(err) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the encoder")
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
	if e.State() != StateCancelled {
		t.Fatalf("unexpected state %s", e.State())
	}
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancel event")
	}
}

func TestCancelBeforeFinalizeDiscardsWorkspace(t *testing.T) {
	stubDir := t.TempDir()
	stub, _ := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)
	bus := events.New()

	canceled := make(chan events.ExportCanceled, 1)
	defer bus.Subscribe(func(e events.ExportCanceled) { canceled <- e })()

	e := New(cfg, bus, logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saveFrames(t, e, 1)

	if err := e.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 0 {
		t.Fatalf("workspace not cleaned up, %d entries remain", n)
	}
	if err := e.Cancel(); !errors.Is(err, services.ErrNotInitialized) {
		t.Fatalf("second cancel should report no session, got %v", err)
	}
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancel event")
	}
}

func TestOperationsWithoutBeginFail(t *testing.T) {
	cfg := testConfig(t, "ffmpeg")
	e := New(cfg, events.New(), logging.NewNop())

	if _, err := e.SaveFrame(context.Background(), []byte("frame")); !errors.Is(err, services.ErrNotInitialized) {
		t.Fatalf("SaveFrame: expected ErrNotInitialized, got %v", err)
	}
	if _, err := e.SaveAudio(context.Background(), []byte("audio")); !errors.Is(err, services.ErrNotInitialized) {
		t.Fatalf("SaveAudio: expected ErrNotInitialized, got %v", err)
	}
	if _, err := e.Finalize(context.Background(), FormatH264, FixedPath("/tmp/out.mp4")); !errors.Is(err, services.ErrNotInitialized) {
		t.Fatalf("Finalize: expected ErrNotInitialized, got %v", err)
	}
}

func TestBeginReplacesAbandonedSession(t *testing.T) {
	stubDir := t.TempDir()
	stub, _ := writeEncoderStub(t, stubDir)
	cfg := testConfig(t, stub)

	e := New(cfg, events.New(), logging.NewNop())
	if _, err := e.Begin(session.Settings{Width: 64, Height: 64, FPS: 30}); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	saveFrames(t, e, 2)

	if _, err := e.Begin(session.Settings{Width: 32, Height: 32, FPS: 24}); err != nil {
		t.Fatalf("second Begin: %v", err)
	}
	if e.FrameCount() != 0 {
		t.Fatalf("fresh session should start empty, got %d frames", e.FrameCount())
	}
	if n := scratchEntries(t, cfg.Paths.ScratchDir); n != 1 {
		t.Fatalf("expected exactly the fresh workspace, got %d entries", n)
	}
	e.Cancel()
}
