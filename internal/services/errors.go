package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized marks operations attempted with no active session.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrNoFrames marks a finalize attempt against a session with zero
	// persisted frames.
	ErrNoFrames = errors.New("no frames rendered")
	// ErrEncoderNotFound marks an exhausted encoder candidate list.
	ErrEncoderNotFound = errors.New("encoder not found")
	// ErrSpawn marks a subprocess that could not be started.
	ErrSpawn = errors.New("subprocess spawn failure")
	// ErrEncode marks a primary encode that exited non-zero or produced no
	// output file.
	ErrEncode = errors.New("encode failure")
	// ErrRemux marks a faststart remux that exited non-zero or produced no
	// destination file.
	ErrRemux = errors.New("remux failure")
	// ErrCanceled marks a declined destination chooser or an explicit cancel.
	ErrCanceled = errors.New("export canceled")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEncode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCanceled reports whether the error represents a user cancellation rather
// than a failure. Both end the session, but callers surface them differently.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "export failure"
	}
	return strings.Join(parts, ": ")
}
