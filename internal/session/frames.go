package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"framecast/internal/logging"
)

// SaveFrameBatch assigns each payload the next sequential index and writes
// all of them concurrently. Either every write completes before the call
// returns, or the first write failure is surfaced; frames already written
// stay on disk. The cumulative frame count advances only when the whole
// batch succeeds, so the next batch reuses the indices of a failed one.
func (s *Session) SaveFrameBatch(ctx context.Context, payloads [][]byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureActive(); err != nil {
		return 0, err
	}
	if len(payloads) == 0 {
		return s.frameCount, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	base := s.frameCount
	errs := make([]error, len(payloads))
	var wg sync.WaitGroup
	for i, payload := range payloads {
		wg.Add(1)
		go func(index int, data []byte) {
			defer wg.Done()
			errs[index] = s.writeFrame(base+index, data)
		}(i, payload)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}

	s.frameCount = base + len(payloads)
	s.logger.Debug("frame batch saved",
		logging.Int("batch_size", len(payloads)),
		logging.Int("frame_count", s.frameCount),
	)
	return s.frameCount, nil
}

// SaveFrame persists a single payload sequentially. Legacy form of
// SaveFrameBatch with a batch of one.
func (s *Session) SaveFrame(ctx context.Context, payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureActive(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.writeFrame(s.frameCount, payload); err != nil {
		return 0, err
	}
	s.frameCount++
	return s.frameCount, nil
}

// SaveAudio writes the session's single audio blob, overwriting any prior
// one.
func (s *Session) SaveAudio(ctx context.Context, blob []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureActive(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, AudioFileName)
	decoded, err := decodePayload(blob)
	if err != nil {
		return "", fmt.Errorf("session: decode audio payload: %w", err)
	}
	if err := os.WriteFile(path, decoded, 0o644); err != nil {
		return "", fmt.Errorf("session: write audio: %w", err)
	}
	s.logger.Debug("audio saved", logging.String("path", path), logging.Int("bytes", len(decoded)))
	return path, nil
}

func (s *Session) writeFrame(index int, payload []byte) error {
	decoded, err := decodePayload(payload)
	if err != nil {
		return fmt.Errorf("session: decode frame %d: %w", index, err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf(FramePattern, index))
	if err := os.WriteFile(path, decoded, 0o644); err != nil {
		return fmt.Errorf("session: write frame %d: %w", index, err)
	}
	return nil
}

var dataURLPrefix = []byte("data:")

// decodePayload strips an embedded data-URL encoding marker when present.
// Host applications hand frames over either as raw image bytes or as
// `data:image/png;base64,....` strings captured from a canvas.
func decodePayload(payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, dataURLPrefix) {
		return payload, nil
	}
	comma := bytes.IndexByte(payload, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URL payload")
	}
	header := payload[:comma]
	body := payload[comma+1:]
	if !bytes.HasSuffix(header, []byte(";base64")) {
		return body, nil
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(decoded, body)
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return decoded[:n], nil
}
