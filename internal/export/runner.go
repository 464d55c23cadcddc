package export

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"

	"framecast/internal/logging"
	"framecast/internal/services"
)

// runResult describes a finished encoder invocation.
type runResult struct {
	lastFrame int64
	tail      string
}

// runEncoder launches the encoder binary and streams its stderr through the
// progress parser until the process exits. Both pipes are drained
// continuously so a chatty encoder can never block on a full pipe. When ctx
// is cancelled the process is killed and ErrCanceled is returned.
func runEncoder(ctx context.Context, binary string, args []string, parser ProgressParser, onFrame func(int64), logger *slog.Logger) (runResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return runResult{}, services.Wrap(services.ErrSpawn, "encode", "stderr-pipe", "opening encoder stderr", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return runResult{}, services.Wrap(services.ErrSpawn, "encode", "stdout-pipe", "opening encoder stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return runResult{}, services.Wrap(services.ErrSpawn, "encode", "start", "launching encoder", err)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		io.Copy(io.Discard, stdout)
	}()

	var tail tailBuffer
	var lastFrame int64
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		line := scanner.Text()
		if frame, ok := parser.Parse(line); ok {
			lastFrame = frame
			if onFrame != nil {
				onFrame(frame)
			}
			continue
		}
		tail.WriteLine(line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		// An oversized line aborts the scan; the pipe must still be
		// drained or the process blocks on a full buffer.
		io.Copy(io.Discard, stderr)
		tail.WriteLine("stderr truncated: " + scanErr.Error())
	}

	<-drained
	waitErr := cmd.Wait()
	result := runResult{lastFrame: lastFrame, tail: tail.String()}

	if ctx.Err() != nil {
		return result, services.Wrap(services.ErrCanceled, "encode", "wait", "encode interrupted", ctx.Err())
	}
	if waitErr != nil {
		logger.Warn("encoder exited with error", logging.Error(waitErr), logging.String("stderr_tail", result.tail))
		return result, services.Wrap(services.ErrEncode, "encode", "wait", encodeFailureDetail(result.tail), waitErr)
	}
	return result, nil
}

func encodeFailureDetail(tail string) string {
	if tail == "" {
		return "encoder exited with an error"
	}
	return "encoder exited with an error: " + tail
}

// scanStatusLines splits on both newlines and carriage returns. Encoder
// stats lines are terminated with a bare CR to redraw in place, so a plain
// line scanner would only surface them when the process exits.
func scanStatusLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' && advance < len(data) && data[advance] == '\n' {
			advance++
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
