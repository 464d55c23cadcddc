package export

import (
	"regexp"
	"strconv"
	"strings"
)

// ProgressParser extracts frame counters from encoder stderr lines.
type ProgressParser interface {
	Parse(line string) (frame int64, ok bool)
}

var frameCounterPattern = regexp.MustCompile(`frame=\s*(\d+)`)

// frameParser reads ffmpeg's stats lines ("frame=  120 fps= 30 ...").
type frameParser struct{}

// NewFrameParser returns the parser for ffmpeg's default stats output.
func NewFrameParser() ProgressParser {
	return frameParser{}
}

func (frameParser) Parse(line string) (int64, bool) {
	match := frameCounterPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	frame, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return frame, true
}

// stderrTailLimit bounds how much encoder output is kept for error
// reporting. Progress spam would otherwise dominate the buffer.
const stderrTailLimit = 500

// tailBuffer retains the last stderrTailLimit characters written to it.
type tailBuffer struct {
	data []byte
}

func (b *tailBuffer) WriteLine(line string) {
	if line == "" {
		return
	}
	if len(b.data) > 0 {
		b.data = append(b.data, '\n')
	}
	b.data = append(b.data, line...)
	if overflow := len(b.data) - stderrTailLimit; overflow > 0 {
		b.data = b.data[overflow:]
	}
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.data))
}
