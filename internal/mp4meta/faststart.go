// Package mp4meta inspects MP4 container layout. The compatibility export
// mode promises a fast-start file: the moov index atom must precede the mdat
// media payload so playback can begin before the whole file is available.
package mp4meta

import (
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// FastStart reports whether the file at path stores its moov box before its
// mdat box.
func FastStart(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return FastStartReader(f)
}

// FastStartReader applies the same check to an already-open reader.
func FastStartReader(reader io.Reader) (bool, error) {
	parsed, err := mp4.DecodeFile(reader)
	if err != nil {
		return false, fmt.Errorf("decode mp4: %w", err)
	}

	moovIndex, mdatIndex := -1, -1
	for i, box := range parsed.Children {
		switch box.Type() {
		case "moov":
			if moovIndex < 0 {
				moovIndex = i
			}
		case "mdat":
			if mdatIndex < 0 {
				mdatIndex = i
			}
		}
	}
	if moovIndex < 0 {
		return false, fmt.Errorf("no moov box found")
	}
	if mdatIndex < 0 {
		return false, fmt.Errorf("no mdat box found")
	}
	return moovIndex < mdatIndex, nil
}
