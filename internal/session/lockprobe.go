package session

import "github.com/gofrs/flock"

// lockProbe reports whether another process currently holds the workspace
// lock. Acquiring and immediately releasing is the portable way flock exposes
// this.
func lockProbe(path string) (held bool, err error) {
	probe := flock.New(path)
	locked, err := probe.TryLock()
	if err != nil {
		return false, err
	}
	if !locked {
		return true, nil
	}
	_ = probe.Unlock()
	return false, nil
}
