package output

import (
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
)

// Deliver writes a rendered report to path, or to stdout when path is empty.
func Deliver(path string, data []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	return WriteFile(path, data)
}

// WriteFile replaces the contents of path with data while holding an
// advisory lock on path+".lock", so concurrent runs never interleave.
func WriteFile(path string, data []byte) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
