package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrFileIO = errors.New("file I/O failure")

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileIO, err)
	}
	return string(data), nil
}

// writeOutput creates path only once there is something to put in it.
func writeOutput(path, content string) error {
	full, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileIO, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileIO, err)
	}
	return nil
}
