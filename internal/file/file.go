package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "getting user home dir")
	}
	return filepath.Join(home, path[2:]), nil
}

// CreateDirectoryIfNotExist creates a directory and its parents if needed.
func CreateDirectoryIfNotExist(directory string) error {
	info, err := os.Stat(directory)
	if err == nil {
		if !info.IsDir() {
			return errors.Errorf("%s exists but is not a directory", directory)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrap(err, "stating directory")
	}
	if err := os.MkdirAll(directory, 0755); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	return nil
}
