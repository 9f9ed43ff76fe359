package handler

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for object keys that cannot be mapped into the temp directory
var ErrInvalidKey = errors.New("invalid object key")

// PathSet holds the object keys and local temp files for one event
type PathSet struct {
	SourceKey    string
	ResizedKey   string
	LocalSource  string
	LocalResized string
}

// ResizedKey inserts prefix before the file name of key, keeping its directory
func ResizedKey(key, prefix string) string {
	return path.Join(path.Dir(key), prefix+path.Base(key))
}

// HasPrefix reports whether the file name of key already carries prefix
func HasPrefix(key, prefix string) bool {
	return strings.HasPrefix(path.Base(key), prefix)
}

// DerivePaths computes the PathSet for key below tempRoot
func DerivePaths(key, prefix, tempRoot string) (PathSet, error) {
	resizedKey := ResizedKey(key, prefix)

	localSource, err := localPath(tempRoot, key)
	if err != nil {
		return PathSet{}, err
	}
	localResized, err := localPath(tempRoot, resizedKey)
	if err != nil {
		return PathSet{}, err
	}

	return PathSet{
		SourceKey:    key,
		ResizedKey:   resizedKey,
		LocalSource:  localSource,
		LocalResized: localResized,
	}, nil
}

func localPath(root, key string) (string, error) {
	p := filepath.Join(root, filepath.FromSlash(key))

	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidKey, key, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w %q: escapes temp directory", ErrInvalidKey, key)
	}

	return p, nil
}
