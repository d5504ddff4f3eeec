// Package safefile reads small local files that come from operator input:
// config layers, device inventories and the credential session file.
//
// A read is refused when the path is overlong, when a relative path resolves
// outside the working directory, when the target is not a regular file, or
// when it exceeds the caller's size limit. Errors wrap the underlying
// os error, so fs.ErrNotExist survives for callers that treat a missing file
// as empty.
package safefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxPathLen bounds the length of any path accepted by Read
const MaxPathLen = 4096

// ValidatePath checks path length, containment of relative paths and, when
// extensions are given, the file extension.
func ValidatePath(path string, extensions ...string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if len(path) > MaxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), MaxPathLen)
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("cannot resolve absolute path: %w", err)
		}
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot get working directory: %w", err)
		}
		rel, err := filepath.Rel(cwd, absPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
		}
	}

	if len(extensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range extensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type %q: %s", ext, path)
}

// Read validates path and returns its contents, refusing files larger than
// maxSize bytes.
func Read(path string, maxSize int64, extensions ...string) ([]byte, error) {
	if err := ValidatePath(path, extensions...); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("file too large: %d bytes > %d", info.Size(), maxSize)
	}

	// The file may grow between Stat and read
	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("file too large: more than %d bytes", maxSize)
	}
	return data, nil
}
