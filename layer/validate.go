// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// MaskedFilesError reports upper-directory files that would shadow
// files provided by a lower source.
type MaskedFilesError struct {
	// Paths are absolute paths under the upper directory, sorted.
	Paths []string
}

func (e *MaskedFilesError) Error() string {
	return fmt.Sprintf("%d file(s) in the writable layer mask lower-layer files: %s",
		len(e.Paths), strings.Join(e.Paths, ", "))
}

// Mountable is a layer composition that has been proven safe to mount.
// It is implemented by Validated and by types that embed it.
type Mountable interface {
	// Layers returns the composition to mount.
	Layers() Config

	proven()
}

// Validated is a Config that passed Validate: the upper, work, and
// merged directories exist and no lower-layer file is masked by the
// upper directory outside the allow-list. Only Validate produces a
// usable Validated; the zero value has no lower sources and cannot be
// mounted.
type Validated struct {
	config Config
}

// Layers returns a copy of the validated composition.
func (v Validated) Layers() Config { return v.config.Clone() }

func (Validated) proven() {}

// ValidateOption configures Validate.
type ValidateOption func(*validator)

// WithLogger sets the logger used for validation progress. The default
// is slog.Default().
func WithLogger(logger *slog.Logger) ValidateOption {
	return func(v *validator) { v.logger = logger }
}

type validator struct {
	config Config
	logger *slog.Logger
}

// Validate creates the upper source's directories and checks that no
// lower-layer file is masked by the upper directory. It is safe to call
// repeatedly on the same configuration.
func Validate(config Config, options ...ValidateOption) (Validated, error) {
	v := &validator{config: config.Clone(), logger: slog.Default()}
	for _, option := range options {
		option(v)
	}

	if err := v.createDirectories(); err != nil {
		return Validated{}, fmt.Errorf("creating overlay directories: %w", err)
	}

	masked, err := v.findMaskedFiles()
	if err != nil {
		return Validated{}, fmt.Errorf("scanning for masked files: %w", err)
	}
	if len(masked) > 0 {
		v.logger.Error("writable layer masks lower-layer files", "count", len(masked))
		return Validated{}, &MaskedFilesError{Paths: masked}
	}

	v.logger.Info("layer composition validated",
		"lowers", len(v.config.Lowers),
		"upper", v.config.Upper.UpperPath(),
	)
	return Validated{config: v.config}, nil
}

func (v *validator) createDirectories() error {
	upper := v.config.Upper
	for _, path := range []string{upper.UpperPath(), upper.WorkPath(), upper.MergedPath()} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return &fs.PathError{Op: "mkdir", Path: path, Err: err}
		}
		v.logger.Debug("overlay directory ready", "path", path)
	}
	return nil
}

// findMaskedFiles returns the upper-side paths of every lower-layer file
// that also exists under the upper directory and is not allow-listed.
func (v *validator) findMaskedFiles() ([]string, error) {
	upperPath := v.config.Upper.UpperPath()
	if _, err := os.Stat(upperPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	lowerFiles := make(map[string]struct{})
	for _, lower := range v.config.Lowers {
		root := lower.FullPath()
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			v.logger.Debug("lower source missing, skipping masking scan", "path", root)
			continue
		}
		if err := collectFilePaths(root, lowerFiles); err != nil {
			return nil, err
		}
		v.logger.Debug("scanned lower source", "path", root)
	}

	allowed := v.config.allowSet()
	var masked []string
	for relativePath := range lowerFiles {
		if _, ok := allowed[relativePath]; ok {
			continue
		}
		upperFile := filepath.Join(upperPath, relativePath)
		if _, err := os.Lstat(upperFile); err == nil {
			masked = append(masked, upperFile)
		} else if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return nil, err
		}
	}
	sort.Strings(masked)
	return masked, nil
}

// collectFilePaths adds the path of every non-directory entry under
// root, relative to root, to files. A symlinked root is resolved first;
// symbolic links below it are recorded, not followed.
func collectFilePaths(root string, files map[string]struct{}) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolving lower source %s: %w", root, err)
	}
	root = resolved
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Already an *fs.PathError naming the unreadable entry.
			return err
		}
		if entry.IsDir() || path == root {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[relative] = struct{}{}
		return nil
	})
}
