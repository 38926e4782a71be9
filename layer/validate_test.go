// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bureau-foundation/layermount/lib/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConfig builds a composition with one unsynchronized lower per
// lower root and an upper source rooted at upperVolume using the
// conventional upper/work/merged subdirectories.
func newTestConfig(t *testing.T, upperVolume string, lowerRoots ...string) Config {
	t.Helper()
	var lowers []LowerSource
	for _, root := range lowerRoots {
		lower, err := NewLowerSource(root, "", NoSync())
		if err != nil {
			t.Fatalf("NewLowerSource(%q): %v", root, err)
		}
		lowers = append(lowers, lower)
	}
	upper, err := NewUpperSource(upperVolume, "upper", "work", "merged")
	if err != nil {
		t.Fatalf("NewUpperSource(%q): %v", upperVolume, err)
	}
	return Config{Lowers: lowers, Upper: upper}
}

func requireMasked(t *testing.T, err error) *MaskedFilesError {
	t.Helper()
	var masked *MaskedFilesError
	if !errors.As(err, &masked) {
		t.Fatalf("Validate() error = %v, want *MaskedFilesError", err)
	}
	return masked
}

func TestValidateCreatesDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	config := newTestConfig(t, filepath.Join(root, "rw"), filepath.Join(root, "lower"))

	validated, err := Validate(config, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	for _, path := range []string{
		config.Upper.UpperPath(),
		config.Upper.WorkPath(),
		config.Upper.MergedPath(),
	} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", path)
		}
	}

	if got := validated.Layers(); !reflect.DeepEqual(got, config) {
		t.Errorf("Layers() = %+v, want %+v", got, config)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lowerRoot := filepath.Join(root, "lower")
	testutil.WriteFile(t, lowerRoot, "lib/data.txt", "static")
	config := newTestConfig(t, filepath.Join(root, "rw"), lowerRoot)

	for attempt := range 3 {
		if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
			t.Fatalf("Validate() attempt %d error: %v", attempt, err)
		}
	}
}

func TestValidateSingleMaskedFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lowerRoot := filepath.Join(root, "lower")
	testutil.WriteFile(t, lowerRoot, "test.txt", "lower")
	config := newTestConfig(t, filepath.Join(root, "rw"), lowerRoot)
	upperFile := testutil.WriteFile(t, config.Upper.UpperPath(), "test.txt", "upper")

	_, err := Validate(config, WithLogger(quietLogger()))
	masked := requireMasked(t, err)
	if want := []string{upperFile}; !reflect.DeepEqual(masked.Paths, want) {
		t.Errorf("masked paths = %v, want %v", masked.Paths, want)
	}

	config.AllowedMaskedFiles = []string{"test.txt"}
	if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
		t.Fatalf("Validate() with allow-list error: %v", err)
	}
}

func TestValidateDuplicateAcrossLowersReportedOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := filepath.Join(root, "first")
	second := filepath.Join(root, "second")
	testutil.WriteFile(t, first, "shared.conf", "one")
	testutil.WriteFile(t, second, "shared.conf", "two")
	config := newTestConfig(t, filepath.Join(root, "rw"), first, second)
	upperFile := testutil.WriteFile(t, config.Upper.UpperPath(), "shared.conf", "upper")

	_, err := Validate(config, WithLogger(quietLogger()))
	masked := requireMasked(t, err)
	if want := []string{upperFile}; !reflect.DeepEqual(masked.Paths, want) {
		t.Errorf("masked paths = %v, want %v", masked.Paths, want)
	}
}

func TestValidateReportsSortedNestedPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lowerRoot := filepath.Join(root, "lower")
	testutil.WriteTree(t, lowerRoot, map[string]string{
		"zeta.txt":          "z",
		"alpha/beta.txt":    "b",
		"alpha/deep/x.bin":  "x",
		"only-in-lower.txt": "l",
	})
	config := newTestConfig(t, filepath.Join(root, "rw"), lowerRoot)
	upperPath := config.Upper.UpperPath()
	testutil.WriteTree(t, upperPath, map[string]string{
		"zeta.txt":         "z",
		"alpha/beta.txt":   "b",
		"alpha/deep/x.bin": "x",
		"only-in-upper":    "u",
	})

	_, err := Validate(config, WithLogger(quietLogger()))
	masked := requireMasked(t, err)
	want := []string{
		filepath.Join(upperPath, "alpha/beta.txt"),
		filepath.Join(upperPath, "alpha/deep/x.bin"),
		filepath.Join(upperPath, "zeta.txt"),
	}
	if !reflect.DeepEqual(masked.Paths, want) {
		t.Errorf("masked paths = %v, want %v", masked.Paths, want)
	}
}

func TestValidateWithSubdirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lowerVolume := filepath.Join(root, "volume")
	testutil.WriteFile(t, lowerVolume, "subdir/test.txt", "lower")
	testutil.WriteFile(t, lowerVolume, "outside.txt", "not part of the source")

	lower, err := NewLowerSource(lowerVolume, "subdir", NoSync())
	if err != nil {
		t.Fatal(err)
	}
	upper, err := NewUpperSource(filepath.Join(root, "rw"), "data/upper", "data/work", "data/merged")
	if err != nil {
		t.Fatal(err)
	}
	config := Config{Lowers: []LowerSource{lower}, Upper: upper}

	// A file outside the lower subdir does not count.
	testutil.WriteFile(t, upper.UpperPath(), "outside.txt", "upper")
	if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	upperFile := testutil.WriteFile(t, upper.UpperPath(), "test.txt", "upper")
	_, err = Validate(config, WithLogger(quietLogger()))
	masked := requireMasked(t, err)
	if want := []string{upperFile}; !reflect.DeepEqual(masked.Paths, want) {
		t.Errorf("masked paths = %v, want %v", masked.Paths, want)
	}
}

func TestValidateMissingDirectories(t *testing.T) {
	t.Parallel()

	t.Run("missing lower root", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		config := newTestConfig(t, filepath.Join(root, "rw"), filepath.Join(root, "does-not-exist"))
		if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
	})

	t.Run("lower root is a file", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		lowerFile := testutil.WriteFile(t, root, "lower-file", "content")
		config := newTestConfig(t, filepath.Join(root, "rw"), lowerFile)
		if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
	})
}

func TestValidateUpperFileShadowingLowerDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lowerRoot := filepath.Join(root, "lower")
	testutil.WriteFile(t, lowerRoot, "etc/app.conf", "lower")
	config := newTestConfig(t, filepath.Join(root, "rw"), lowerRoot)
	// "etc" is a regular file in upper, so upper/etc/app.conf cannot exist.
	testutil.WriteFile(t, config.Upper.UpperPath(), "etc", "not a directory")

	if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestValidateSymlinks(t *testing.T) {
	t.Parallel()

	t.Run("dangling symlink in upper masks", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		lowerRoot := filepath.Join(root, "lower")
		testutil.WriteFile(t, lowerRoot, "link-target", "lower")
		config := newTestConfig(t, filepath.Join(root, "rw"), lowerRoot)
		if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
			t.Fatal(err)
		}

		link := filepath.Join(config.Upper.UpperPath(), "link-target")
		if err := os.Symlink(filepath.Join(root, "nowhere"), link); err != nil {
			t.Fatal(err)
		}
		_, err := Validate(config, WithLogger(quietLogger()))
		masked := requireMasked(t, err)
		if want := []string{link}; !reflect.DeepEqual(masked.Paths, want) {
			t.Errorf("masked paths = %v, want %v", masked.Paths, want)
		}
	})

	t.Run("symlinked directory in lower is not followed", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		lowerRoot := filepath.Join(root, "lower")
		elsewhere := filepath.Join(root, "elsewhere")
		testutil.WriteFile(t, elsewhere, "inner.txt", "x")
		if err := os.MkdirAll(lowerRoot, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(elsewhere, filepath.Join(lowerRoot, "linked")); err != nil {
			t.Fatal(err)
		}
		config := newTestConfig(t, filepath.Join(root, "rw"), lowerRoot)
		testutil.WriteFile(t, config.Upper.UpperPath(), "linked/inner.txt", "upper")

		// Only "linked" itself is a lower entry; upper/linked is a
		// directory, which still counts as present.
		_, err := Validate(config, WithLogger(quietLogger()))
		masked := requireMasked(t, err)
		want := []string{filepath.Join(config.Upper.UpperPath(), "linked")}
		if !reflect.DeepEqual(masked.Paths, want) {
			t.Errorf("masked paths = %v, want %v", masked.Paths, want)
		}
	})
}

func TestValidateSymlinkedLowerRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	realLower := filepath.Join(root, "real-lower")
	testutil.WriteFile(t, realLower, "app.conf", "lower")
	testutil.WriteFile(t, realLower, "nested/deep.conf", "lower")
	lowerLink := filepath.Join(root, "lower-link")
	if err := os.Symlink(realLower, lowerLink); err != nil {
		t.Fatal(err)
	}
	config := newTestConfig(t, filepath.Join(root, "rw"), lowerLink)
	testutil.WriteFile(t, config.Upper.UpperPath(), "app.conf", "upper")
	testutil.WriteFile(t, config.Upper.UpperPath(), "nested/deep.conf", "upper")

	_, err := Validate(config, WithLogger(quietLogger()))
	masked := requireMasked(t, err)
	want := []string{
		filepath.Join(config.Upper.UpperPath(), "app.conf"),
		filepath.Join(config.Upper.UpperPath(), "nested", "deep.conf"),
	}
	if !reflect.DeepEqual(masked.Paths, want) {
		t.Errorf("masked paths = %v, want %v", masked.Paths, want)
	}
}

func TestValidateAllowListIsCleaned(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lowerRoot := filepath.Join(root, "lower")
	testutil.WriteFile(t, lowerRoot, "conf/settings.yaml", "lower")
	config := newTestConfig(t, filepath.Join(root, "rw"), lowerRoot)
	testutil.WriteFile(t, config.Upper.UpperPath(), "conf/settings.yaml", "upper")
	config.AllowedMaskedFiles = []string{"./conf//settings.yaml"}

	if _, err := Validate(config, WithLogger(quietLogger())); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestValidateDirectoryCreationFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blocker := testutil.WriteFile(t, root, "blocker", "a file where a directory is needed")
	config := newTestConfig(t, blocker)

	_, err := Validate(config, WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("Validate() succeeded with a file as the upper volume")
	}
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("error = %v, want a *os.PathError", err)
	}
	if pathErr.Path != config.Upper.UpperPath() {
		t.Errorf("error names %q, want %q", pathErr.Path, config.Upper.UpperPath())
	}
}

func TestMaskedFilesErrorMessage(t *testing.T) {
	t.Parallel()

	err := &MaskedFilesError{Paths: []string{"/u/a", "/u/b"}}
	if got, want := err.Error(), "2 file(s) in the writable layer mask lower-layer files: /u/a, /u/b"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidatedSatisfiesMountable(t *testing.T) {
	var _ Mountable = Validated{}
}
