// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"fmt"
	"path/filepath"
)

// SyncKind selects whether and how a lower source is mirrored before it
// is mounted.
type SyncKind int

const (
	// SyncNone mounts the source from its own location.
	SyncNone SyncKind = iota
	// SyncOnce mirrors the source once at setup and mounts the mirror.
	SyncOnce
	// SyncConstant mirrors at setup and again on every refresh.
	SyncConstant
)

func (k SyncKind) String() string {
	switch k {
	case SyncNone:
		return "none"
	case SyncOnce:
		return "once"
	case SyncConstant:
		return "constant"
	default:
		return fmt.Sprintf("SyncKind(%d)", int(k))
	}
}

// SyncMode is the mirroring policy of a lower source. Destination is
// meaningful only when Kind is SyncOnce or SyncConstant. The zero value
// is SyncNone.
type SyncMode struct {
	Kind        SyncKind
	Destination string
}

// NoSync returns the SyncNone mode.
func NoSync() SyncMode { return SyncMode{} }

// Once returns a SyncOnce mode mirroring into destination.
func Once(destination string) SyncMode {
	return SyncMode{Kind: SyncOnce, Destination: destination}
}

// Constant returns a SyncConstant mode mirroring into destination.
func Constant(destination string) SyncMode {
	return SyncMode{Kind: SyncConstant, Destination: destination}
}

// Mirrored reports whether the mode requires a mirror.
func (m SyncMode) Mirrored() bool {
	return m.Kind != SyncNone
}

func (m SyncMode) String() string {
	if !m.Mirrored() {
		return m.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", m.Kind, m.Destination)
}

// LowerSource is a read-only contribution to the union. Construct it
// with NewLowerSource; the zero value is not a valid source.
type LowerSource struct {
	volume string
	subdir string
	mode   SyncMode
}

// NewLowerSource returns a lower source rooted at volume, optionally
// narrowed to subdir (empty for none). subdir must be relative.
func NewLowerSource(volume, subdir string, mode SyncMode) (LowerSource, error) {
	if subdir != "" {
		if err := EnforceRelative(volume, subdir); err != nil {
			return LowerSource{}, err
		}
	}
	if mode.Mirrored() && mode.Destination == "" {
		return LowerSource{}, fmt.Errorf("lower source %q: %s sync mode requires a destination", volume, mode.Kind)
	}
	return LowerSource{volume: volume, subdir: subdir, mode: mode}, nil
}

// Volume returns the base path of the source.
func (l LowerSource) Volume() string { return l.volume }

// Subdir returns the subpath within the volume, or "" if none.
func (l LowerSource) Subdir() string { return l.subdir }

// Mode returns the source's mirroring policy.
func (l LowerSource) Mode() SyncMode { return l.mode }

// FullPath is the source's own directory: the volume joined with the
// subdir when one is set.
func (l LowerSource) FullPath() string {
	if l.subdir == "" {
		return l.volume
	}
	return filepath.Join(l.volume, l.subdir)
}

// MountPath is the directory handed to the union mount: FullPath for
// SyncNone, otherwise the mirror destination.
func (l LowerSource) MountPath() string {
	if l.mode.Mirrored() {
		return l.mode.Destination
	}
	return l.FullPath()
}

// Resolved returns a SyncNone source whose FullPath is l's MountPath.
// The mirror manager uses it to pin mirrored sources to their
// destination once the mirror exists.
func (l LowerSource) Resolved() LowerSource {
	return LowerSource{volume: l.MountPath()}
}

func (l LowerSource) String() string {
	return fmt.Sprintf("%s [sync=%s]", l.FullPath(), l.mode)
}

// UpperSource is the single writable contribution. Its three subpaths
// are relative to volume: upper holds writable content, work is the
// overlay scratch directory (same filesystem as upper), and merged is
// the mount point exposing the composed view.
type UpperSource struct {
	volume       string
	upperSubdir  string
	workSubdir   string
	mergedSubdir string
}

// NewUpperSource returns an upper source. All three subpaths must be
// relative to volume.
func NewUpperSource(volume, upperSubdir, workSubdir, mergedSubdir string) (UpperSource, error) {
	for _, subdir := range []string{upperSubdir, workSubdir, mergedSubdir} {
		if err := EnforceRelative(volume, subdir); err != nil {
			return UpperSource{}, err
		}
	}
	return UpperSource{
		volume:       volume,
		upperSubdir:  upperSubdir,
		workSubdir:   workSubdir,
		mergedSubdir: mergedSubdir,
	}, nil
}

// Volume returns the base path of the upper source.
func (u UpperSource) Volume() string { return u.volume }

// UpperPath is the writable directory.
func (u UpperSource) UpperPath() string { return filepath.Join(u.volume, u.upperSubdir) }

// WorkPath is the overlay work directory.
func (u UpperSource) WorkPath() string { return filepath.Join(u.volume, u.workSubdir) }

// MergedPath is the mount point.
func (u UpperSource) MergedPath() string { return filepath.Join(u.volume, u.mergedSubdir) }

// Config is a complete layer composition. Lowers are in precedence
// order: earlier entries shadow later ones.
type Config struct {
	Lowers []LowerSource
	Upper  UpperSource

	// AllowedMaskedFiles lists paths, relative to a lower source root,
	// that may exist in both a lower source and the upper directory.
	AllowedMaskedFiles []string
}

// Clone returns a copy of c that shares no slices with it.
func (c Config) Clone() Config {
	clone := Config{Upper: c.Upper}
	if c.Lowers != nil {
		clone.Lowers = make([]LowerSource, len(c.Lowers))
		copy(clone.Lowers, c.Lowers)
	}
	if c.AllowedMaskedFiles != nil {
		clone.AllowedMaskedFiles = make([]string, len(c.AllowedMaskedFiles))
		copy(clone.AllowedMaskedFiles, c.AllowedMaskedFiles)
	}
	return clone
}

// allowSet returns the allow-list as a set of cleaned relative paths.
func (c Config) allowSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.AllowedMaskedFiles))
	for _, path := range c.AllowedMaskedFiles {
		set[filepath.Clean(path)] = struct{}{}
	}
	return set
}
