// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/layermount/layer"
)

// File is the on-disk configuration.
type File struct {
	// LowerDirs are the read-only sources, highest precedence first.
	LowerDirs []LowerDir `yaml:"lower_dirs" json:"lower_dirs"`

	// UpperDir is the writable source and mount point.
	UpperDir UpperDir `yaml:"upper_dir" json:"upper_dir"`

	// AllowedMaskedFiles are paths, relative to a lower source, that
	// may also exist in the upper directory.
	AllowedMaskedFiles []string `yaml:"allowed_masked_files" json:"allowed_masked_files"`

	// Options controls the layermount binary.
	Options Options `yaml:"options" json:"options"`
}

// LowerDir is one lower source.
type LowerDir struct {
	Volume   string   `yaml:"volume" json:"volume"`
	Subdir   string   `yaml:"subdir" json:"subdir"`
	SyncMode SyncMode `yaml:"sync_mode" json:"sync_mode"`
}

// UpperDir is the writable source. The three subdirectories are
// relative to Volume.
type UpperDir struct {
	Volume       string `yaml:"volume" json:"volume"`
	UpperSubdir  string `yaml:"upper_subdir" json:"upper_subdir"`
	WorkSubdir   string `yaml:"work_subdir" json:"work_subdir"`
	MergedSubdir string `yaml:"merged_subdir" json:"merged_subdir"`
}

// Options configures the binary rather than the layer composition.
type Options struct {
	// ShowDmesg logs the kernel log lines attached to a failed mount.
	ShowDmesg bool `yaml:"show_dmesg" json:"show_dmesg"`

	// SyncInterval is how often constant mirrors are refreshed.
	// Default: 30s
	SyncInterval Duration `yaml:"sync_interval" json:"sync_interval"`

	// MaxStaleness is how old a constant mirror may become before a
	// refresh failure is fatal. Default: 5m
	MaxStaleness Duration `yaml:"max_staleness" json:"max_staleness"`

	// MirrorTimeout bounds each rsync run. Zero means no limit.
	MirrorTimeout Duration `yaml:"mirror_timeout" json:"mirror_timeout"`

	// MirrorDigest enables BLAKE3 digests of mirrored trees so refreshes
	// can report whether anything changed.
	MirrorDigest bool `yaml:"mirror_digest" json:"mirror_digest"`

	// RsyncBinary defaults to "rsync" on PATH.
	RsyncBinary string `yaml:"rsync_binary" json:"rsync_binary"`

	// DmesgBinary defaults to "dmesg" on PATH.
	DmesgBinary string `yaml:"dmesg_binary" json:"dmesg_binary"`

	// LogFormat is "text", "json", or empty to choose by terminal.
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// LogFormats lists the accepted values of Options.LogFormat.
var LogFormats = []string{"", "text", "json"}

// Default returns a File with default options and no layers.
func Default() *File {
	return &File{
		Options: Options{
			SyncInterval: Duration(30 * time.Second),
			MaxStaleness: Duration(5 * time.Minute),
		},
	}
}

// Load loads configuration from the file named by LAYERMOUNT_CONFIG.
func Load() (*File, error) {
	path := os.Getenv("LAYERMOUNT_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("LAYERMOUNT_CONFIG environment variable not set; " +
			"set it to the path of your configuration file, or use --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of Default and expands
// variables in every path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	file := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), file)
	default:
		err = yaml.Unmarshal(data, file)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	file.expandVariables()
	return file, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (f *File) expandVariables() {
	for index := range f.LowerDirs {
		lower := &f.LowerDirs[index]
		lower.Volume = expandVars(lower.Volume)
		lower.Subdir = expandVars(lower.Subdir)
		lower.SyncMode.Destination = expandVars(lower.SyncMode.Destination)
	}
	f.UpperDir.Volume = expandVars(f.UpperDir.Volume)
	f.UpperDir.UpperSubdir = expandVars(f.UpperDir.UpperSubdir)
	f.UpperDir.WorkSubdir = expandVars(f.UpperDir.WorkSubdir)
	f.UpperDir.MergedSubdir = expandVars(f.UpperDir.MergedSubdir)
	for index, path := range f.AllowedMaskedFiles {
		f.AllowedMaskedFiles[index] = expandVars(path)
	}
	f.Options.RsyncBinary = expandVars(f.Options.RsyncBinary)
	f.Options.DmesgBinary = expandVars(f.Options.DmesgBinary)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns from the
// environment. An unset or empty variable takes the default.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the options for errors. Path rules are enforced by
// Layers.
func (f *File) Validate() error {
	var errs []error

	if len(f.LowerDirs) == 0 {
		errs = append(errs, errors.New("lower_dirs must list at least one source"))
	}
	for index, lower := range f.LowerDirs {
		if lower.Volume == "" {
			errs = append(errs, fmt.Errorf("lower_dirs[%d].volume is required", index))
		}
	}
	if f.UpperDir.Volume == "" {
		errs = append(errs, errors.New("upper_dir.volume is required"))
	}
	if f.Options.SyncInterval <= 0 {
		errs = append(errs, errors.New("options.sync_interval must be positive"))
	}
	if f.Options.MaxStaleness < 0 {
		errs = append(errs, errors.New("options.max_staleness must not be negative"))
	}
	if f.Options.MirrorTimeout < 0 {
		errs = append(errs, errors.New("options.mirror_timeout must not be negative"))
	}
	if !slices.Contains(LogFormats, f.Options.LogFormat) {
		errs = append(errs, fmt.Errorf("options.log_format must be one of: text, json"))
	}

	return errors.Join(errs...)
}

// Layers converts the file into a layer composition.
func (f *File) Layers() (layer.Config, error) {
	var config layer.Config
	for index, lower := range f.LowerDirs {
		source, err := layer.NewLowerSource(lower.Volume, lower.Subdir, layer.SyncMode(lower.SyncMode))
		if err != nil {
			return layer.Config{}, fmt.Errorf("lower_dirs[%d]: %w", index, err)
		}
		config.Lowers = append(config.Lowers, source)
	}

	upper, err := layer.NewUpperSource(f.UpperDir.Volume, f.UpperDir.UpperSubdir,
		f.UpperDir.WorkSubdir, f.UpperDir.MergedSubdir)
	if err != nil {
		return layer.Config{}, fmt.Errorf("upper_dir: %w", err)
	}
	config.Upper = upper
	config.AllowedMaskedFiles = slices.Clone(f.AllowedMaskedFiles)
	return config, nil
}
