// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the layermount configuration file.
//
// Configuration is loaded from a single file specified by either the
// LAYERMOUNT_CONFIG environment variable (via [Load]) or the --config
// flag (via [LoadFile]). There is no automatic discovery.
//
// Files ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas; everything else is parsed as YAML. Both formats use
// the same keys:
//
//	lower_dirs:
//	  - volume: /srv/base
//	  - volume: nfs.example:/exports/tools
//	    subdir: bin
//	    sync_mode:
//	      constant: /var/lib/layermount/mirror/tools
//	upper_dir:
//	  volume: ${STATE_DIR:-/var/lib/layermount}
//	  upper_subdir: upper
//	  work_subdir: work
//	  merged_subdir: merged
//	allowed_masked_files:
//	  - etc/hostname
//	options:
//	  show_dmesg: true
//	  sync_interval: 30s
//	  max_staleness: 5m
//
// ${VAR} and ${VAR:-default} are expanded in every path after loading.
// [File.Layers] converts the file into a layer.Config through the
// layer constructors, so an absolute subdirectory fails at load time.
package config
