// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/layermount/layer"
)

// Duration is a time.Duration written as a Go duration string ("30s",
// "5m"). A bare integer is taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	parsed, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		var seconds int64
		if json.Unmarshal(data, &seconds) != nil {
			return fmt.Errorf("duration must be a string or integer seconds, got %s", data)
		}
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	parsed, err := parseDuration(text)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(text string) (Duration, error) {
	if seconds, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Duration(time.Duration(seconds) * time.Second), nil
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", text, err)
	}
	return Duration(parsed), nil
}

// SyncMode is layer.SyncMode as written in a configuration file: the
// scalar "none", or a single-key mapping from "once" or "constant" to
// the mirror destination. Omitted means none.
type SyncMode layer.SyncMode

func (m *SyncMode) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return m.setScalar(node.Value)
	case yaml.MappingNode:
		var entries map[string]string
		if err := node.Decode(&entries); err != nil {
			return fmt.Errorf("line %d: sync_mode: %w", node.Line, err)
		}
		return m.setMapping(entries)
	default:
		return fmt.Errorf("line %d: sync_mode must be \"none\" or a mapping", node.Line)
	}
}

func (m *SyncMode) UnmarshalJSON(data []byte) error {
	var scalar string
	if err := json.Unmarshal(data, &scalar); err == nil {
		return m.setScalar(scalar)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("sync_mode must be \"none\" or an object: %w", err)
	}
	return m.setMapping(entries)
}

func (m *SyncMode) setScalar(value string) error {
	if value != "none" && value != "" {
		return fmt.Errorf("sync_mode %q: only \"none\" may be written without a destination", value)
	}
	*m = SyncMode(layer.NoSync())
	return nil
}

func (m *SyncMode) setMapping(entries map[string]string) error {
	if len(entries) != 1 {
		return fmt.Errorf("sync_mode must have exactly one of once or constant, got %d keys", len(entries))
	}
	for kind, destination := range entries {
		switch kind {
		case "once":
			*m = SyncMode(layer.Once(destination))
		case "constant":
			*m = SyncMode(layer.Constant(destination))
		default:
			return fmt.Errorf("unknown sync_mode %q (want once or constant)", kind)
		}
	}
	return nil
}
