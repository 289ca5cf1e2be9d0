// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads telespool configuration.
//
// Configuration comes from a single file named by the TELESPOOL_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no discovery and no fallback search. Files
// ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is YAML.
//
// The file may carry development, staging, and production sections
// that override base values when [Config].Environment matches.
// ${HOME} and ${VAR:-default} patterns are expanded in path fields
// after loading. No other environment variables override config
// values.
//
// Durations are strings in time.ParseDuration syntax. [Config.Validate]
// parses them; the typed accessors assume a validated Config.
package config
