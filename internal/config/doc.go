// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and manages lumina configuration.
//
// Configuration is TOML, read from ~/.lumina/config.toml, with built-in
// defaults and environment variable overrides. A file watcher can reload
// the global configuration while the app runs, so pointing at a
// different backend does not require a restart.
//
// Precedence, lowest to highest:
//   - built-in defaults
//   - ~/.lumina/config.toml
//   - LUMINA_* environment variables
//
// # Key Types
//
//   - Config: the full configuration tree
//   - Watcher: reloads the global config when the file changes
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	config.SetGlobal(cfg)
package config
