// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the ffs-server.
//
// Configuration is loaded from a single YAML file passed explicitly
// via --config (or the FFS_CONFIG environment variable). There are no
// fallbacks or automatic discovery; command-line flags override file
// values. This keeps configuration deterministic and auditable — the
// section a client maps is exactly the one the flags and file say.
//
// The only expansion performed is ${VAR} and ${VAR:-default} in path
// fields, for portability across home directories.
package config
