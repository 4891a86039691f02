// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultArtifactsDir is where the build phase writes its artifact set,
// relative to the project root.
const DefaultArtifactsDir = ".graphbus"

// GetDataDir returns the GraphBus data directory, which holds graphbus.yaml.
//
// Priority:
// 1. GRAPHBUS_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.graphbus (default)
//
// The returned path is always absolute. Tilde (~) in GRAPHBUS_DATA_DIR is expanded to the user's home directory.
// Relative paths in GRAPHBUS_DATA_DIR are converted to absolute paths.
//
// This function is called during bootstrap (before the config file is loaded) to locate the config file itself.
//
// Examples:
//
//	GRAPHBUS_DATA_DIR=/custom/graphbus   -> /custom/graphbus
//	GRAPHBUS_DATA_DIR=~/gb               -> /home/user/gb
//	GRAPHBUS_DATA_DIR=relative/path      -> /current/dir/relative/path
//	GRAPHBUS_DATA_DIR not set            -> /home/user/.graphbus
//
// Note: This function reads directly from os.Getenv(), not from viper, to avoid
// circular dependency during config initialization.
func GetDataDir() string {
	if dataDir := os.Getenv("GRAPHBUS_DATA_DIR"); dataDir != "" {
		return ExpandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return DefaultArtifactsDir
	}
	return filepath.Join(homeDir, ".graphbus")
}

// GetSubDir returns a subdirectory within the data directory.
// Example: GetSubDir("logs") returns ~/.graphbus/logs
func GetSubDir(subdir string) string {
	return filepath.Join(GetDataDir(), subdir)
}

// ResolveArtifactsDir returns the absolute artifact directory for dir.
// An empty dir means DefaultArtifactsDir under the working directory.
func ResolveArtifactsDir(dir string) string {
	if dir == "" {
		dir = DefaultArtifactsDir
	}
	return ExpandPath(dir)
}

// ExpandPath expands ~ and resolves to absolute path
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
