// Package status provides run status tracking and persistence for discovery runs.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// StatusFileName is the name of the status file inside the cache directory
	StatusFileName = ".font-sources-status.json"
)

// StatusPersistence defines the interface for run status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the run status to persistent storage
	SaveStatus(ctx context.Context, status *RunStatus) error

	// LoadStatus loads the run status from persistent storage.
	// Returns an empty RunStatus if the file doesn't exist (first run)
	LoadStatus(ctx context.Context) (*RunStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence
// basePath is the cache directory the status file is stored in
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// SaveStatus saves the run status to a JSON file
func (f *fileStatusPersistence) SaveStatus(_ context.Context, status *RunStatus) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	filePath := filepath.Join(f.basePath, StatusFileName)

	// Marshal status to JSON with pretty printing for readability
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// LoadStatus loads the run status from the JSON file.
// Returns an empty RunStatus if the file doesn't exist
func (f *fileStatusPersistence) LoadStatus(_ context.Context) (*RunStatus, error) {
	filePath := filepath.Join(f.basePath, StatusFileName)

	// #nosec G304 -- filePath is the fixed status file name inside the configured cache dir
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist - this is OK for first run
			return &RunStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data: %w", err)
	}

	return &status, nil
}
