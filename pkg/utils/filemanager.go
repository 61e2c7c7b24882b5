// =============================================================================
// OPEX Variance Pipeline - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the pipeline stages:
//   - Staged writes (all outputs of a stage land together or not at all)
//   - Archival of the previous version of an output before it is replaced
//   - Directory management
//
// STAGING STRATEGY:
//   - Every output is first written to a hidden temporary file next to its
//     destination: .<name>.<uuid>.tmp
//   - Commit renames every temporary into place once all outputs of the
//     stage were written successfully
//   - Discard removes the temporaries; destinations are left untouched
//
// ARCHIVAL STRATEGY:
//   - When ArchiveDir is set, an existing destination is copied there
//     before it is replaced
//   - UseTimestampSubdirs files archives under YYYY/MM/DD
//
// =============================================================================

package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the pipeline stages.
type FileManager struct {
	// ArchiveDir receives the previous version of every replaced output.
	// Empty disables archival.
	ArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2024/01/15/opex_summary.csv
	UseTimestampSubdirs bool

	// now is the clock used for archive paths.
	now func() time.Time
}

// NewFileManager creates a new FileManager.
func NewFileManager(archiveDir string, useTimestampSubdirs bool) *FileManager {
	return &FileManager{
		ArchiveDir:          archiveDir,
		UseTimestampSubdirs: useTimestampSubdirs,
		now:                 time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all given directories if they don't exist.
// Empty entries are skipped.
//
// RETURNS:
//   - An error if any directory cannot be created.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// STAGED OUTPUTS
// =============================================================================

// Staging collects the outputs of one stage until they are committed or
// discarded. A Staging is used by a single goroutine.
type Staging struct {
	fm      *FileManager
	entries []stagedFile
	closed  bool
}

type stagedFile struct {
	tmp string
	dst string
}

// NewStaging starts a new set of staged outputs.
func (fm *FileManager) NewStaging() *Staging {
	return &Staging{fm: fm}
}

// Stage writes one output to a temporary file next to dst. The destination
// directory is created if needed.
//
// PARAMETERS:
//   - dst: Final path of the output.
//   - write: Produces the file content.
//
// RETURNS:
//   - An error if the file cannot be created or write fails. The partial
//     temporary is removed; earlier staged outputs are kept until Commit or
//     Discard.
func (s *Staging) Stage(dst string, write func(w io.Writer) error) error {
	if s.closed {
		return errors.New("staging already committed or discarded")
	}

	dir := filepath.Dir(dst)
	if err := EnsureDirectories(dir); err != nil {
		return err
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(dst), uuid.New().String()))
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", dst, err)
	}

	if err := write(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	s.entries = append(s.entries, stagedFile{tmp: tmp, dst: dst})
	return nil
}

// Commit archives any existing destinations and renames every staged file
// into place.
//
// RETURNS:
//   - The destination paths in staging order.
//   - An error if archival or a rename fails. Archival happens for every
//     output before the first rename, so an archive failure leaves all
//     destinations untouched.
func (s *Staging) Commit() ([]string, error) {
	if s.closed {
		return nil, errors.New("staging already committed or discarded")
	}

	for _, e := range s.entries {
		if _, err := s.fm.ArchiveFile(e.dst); err != nil {
			s.Discard()
			return nil, err
		}
	}

	paths := make([]string, 0, len(s.entries))
	for i, e := range s.entries {
		if err := os.Rename(e.tmp, e.dst); err != nil {
			s.entries = s.entries[i:]
			s.Discard()
			return nil, fmt.Errorf("failed to move output into place %s: %w", e.dst, err)
		}
		paths = append(paths, e.dst)
	}

	s.entries = nil
	s.closed = true
	return paths, nil
}

// Discard removes every staged temporary. It is safe to call more than once
// and after Commit.
func (s *Staging) Discard() {
	for _, e := range s.entries {
		os.Remove(e.tmp)
	}
	s.entries = nil
	s.closed = true
}

// =============================================================================
// ARCHIVAL
// =============================================================================

// ArchiveFile copies filePath into the archive directory.
//
// RETURNS:
//   - The archive path, or "" when archival is disabled or filePath does
//     not exist yet.
//   - An error if the copy fails.
func (fm *FileManager) ArchiveFile(filePath string) (string, error) {
	if fm.ArchiveDir == "" || !FileExists(filePath) {
		return "", nil
	}

	archivePath := fm.getArchivePath(filePath)
	if err := EnsureDirectories(filepath.Dir(archivePath)); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// getArchivePath builds the archive path for a file. The file name carries
// a timestamp so repeated runs on one day do not overwrite each other.
func (fm *FileManager) getArchivePath(filePath string) string {
	now := time.Now()
	if fm.now != nil {
		now = fm.now()
	}

	base := filepath.Base(filePath)
	ext := filepath.Ext(base)
	fileName := fmt.Sprintf("%s_%s%s", base[:len(base)-len(ext)], now.Format("20060102_150405"), ext)

	if fm.UseTimestampSubdirs {
		subDir := filepath.Join(
			fm.ArchiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
		return filepath.Join(subDir, fileName)
	}

	return filepath.Join(fm.ArchiveDir, fileName)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a regular file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
