package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingName is returned for documents without a name field
	ErrMissingName = errors.New("prompt name is required")
	// ErrUnsupportedExtension is returned for files that are not JSON or YAML
	ErrUnsupportedExtension = errors.New("unsupported prompt file extension")
)

// LoaderFunc loads every definition found under a root directory
type LoaderFunc func(rootDir string) ([]*Definition, error)

// IsPromptFile reports whether the file name has a prompt document extension
func IsPromptFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ParseDefinition decodes a prompt document. The decoder is selected by the
// file extension.
func ParseDefinition(filename string, data []byte) (*Definition, error) {
	var doc document

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, filename)
	}

	if strings.TrimSpace(doc.Name) == "" {
		return nil, ErrMissingName
	}

	return doc.toDefinition(filename), nil
}

// LoadFile reads and parses a single prompt file
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseDefinition(path, data)
}

// LoadAll walks rootDir and returns every valid definition found. Invalid
// files and unreadable subdirectories are logged and skipped. WalkDir visits
// entries in lexical order, so the result order is deterministic.
func LoadAll(rootDir string) ([]*Definition, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to access prompts directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts path is not a directory: %s", rootDir)
	}

	slog.Debug("Loading prompts", "root", rootDir)

	var definitions []*Definition

	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootDir {
				return err
			}
			slog.Error("Error walking prompts directory", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil // continue walking
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() || !IsPromptFile(d.Name()) {
			return nil
		}

		def, err := LoadFile(path)
		if err != nil {
			slog.Warn("Skipping invalid prompt file", "file", path, "error", err)
			return nil
		}

		definitions = append(definitions, def)
		slog.Debug("Loaded prompt", "name", def.Name, "file", path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk prompts directory: %w", err)
	}

	slog.Info("Finished loading prompts", "root", rootDir, "count", len(definitions))
	return definitions, nil
}
