package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack is an overlay file under <config_dir>/packs. Enabled packs add
// protected paths and tool kinds on top of the main config file.
type Pack struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Version        string            `yaml:"version"`
	Author         string            `yaml:"author"`
	ProtectedPaths []string          `yaml:"protected_paths"`
	Tools          map[string]string `yaml:"tools"`
}

// PackInfo is a summary of a pack for listing.
type PackInfo struct {
	Name        string
	Description string
	Version     string
	Author      string
	Enabled     bool
	Path        string
	PathCount   int
	ToolCount   int
	// Err is set when the pack file could not be parsed; such packs are skipped.
	Err error
}

// LoadPacks reads every .yaml file in packsDir in name order and merges the
// enabled ones into cfg. A pack whose file name starts with "_" is disabled.
// Protected paths are unioned; tool kinds from a pack never replace a kind
// already set by the config file.
func LoadPacks(packsDir string, cfg *Config) ([]PackInfo, error) {
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []PackInfo
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := loadPack(path)
		if err != nil {
			infos = append(infos, PackInfo{Name: baseName, Enabled: enabled, Path: path, Err: err})
			continue
		}

		info := PackInfo{
			Name:        pack.Name,
			Description: pack.Description,
			Version:     pack.Version,
			Author:      pack.Author,
			Enabled:     enabled,
			Path:        path,
			PathCount:   len(pack.ProtectedPaths),
			ToolCount:   len(pack.Tools),
		}
		if info.Name == "" {
			info.Name = strings.TrimPrefix(baseName, "_")
		}
		infos = append(infos, info)

		if enabled {
			mergePack(cfg, pack)
		}
	}
	return infos, nil
}

func loadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse pack %s: %w", path, err)
	}
	return &pack, nil
}

func mergePack(cfg *Config, pack *Pack) {
	cfg.ProtectedPaths = union(cfg.ProtectedPaths, pack.ProtectedPaths)
	if len(pack.Tools) == 0 {
		return
	}
	if cfg.Tools == nil {
		cfg.Tools = make(map[string]string, len(pack.Tools))
	}
	for tool, kind := range pack.Tools {
		if _, ok := cfg.Tools[tool]; !ok {
			cfg.Tools[tool] = kind
		}
	}
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
