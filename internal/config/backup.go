package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups bounds how many timestamped config backups are kept per
	// config file; older ones are pruned after each new backup.
	MaxBackups = 3

	backupSuffix = ".bak"
)

// BackupProjectConfig snapshots dir's .openace.yaml to a timestamped
// sibling file before a destructive rewrite (e.g. `openace init --force`).
// Returns the backup path, or "" when there is no config to back up.
func BackupProjectConfig(dir string) (string, error) {
	configPath := projectConfigPath(dir)
	if configPath == "" {
		return "", nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("config: read %s for backup: %w", configPath, err)
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := fmt.Sprintf("%s%s.%s", configPath, backupSuffix, timestamp)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("config: write backup: %w", err)
	}

	// Pruning is best-effort; the new backup is already on disk.
	_ = pruneBackups(configPath)

	return backupPath, nil
}

// projectConfigPath returns the existing project config file under dir, or
// "" when neither spelling is present.
func projectConfigPath(dir string) string {
	for _, name := range []string{configFileNameYAML, configFileNameYML} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ListBackups returns configPath's backups, newest first.
func ListBackups(configPath string) ([]string, error) {
	dir := filepath.Dir(configPath)
	base := filepath.Base(configPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: list %s: %w", dir, err)
	}

	prefix := base + backupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		backups = append(backups, filepath.Join(dir, entry.Name()))
	}

	// The timestamp format sorts lexicographically, so name order is
	// creation order.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

func pruneBackups(configPath string) error {
	backups, err := ListBackups(configPath)
	if err != nil {
		return err
	}
	for _, b := range backups[min(len(backups), MaxBackups):] {
		_ = os.Remove(b)
	}
	return nil
}

// RestoreBackup replaces the project config at configPath with the contents
// of backupPath, backing up the current config first when one exists.
func RestoreBackup(configPath, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("config: backup not found: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if _, err := BackupProjectConfig(filepath.Dir(configPath)); err != nil {
			return fmt.Errorf("config: backup current config before restore: %w", err)
		}
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("config: read backup: %w", err)
	}
	return os.WriteFile(configPath, data, 0o644)
}
