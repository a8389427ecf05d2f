package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

type cacheFile struct {
	path    string
	modTime time.Time
}

func listEntries(dir string) ([]cacheFile, error) {
	var out []cacheFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, cacheFile{path: path, modTime: info.ModTime()})
		return nil
	})
	return out, err
}

// PurgeByAge removes entries not used for longer than maxAge, judged by file
// modification time.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	files, err := listEntries(dir)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, f := range files {
		if now.Sub(f.modTime) <= maxAge {
			continue
		}
		if os.Remove(f.path) == nil {
			removed++
		}
	}
	return removed, nil
}

// EnforceLimits keeps at most maxCount entries, evicting the least recently
// used first.
func EnforceLimits(dir string, maxCount int) (int, error) {
	if maxCount <= 0 {
		return 0, nil
	}
	files, err := listEntries(dir)
	if err != nil || len(files) <= maxCount {
		return 0, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	removed := 0
	for _, f := range files[:len(files)-maxCount] {
		if os.Remove(f.path) == nil {
			removed++
		}
	}
	return removed, nil
}
