package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kpi-dashboard/internal/models"
)

const cacheVersion = "v3"

// cachedDataset is stamped with the source file's size and mtime; a change to
// either invalidates it, including a replacement with an older mtime.
type cachedDataset struct {
	Records     []models.Record
	Source      string
	Sheet       string
	SourceSize  int64
	SourceMTime time.Time
	LoadedAt    time.Time
}

func (c *cachedDataset) matches(info os.FileInfo) bool {
	return c.SourceSize == info.Size() && c.SourceMTime.Equal(info.ModTime())
}

func cacheFilename(opts Options) string {
	name := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(opts.Path)
	if opts.Sheet != "" {
		name += "_" + opts.Sheet
	}
	return filepath.Join(opts.CacheDir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func saveToCache(opts Options, info os.FileInfo, s *Store) error {
	if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
		return err
	}

	file, err := os.Create(cacheFilename(opts))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(cachedDataset{
		Records:     s.records,
		Source:      opts.Path,
		Sheet:       opts.Sheet,
		SourceSize:  info.Size(),
		SourceMTime: info.ModTime(),
		LoadedAt:    s.loadedAt,
	})
}

func loadFromCache(opts Options) (*cachedDataset, error) {
	file, err := os.Open(cacheFilename(opts))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data cachedDataset
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, err
	}
	if data.Source != opts.Path || data.Sheet != opts.Sheet {
		return nil, fmt.Errorf("cache entry belongs to %s", data.Source)
	}

	return &data, nil
}
