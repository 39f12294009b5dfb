package stream

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/facette/natsort"
	"github.com/goccy/go-yaml"
)

// Entry is one listed camera stream.
type Entry struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	URL    string `json:"url" yaml:"url"`
	Status string `json:"status" yaml:"status"`
}

type catalogFile struct {
	Streams []Entry `yaml:"streams"`
}

// Catalog is the static stream list served by /api/streams.
type Catalog struct {
	entries []Entry
}

// DefaultEntries is used when no catalog file exists.
var DefaultEntries = []Entry{
	{ID: "ai_cam1", Name: "AI Camera 1", URL: "/stream/ai_cam1/index.m3u8", Status: "active"},
}

// NewCatalog builds a catalog from entries, filling blanks and sorting by id.
func NewCatalog(entries []Entry) *Catalog {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if e.Name == "" {
			e.Name = e.ID
		}
		if e.URL == "" {
			e.URL = "/stream/" + e.ID + "/index.m3u8"
		}
		if e.Status == "" {
			e.Status = "active"
		}
		out = append(out, e)
	}
	// cam2 before cam10
	sort.SliceStable(out, func(i, j int) bool { return natsort.Compare(out[i].ID, out[j].ID) })
	return &Catalog{entries: out}
}

// LoadCatalog reads a YAML catalog. A missing file yields DefaultEntries.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultEntries), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewCatalog(DefaultEntries), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream catalog %s: %w", path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse stream catalog %s: %w", path, err)
	}
	return NewCatalog(f.Streams), nil
}

func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
