// Package audio serves the focus-music catalog: a read-only YAML list
// of pre-uploaded audio file IDs, one of which is picked at random when
// a focus interval starts.
package audio

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Entry is one catalog track. FileID is the provider-side identifier of
// an already-uploaded file, so sending it costs no upload.
type Entry struct {
	FileID   string `yaml:"file_id"`
	Category string `yaml:"category"`
	Title    string `yaml:"title,omitempty"`
}

type catalogFile struct {
	Tracks []Entry `yaml:"tracks"`
}

// Catalog holds the loaded track list.
type Catalog struct {
	mu      sync.Mutex
	entries []Entry
	rnd     *rand.Rand
}

// Load reads the catalog from a YAML file. An empty path yields an
// empty catalog, which is valid: Pick never returns a track.
func Load(path string) (*Catalog, error) {
	c := &Catalog{rnd: rand.New(rand.NewSource(rand.Int63()))}
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audio catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing audio catalog: %w", err)
	}

	for _, e := range f.Tracks {
		if e.FileID == "" {
			continue
		}
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Pick returns a random track, or ok=false when the catalog is empty.
func (c *Catalog) Pick() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return Entry{}, false
	}
	return c.entries[c.rnd.Intn(len(c.entries))], true
}

// Len returns the number of loaded tracks.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
