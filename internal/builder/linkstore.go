package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/theeshop/listingbot/internal/utils"
)

type link struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// LinkStore remembers the public url of every uploaded file, keyed by the
// sha256 of its content, in a json index file.
type LinkStore struct {
	path string

	mu    sync.Mutex
	links map[string]link
}

// OpenLinkStore loads the index at path. A missing index is empty.
func OpenLinkStore(path string) (*LinkStore, error) {
	s := &LinkStore{path: path, links: map[string]link{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.links); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LinkStore) Get(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[hash]
	return l.URL, ok
}

// Set records url for hash and rewrites the index.
func (s *LinkStore) Set(hash, path, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[hash] = link{Path: path, URL: url}
	return s.save()
}

func (s *LinkStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.links, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := utils.RandomString(s.path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// HashFile returns the hex encoded sha256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
