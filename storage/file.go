package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pavelpuchok/electrorss/feed"
)

const (
	itemsFile = "items.json"
	stateFile = "state.json"
	uiFile    = "ui.json"
)

// FileStorage keeps the listed items, per feed validators and UI
// preferences as JSON files in the cache directory.
type FileStorage struct {
	mu  *sync.Mutex
	dir string
}

// Preferences are the list view settings remembered between runs.
type Preferences struct {
	Days  int    `json:"days,omitempty"`
	Query string `json:"query,omitempty"`
}

// State maps feed URLs to the validators of their last fetch.
type State map[string]feed.Meta

func NewFileStorage(dir string) (*FileStorage, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("unable to create storage directory %s. %w", dir, err)
	}

	return &FileStorage{
		mu:  new(sync.Mutex),
		dir: dir,
	}, nil
}

func (f *FileStorage) Dir() string {
	return f.dir
}

func (f *FileStorage) path(name string) string {
	return filepath.Join(f.dir, name)
}

// writeFile replaces the file atomically through a temporary sibling.
func (f *FileStorage) writeFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	p := f.path(name)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, p)
}

// readFile decodes the named file. A missing file yields the zero value and
// is not an error. A file that fails to decode yields the zero value too,
// never a partially filled one.
func readFile[T any](f *FileStorage, name string) (T, error) {
	var zero T

	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return zero, nil
	}
	if err != nil {
		return zero, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, fmt.Errorf("%w %s. %w", ErrCorruptFile, name, err)
	}

	return v, nil
}

// load reads a file and degrades corrupt content to the zero value.
func load[T any](f *FileStorage, name string) (T, error) {
	v, err := readFile[T](f, name)
	if errors.Is(err, ErrCorruptFile) {
		slog.Warn("Ignoring corrupt storage file", slog.String("file", f.path(name)), slog.String("error", err.Error()))
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("unable to read storage file %s. %w", f.path(name), err)
	}
	return v, nil
}

func (f *FileStorage) LoadItems() ([]feed.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return load[[]feed.Item](f, itemsFile)
}

func (f *FileStorage) SaveItems(items []feed.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if items == nil {
		items = []feed.Item{}
	}

	if err := f.writeFile(itemsFile, items); err != nil {
		return fmt.Errorf("unable to write storage file %s. %w", f.path(itemsFile), err)
	}
	return nil
}

func (f *FileStorage) LoadState() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := load[State](f, stateFile)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = make(State)
	}
	return state, nil
}

func (f *FileStorage) SaveState(state State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeFile(stateFile, state); err != nil {
		return fmt.Errorf("unable to write storage file %s. %w", f.path(stateFile), err)
	}
	return nil
}

func (f *FileStorage) LoadPreferences() (Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return load[Preferences](f, uiFile)
}

// SavePreferences merges the non-zero fields of p into the stored
// preferences. An empty query clears the stored one only when clearQuery is set.
func (f *FileStorage) SavePreferences(p Preferences, clearQuery bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, err := load[Preferences](f, uiFile)
	if err != nil {
		return err
	}

	if p.Days != 0 {
		cur.Days = p.Days
	}
	if p.Query != "" || clearQuery {
		cur.Query = p.Query
	}

	if err := f.writeFile(uiFile, cur); err != nil {
		return fmt.Errorf("unable to write storage file %s. %w", f.path(uiFile), err)
	}
	return nil
}

// Clear removes the cached items and feed validators. Preferences are kept.
func (f *FileStorage) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, name := range []string{itemsFile, stateFile} {
		err := os.Remove(f.path(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unable to remove storage file %s. %w", f.path(name), err)
		}
	}
	return nil
}

// Stats counts the files under the cache directory and their total size.
func (f *FileStorage) Stats() (files int, size int64, err error) {
	err = filepath.WalkDir(f.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		files++
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("unable to walk cache directory %s. %w", f.dir, err)
	}
	return files, size, nil
}
