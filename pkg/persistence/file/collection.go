package file

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"
)

// collection stores one JSON document per record under root/name.
type collection[T any] struct {
	dir       string
	id        func(*T) string
	createdAt func(*T) time.Time
}

func newCollection[T any](root, name string, id func(*T) string, createdAt func(*T) time.Time) *collection[T] {
	return &collection[T]{dir: path.Join(root, name), id: id, createdAt: createdAt}
}

// get returns nil, nil when the record does not exist.
func (c *collection[T]) get(id string) (*T, error) {
	filePath := filepath.Clean(path.Join(c.dir, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	var item T

	err = json.Unmarshal(body, &item)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}

	return &item, nil
}

// all returns every record ordered by creation time, then id.
func (c *collection[T]) all() ([]*T, error) {
	jsonFiles, err := fs.Glob(os.DirFS(c.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	items := make([]*T, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		item, err := c.get(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if item != nil {
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := c.createdAt(items[i]), c.createdAt(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}

		return c.id(items[i]) < c.id(items[j])
	})

	return items, nil
}

func (c *collection[T]) filter(keep func(*T) bool) ([]*T, error) {
	items, err := c.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*T, 0, len(items))

	for _, item := range items {
		if keep(item) {
			filtered = append(filtered, item)
		}
	}

	return filtered, nil
}

// save writes the record through a temporary file so readers never see a partial document.
func (c *collection[T]) save(item *T) error {
	err := os.MkdirAll(c.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.id(item), err)
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", c.id(item), err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close %s: %w", c.id(item), err)
	}

	return os.Rename(tmp.Name(), path.Join(c.dir, c.id(item)+".json"))
}

// delete is a no-op when the record does not exist.
func (c *collection[T]) delete(id string) error {
	err := os.Remove(path.Join(c.dir, id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return nil
}

func (c *collection[T]) deleteWhere(match func(*T) bool) error {
	items, err := c.filter(match)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := c.delete(c.id(item)); err != nil {
			return err
		}
	}

	return nil
}
