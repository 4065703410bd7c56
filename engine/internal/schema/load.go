package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadReader decodes one or more YAML schema documents from r and registers
// them. Documents are separated with the usual "---" marker.
func LoadReader(reg *Registry, r io.Reader) (int, error) {
	return loadReader(reg, r, false)
}

func loadReader(reg *Registry, r io.Reader, skipPublished bool) (int, error) {
	dec := yaml.NewDecoder(r)
	count := 0
	docs := 0
	for {
		var def Definition
		err := dec.Decode(&def)
		if err == io.EOF {
			return count, nil
		}
		docs++
		if err != nil {
			return count, fmt.Errorf("decode schema document %d: %w", docs, err)
		}
		if err := reg.Register(&def); err != nil {
			if skipPublished && errors.Is(err, ErrDuplicateVersion) {
				continue
			}
			return count, err
		}
		count++
	}
}

// LoadDir registers every .yaml/.yml schema document under dir. Files are
// visited in lexical order so repeated loads publish versions in the same
// order. Called at startup or between batches, never mid-batch.
func LoadDir(reg *Registry, dir string) (int, error) {
	return loadDir(reg, dir, false)
}

// ReloadDir registers any documents under dir not yet published and skips
// versions the registry already holds. Safe against a live registry: running
// batches keep the immutable definitions they resolved at submit time.
func ReloadDir(reg *Registry, dir string) (int, error) {
	return loadDir(reg, dir, true)
}

func loadDir(reg *Registry, dir string, skipPublished bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read schema dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	total := 0
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return total, fmt.Errorf("open %s: %w", path, err)
		}
		n, err := loadReader(reg, f, skipPublished)
		f.Close()
		total += n
		if err != nil {
			return total, fmt.Errorf("%s: %w", path, err)
		}
	}
	return total, nil
}
