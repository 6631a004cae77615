package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	markerUp    = "-- +goose Up"
	markerDown  = "-- +goose Down"
	markerBegin = "-- +goose StatementBegin"
	markerEnd   = "-- +goose StatementEnd"
)

// File is one goose SQL migration on disk.
type File struct {
	Version string
	Name    string
	Path    string
}

// ValidateDir checks every migration in dir. See List.
func ValidateDir(dir string) error {
	_, err := List(dir)
	return err
}

// List returns the migrations in dir ordered by version after checking that
// names are well formed, versions are unique, and each file has an Up section
// before its Down section with balanced statement blocks.
func List(dir string) ([]File, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var files []File
	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, e.Name())
		}
		seen[m[1]] = e.Name()

		f := File{Version: m[1], Name: m[2], Path: filepath.Join(dir, e.Name())}
		if err := checkSections(f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func checkSections(f File) error {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("read file %q: %w", f.Path, err)
	}
	txt := string(b)

	up, down := strings.Index(txt, markerUp), strings.Index(txt, markerDown)
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing %q", f.Path, markerUp)
	case down < 0:
		return fmt.Errorf("migration %q missing %q", f.Path, markerDown)
	case down < up:
		return fmt.Errorf("migration %q has Down before Up", f.Path)
	}

	depth := 0
	for _, line := range strings.Split(txt, "\n") {
		switch strings.TrimSpace(line) {
		case markerBegin:
			depth++
		case markerEnd:
			depth--
		}
		if depth < 0 || depth > 1 {
			return fmt.Errorf("migration %q has unbalanced statement blocks", f.Path)
		}
	}
	if depth != 0 {
		return fmt.Errorf("migration %q has an unterminated statement block", f.Path)
	}
	return nil
}
