// Package migrate brings a SQLite database up to the newest compiled-in schema version.
//
// Migrations are loaded once into an immutable Registry and passed to Run, which
// records each applied version in the schema_migrations ledger.
package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Migration is one versioned schema-change script.
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// Registry is an ordered, immutable set of migrations.
type Registry struct {
	migrations []Migration
}

// New builds a Registry from migrations in any order.
// Versions must be positive and unique.
func New(migrations ...Migration) (*Registry, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for i, m := range sorted {
		if m.Version <= 0 {
			return nil, fmt.Errorf("migration %q: version must be positive, got %d", m.Name, m.Version)
		}
		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, fmt.Errorf("duplicate migration version %d (%q and %q)", m.Version, sorted[i-1].Name, m.Name)
		}
		if strings.TrimSpace(m.SQL) == "" {
			return nil, fmt.Errorf("migration %d (%q) is empty", m.Version, m.Name)
		}
	}
	return &Registry{migrations: sorted}, nil
}

// Load reads NNNN_name.sql files from root in fsys.
// When a file has a "-- +migrate Up" marker only that section is kept.
func Load(fsys fs.FS, root string) (*Registry, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		content, err := fs.ReadFile(fsys, path.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    entry.Name(),
			SQL:     ExtractUpMigration(string(content)),
		})
	}
	return New(migrations...)
}

// parseVersion reads the leading digits of a file name such as 0002_add_source.sql.
func parseVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		prefix = strings.TrimSuffix(name, ".sql")
	}
	version, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("migration %s: file name must start with a version number", name)
	}
	return version, nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// Migrations returns a copy of the ordered migrations.
func (r *Registry) Migrations() []Migration {
	out := make([]Migration, len(r.migrations))
	copy(out, r.migrations)
	return out
}

// Latest returns the highest version in the registry, 0 when empty.
func (r *Registry) Latest() int64 {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

// pending returns the migrations with a version greater than current, in order.
func (r *Registry) pending(current int64) []Migration {
	i := sort.Search(len(r.migrations), func(i int) bool { return r.migrations[i].Version > current })
	return r.migrations[i:]
}
