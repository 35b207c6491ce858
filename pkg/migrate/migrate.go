// Package migrate applies the goose SQL migrations that define the POS schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where create and validate look in a source checkout.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source is a set of migration files: the ones compiled into the binary or a directory
// on disk.
type Source struct {
	fsys fs.FS
	dir  string
}

func Embedded() Source {
	return Source{fsys: embedded, dir: "migrations"}
}

func Disk(dir string) Source {
	return Source{fsys: os.DirFS("."), dir: dir}
}

func (s Source) String() string {
	if _, ok := s.fsys.(embed.FS); ok {
		return "embedded:" + s.dir
	}
	return s.dir
}

// Files lists the migration files in s.
func (s Source) Files() ([]string, error) {
	return fs.Glob(s.fsys, s.dir+"/*.sql")
}

func (s Source) use() error {
	if s.fsys == nil || s.dir == "" {
		return errors.New("migrate: empty migration source")
	}
	goose.SetBaseFS(s.fsys)
	return goose.SetDialect("postgres")
}

// Run executes a goose command ("up", "down", "status", ...) from src.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return errors.New("migrate: database handle required")
	}
	if err := src.use(); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, src.dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// ToVersion migrates up or down until the schema is at target.
func ToVersion(ctx context.Context, db *sql.DB, src Source, target int64) error {
	if target < 0 {
		return fmt.Errorf("migrate: invalid target version %d", target)
	}
	if err := src.use(); err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case target > current:
		err = goose.UpToContext(ctx, db, src.dir, target)
	case target < current:
		err = goose.DownToContext(ctx, db, src.dir, target)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
