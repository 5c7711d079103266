package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dataDir = ".jornada"
const dbName = "jornada.db"

// Config locates the SQLite file inside a workspace directory.
type Config struct {
	Workspace string
}

func (c Config) dir() string {
	ws := c.Workspace
	if ws == "" {
		ws = "."
	}
	return filepath.Join(ws, dataDir)
}

// Path is where the database file lives for this workspace.
func (c Config) Path() string {
	return filepath.Join(c.dir(), dbName)
}

// EnsureWorkspace creates the data directory when missing.
func (c Config) EnsureWorkspace() error {
	return os.MkdirAll(c.dir(), 0o755)
}

// Open opens the workspace database with foreign keys on, creating the
// data directory on first use.
func Open(cfg Config) (*sql.DB, error) {
	if err := cfg.EnsureWorkspace(); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", cfg.Path())
	return sql.Open("sqlite", dsn)
}
