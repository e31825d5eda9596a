package db

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations is the schema shipped with the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// DB wraps the database connection
type DB struct {
	*sql.DB
	log zerolog.Logger
}

// New creates a new database connection from the provided connection string
func New(ctx context.Context, connectionString string, log zerolog.Logger) (*DB, error) {
	if connectionString == "" {
		return nil, errors.New("database connection string is required")
	}

	sqlDB, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		// Try with SSL disabled if connection fails and SSL mode not specified
		if !strings.Contains(strings.ToLower(connectionString), "sslmode") {
			log.Warn().Err(err).Msg("retrying database connection with SSL disabled")
			sqlDB.Close()
			sqlDB, err = sql.Open("postgres", withSSLDisabled(connectionString))
			if err != nil {
				return nil, errors.Wrap(err, "failed to open database")
			}
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, errors.Wrap(err, "failed to ping database")
		}
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return &DB{DB: sqlDB, log: log}, nil
}

func withSSLDisabled(conn string) string {
	if strings.Contains(conn, "?") {
		return conn + "&sslmode=disable"
	}
	return conn + "?sslmode=disable"
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// RunMigrations applies every NNN_name.sql file in fsys that has not been applied yet.
func (db *DB) RunMigrations(ctx context.Context, fsys fs.FS) error {
	migrations, err := readMigrations(fsys)
	if err != nil {
		return errors.Wrap(err, "failed to read migrations")
	}

	if len(migrations) == 0 {
		db.log.Info().Msg("no migrations found")
		return nil
	}

	if err := db.createMigrationTable(ctx); err != nil {
		return errors.Wrap(err, "failed to create migration table")
	}

	for _, migration := range migrations {
		applied, err := db.isMigrationApplied(ctx, migration.Number)
		if err != nil {
			return errors.Wrap(err, "failed to check migration status")
		}
		if applied {
			db.log.Debug().Int("version", migration.Number).Msg("migration already applied, skipping")
			continue
		}

		db.log.Info().Int("version", migration.Number).Str("name", migration.Name).Msg("applying migration")
		if err := db.apply(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "failed to execute migration %d", m.Number)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		m.Number, m.Name,
	); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to record migration")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration")
	}
	return nil
}

// Migration represents a single migration file
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// readMigrations returns the migrations in fsys sorted by number. Files that do not
// follow the NNN_name.sql pattern are ignored.
func readMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		filename := d.Name()
		parts := strings.Split(filename, "_")
		if len(parts) < 2 {
			return nil
		}
		number, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}

		sqlBytes, err := fs.ReadFile(fsys, path)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file %s", filename)
		}

		migrations = append(migrations, Migration{
			Number: number,
			Name:   strings.TrimSuffix(strings.Join(parts[1:], "_"), ".sql"),
			SQL:    string(sqlBytes),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})
	return migrations, nil
}

func (db *DB) createMigrationTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	return err
}

func (db *DB) isMigrationApplied(ctx context.Context, number int) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = $1",
		number,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
