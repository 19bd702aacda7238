package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"medtrack/internal/config"
)

const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// NormalizeDriver maps accepted aliases onto a database/sql driver name.
func NormalizeDriver(dbType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "mysql":
		return DriverMySQL, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", dbType)
	}
}

// Open connects to the configured database for dbType.
func Open(dbType string, cfg *config.Config) (*sqlx.DB, error) {
	driver, err := NormalizeDriver(dbType)
	if err != nil {
		return nil, err
	}
	dbCfg, ok := cfg.Databases[driver]
	if !ok {
		dbCfg, ok = cfg.Databases[strings.ToLower(dbType)]
	}
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		dsn = dbCfg.DSN
	case DriverMySQL:
		dsn = dbCfg.DSN
		if dsn == "" {
			params := dbCfg.Params
			if !strings.Contains(params, "parseTime") {
				params = strings.TrimPrefix(params+"&parseTime=true", "&")
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				params,
			)
		}
	case DriverPostgres:
		dsn = dbCfg.DSN
		if dsn == "" {
			u := url.URL{
				Scheme:   "postgres",
				User:     url.UserPassword(dbCfg.Username, dbCfg.Password),
				Host:     fmt.Sprintf("%s:%d", dbCfg.Host, dbCfg.Port),
				Path:     "/" + dbCfg.DBName,
				RawQuery: dbCfg.Params,
			}
			dsn = u.String()
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps a :memory: database shared and serialises writers
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sqlx.DB, dbType string) error {
	driver, err := NormalizeDriver(dbType)
	if err != nil {
		return fmt.Errorf("unsupported driver for migration: %s", dbType)
	}
	var stmts []string
	switch driver {
	case DriverSQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				first_name TEXT,
				last_name TEXT,
				email TEXT,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS medications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				name TEXT NOT NULL,
				dosage TEXT NOT NULL,
				medication_type TEXT NOT NULL,
				schedule TEXT NOT NULL,
				status TEXT NOT NULL,
				supply_remaining INTEGER,
				has_interaction BOOLEAN NOT NULL DEFAULT 0,
				interaction_details TEXT,
				next_due_at DATETIME,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS activities (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				activity_type TEXT NOT NULL,
				description TEXT NOT NULL,
				medication_id INTEGER,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				content TEXT NOT NULL,
				is_bot BOOLEAN NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_medications_user ON medications(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, created_at)`,
		}
	case DriverMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT NOT NULL AUTO_INCREMENT,
				username VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				first_name VARCHAR(255),
				last_name VARCHAR(255),
				email VARCHAR(255),
				created_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS medications (
				id BIGINT NOT NULL AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				name VARCHAR(255) NOT NULL,
				dosage VARCHAR(255) NOT NULL,
				medication_type VARCHAR(50) NOT NULL,
				schedule VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				supply_remaining INT,
				has_interaction BOOLEAN NOT NULL DEFAULT FALSE,
				interaction_details TEXT,
				next_due_at DATETIME(6),
				PRIMARY KEY (id),
				INDEX idx_medications_user (user_id),
				CONSTRAINT fk_medications_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS activities (
				id BIGINT NOT NULL AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				activity_type VARCHAR(100) NOT NULL,
				description TEXT NOT NULL,
				medication_id BIGINT,
				created_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_activities_user (user_id, created_at),
				CONSTRAINT fk_activities_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGINT NOT NULL AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				content MEDIUMTEXT NOT NULL,
				is_bot BOOLEAN NOT NULL,
				created_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_messages_user (user_id, created_at),
				CONSTRAINT fk_messages_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case DriverPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				first_name TEXT,
				last_name TEXT,
				email TEXT,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS medications (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				dosage TEXT NOT NULL,
				medication_type TEXT NOT NULL,
				schedule TEXT NOT NULL,
				status TEXT NOT NULL,
				supply_remaining INTEGER,
				has_interaction BOOLEAN NOT NULL DEFAULT FALSE,
				interaction_details TEXT,
				next_due_at TIMESTAMPTZ
			)`,
			`CREATE TABLE IF NOT EXISTS activities (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				activity_type TEXT NOT NULL,
				description TEXT NOT NULL,
				medication_id BIGINT,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				is_bot BOOLEAN NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_medications_user ON medications(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, created_at)`,
		}
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
