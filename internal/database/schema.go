package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates any missing tables. Statements are idempotent so it is
// safe to run on every start when DB_AUTO_MIGRATE is set.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case "mysql":
		stmts = mysqlSchema
	case "sqlite":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", driver)
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL,
		display_name VARCHAR(150) NOT NULL DEFAULT '',
		password_hash VARCHAR(100) NOT NULL,
		role VARCHAR(20) NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		revoked_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS systems (
		code VARCHAR(50) NOT NULL PRIMARY KEY,
		name VARCHAR(150) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS fault_locations (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(150) NOT NULL,
		UNIQUE KEY uq_fault_locations_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sections (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(150) NOT NULL,
		UNIQUE KEY uq_sections_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS faults (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		system_id VARCHAR(50) NOT NULL,
		section_id BIGINT NULL,
		location VARCHAR(255) NOT NULL,
		location_of_fault VARCHAR(150) NULL,
		loc_fault_id BIGINT NULL,
		desc_fault TEXT NOT NULL,
		reported_by VARCHAR(150) NOT NULL,
		ext_no VARCHAR(50) NULL,
		assign_to VARCHAR(1000) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'Open',
		fault_forward_id BIGINT NULL,
		date_time DATETIME(6) NOT NULL,
		KEY idx_faults_status (status),
		KEY idx_faults_date_time (date_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS fault_assignees (
		fault_id BIGINT UNSIGNED NOT NULL,
		seq INT NOT NULL,
		assignee VARCHAR(150) NOT NULL,
		PRIMARY KEY (fault_id, seq),
		KEY idx_fault_assignees_assignee (assignee),
		CONSTRAINT fk_fault_assignees_fault FOREIGN KEY (fault_id) REFERENCES faults (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS notes (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		fault_id BIGINT UNSIGNED NOT NULL,
		notes TEXT NOT NULL,
		note_date DATETIME(6) NOT NULL,
		KEY idx_notes_fault (fault_id, note_date),
		CONSTRAINT fk_notes_fault FOREIGN KEY (fault_id) REFERENCES faults (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS photos (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		fault_id BIGINT UNSIGNED NOT NULL,
		photo_path VARCHAR(512) NOT NULL,
		uploaded_at DATETIME(6) NOT NULL,
		uploaded_by VARCHAR(150) NOT NULL,
		KEY idx_photos_fault (fault_id, uploaded_at),
		CONSTRAINT fk_photos_fault FOREIGN KEY (fault_id) REFERENCES faults (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS systems (
		code TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fault_locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS faults (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		system_id TEXT NOT NULL,
		section_id INTEGER NULL,
		location TEXT NOT NULL,
		location_of_fault TEXT NULL,
		loc_fault_id INTEGER NULL,
		desc_fault TEXT NOT NULL,
		reported_by TEXT NOT NULL,
		ext_no TEXT NULL,
		assign_to TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Open',
		fault_forward_id INTEGER NULL,
		date_time DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fault_assignees (
		fault_id INTEGER NOT NULL REFERENCES faults (id),
		seq INTEGER NOT NULL,
		assignee TEXT NOT NULL,
		PRIMARY KEY (fault_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fault_assignees_assignee ON fault_assignees (assignee)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		fault_id INTEGER NOT NULL REFERENCES faults (id),
		notes TEXT NOT NULL,
		note_date DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_fault ON notes (fault_id, note_date)`,
	`CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fault_id INTEGER NOT NULL REFERENCES faults (id),
		photo_path TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL,
		uploaded_by TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_fault ON photos (fault_id, uploaded_at)`,
}
