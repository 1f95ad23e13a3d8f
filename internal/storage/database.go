package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"legalquery/internal/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured relational store. The returned handle is
// shared across requests; statements commit independently.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "postgres":
		dsn := dbCfg.DSN
		if dsn == "" {
			sslMode := dbCfg.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.DBName,
				sslMode,
			)
		}
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables and views are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				user_id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL,
				ip_address TEXT NOT NULL,
				first_visit DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_visit DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(username, ip_address)
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				session_id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				session_name TEXT NOT NULL,
				knowledge_base TEXT,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				session_start DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				session_end DATETIME,
				FOREIGN KEY(user_id) REFERENCES users(user_id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				message_id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				tokens_used INTEGER,
				has_chunks BOOLEAN NOT NULL DEFAULT 0,
				chunk_count INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS retrieval_chunks (
				chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id INTEGER NOT NULL,
				source_document TEXT NOT NULL,
				chunk_text TEXT NOT NULL,
				chunk_order INTEGER NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY(message_id) REFERENCES messages(message_id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS citations (
				citation_id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id INTEGER NOT NULL,
				document_name TEXT NOT NULL,
				chunk_reference TEXT,
				citation_order INTEGER NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY(message_id) REFERENCES messages(message_id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS security_warnings (
				warning_id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER NOT NULL,
				message_id INTEGER,
				warning_type TEXT NOT NULL,
				warning_message TEXT NOT NULL,
				query_text TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
				FOREIGN KEY(message_id) REFERENCES messages(message_id) ON DELETE SET NULL
			)`,
			`CREATE TABLE IF NOT EXISTS session_settings (
				setting_id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER NOT NULL,
				model_name TEXT NOT NULL,
				system_prompt TEXT NOT NULL,
				use_metadata_filter BOOLEAN NOT NULL DEFAULT 0,
				metadata_filter TEXT,
				security_enabled BOOLEAN NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_chunks_message ON retrieval_chunks(message_id)`,
			`CREATE INDEX IF NOT EXISTS idx_citations_message ON citations(message_id)`,
			`CREATE INDEX IF NOT EXISTS idx_warnings_session ON security_warnings(session_id)`,
			`CREATE VIEW IF NOT EXISTS session_summary AS
				SELECT s.session_id,
					s.session_name,
					u.username,
					s.knowledge_base,
					(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id) AS total_messages,
					(SELECT COUNT(*) FROM security_warnings w WHERE w.session_id = s.session_id) AS warning_count,
					s.is_active,
					s.session_start,
					s.session_end
				FROM sessions s JOIN users u ON s.user_id = u.user_id`,
			`CREATE VIEW IF NOT EXISTS user_statistics AS
				SELECT u.user_id,
					u.username,
					u.ip_address,
					(SELECT COUNT(*) FROM sessions s WHERE s.user_id = u.user_id) AS total_sessions,
					(SELECT COUNT(*) FROM sessions s WHERE s.user_id = u.user_id AND s.is_active) AS active_sessions,
					(SELECT COUNT(*) FROM messages m JOIN sessions s ON m.session_id = s.session_id
						WHERE s.user_id = u.user_id AND m.role = 'user') AS total_queries,
					(SELECT COUNT(*) FROM security_warnings w JOIN sessions s ON w.session_id = s.session_id
						WHERE s.user_id = u.user_id) AS total_warnings,
					u.first_visit,
					u.last_visit
				FROM users u`,
		}
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				user_id SERIAL PRIMARY KEY,
				username VARCHAR(255) NOT NULL,
				ip_address INET NOT NULL,
				first_visit TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_visit TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(username, ip_address)
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				session_id SERIAL PRIMARY KEY,
				user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
				session_name VARCHAR(255) NOT NULL,
				knowledge_base TEXT,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				session_start TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				session_end TIMESTAMPTZ
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				message_id SERIAL PRIMARY KEY,
				session_id INTEGER NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
				role VARCHAR(20) NOT NULL,
				content TEXT NOT NULL,
				tokens_used INTEGER,
				has_chunks BOOLEAN NOT NULL DEFAULT FALSE,
				chunk_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS retrieval_chunks (
				chunk_id SERIAL PRIMARY KEY,
				message_id INTEGER NOT NULL REFERENCES messages(message_id) ON DELETE CASCADE,
				source_document TEXT NOT NULL,
				chunk_text TEXT NOT NULL,
				chunk_order INTEGER NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS citations (
				citation_id SERIAL PRIMARY KEY,
				message_id INTEGER NOT NULL REFERENCES messages(message_id) ON DELETE CASCADE,
				document_name TEXT NOT NULL,
				chunk_reference TEXT,
				citation_order INTEGER NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS security_warnings (
				warning_id SERIAL PRIMARY KEY,
				session_id INTEGER NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
				message_id INTEGER REFERENCES messages(message_id) ON DELETE SET NULL,
				warning_type VARCHAR(100) NOT NULL,
				warning_message TEXT NOT NULL,
				query_text TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS session_settings (
				setting_id SERIAL PRIMARY KEY,
				session_id INTEGER NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
				model_name VARCHAR(100) NOT NULL,
				system_prompt TEXT NOT NULL,
				use_metadata_filter BOOLEAN NOT NULL DEFAULT FALSE,
				metadata_filter TEXT,
				security_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_chunks_message ON retrieval_chunks(message_id)`,
			`CREATE INDEX IF NOT EXISTS idx_citations_message ON citations(message_id)`,
			`CREATE INDEX IF NOT EXISTS idx_warnings_session ON security_warnings(session_id)`,
			`CREATE OR REPLACE VIEW session_summary AS
				SELECT s.session_id,
					s.session_name,
					u.username,
					s.knowledge_base,
					(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id) AS total_messages,
					(SELECT COUNT(*) FROM security_warnings w WHERE w.session_id = s.session_id) AS warning_count,
					s.is_active,
					s.session_start,
					s.session_end
				FROM sessions s JOIN users u ON s.user_id = u.user_id`,
			`CREATE OR REPLACE VIEW user_statistics AS
				SELECT u.user_id,
					u.username,
					u.ip_address,
					(SELECT COUNT(*) FROM sessions s WHERE s.user_id = u.user_id) AS total_sessions,
					(SELECT COUNT(*) FROM sessions s WHERE s.user_id = u.user_id AND s.is_active) AS active_sessions,
					(SELECT COUNT(*) FROM messages m JOIN sessions s ON m.session_id = s.session_id
						WHERE s.user_id = u.user_id AND m.role = 'user') AS total_queries,
					(SELECT COUNT(*) FROM security_warnings w JOIN sessions s ON w.session_id = s.session_id
						WHERE s.user_id = u.user_id) AS total_warnings,
					u.first_visit,
					u.last_visit
				FROM users u`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
