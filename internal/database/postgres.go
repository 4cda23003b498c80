package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL, which holds the append-only
// moderation evidence log so the audit trail lives apart from the
// operational store.
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates the evidence tables if they don't exist.
func InitPostgresTables() error {
	queries := []string{
		// Append-only audit log; one row per terminal moderation action.
		`CREATE TABLE IF NOT EXISTS evidence_records (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			evaluation_id VARCHAR(64) NOT NULL,
			account_id VARCHAR(255) NOT NULL,
			comment_id VARCHAR(255) NOT NULL,
			commenter_id VARCHAR(255) NOT NULL,
			comment_text TEXT NOT NULL,
			category VARCHAR(32) NOT NULL,
			risk_score INTEGER NOT NULL,
			action VARCHAR(32) NOT NULL,
			reason VARCHAR(64) NOT NULL,
			rationale TEXT,
			degraded BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_evidence_account_id ON evidence_records(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_comment_id ON evidence_records(comment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_commenter_id ON evidence_records(commenter_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_created_at ON evidence_records(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_reason ON evidence_records(reason)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection.
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
