package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open abre un pool a Postgres usando pgx (database/sql).
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Una sola tabla para todos los índices: (index_name, id) -> doc jsonb.
const createDocumentsTable = `
	CREATE TABLE IF NOT EXISTS documents (
		index_name TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		doc        JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (index_name, id)
	)`

const createDocumentsGIN = `CREATE INDEX IF NOT EXISTS documents_doc_gin ON documents USING GIN (doc jsonb_path_ops)`

// Migrate crea la tabla de documentos si falta.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createDocumentsTable); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, createDocumentsGIN)
	return err
}
