package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gcli-nexus-go/internal/credential"
	"gcli-nexus-go/internal/migrations"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// PostgresRepository stores credential rows in a PostgreSQL table owned by
// the embedded migrations.
type PostgresRepository struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the connection and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultStorageTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrations.PostgresUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("connected to PostgreSQL credential store")
	return &PostgresRepository{db: db}, nil
}

func (p *PostgresRepository) Close() error {
	return p.db.Close()
}

func (p *PostgresRepository) LoadActive(ctx context.Context) ([]credential.Record, error) {
	ctx, cancel := withStorageTimeout(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, email, client_id, client_secret, project_id, scopes,
		       refresh_token, access_token, expiry, status
		FROM credentials
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var out []credential.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("credentials rows: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (credential.Record, error) {
	var rec credential.Record
	var email, accessToken sql.NullString
	var scopes []byte
	if err := rows.Scan(&rec.ID, &email, &rec.ClientID, &rec.ClientSecret,
		&rec.ProjectID, &scopes, &rec.RefreshToken, &accessToken,
		&rec.Expiry, &rec.Status); err != nil {
		return rec, fmt.Errorf("scan credential: %w", err)
	}
	rec.Email = email.String
	rec.AccessToken = accessToken.String
	rec.Expiry = rec.Expiry.UTC()
	if len(scopes) > 0 {
		if err := json.Unmarshal(scopes, &rec.Scopes); err != nil {
			return rec, fmt.Errorf("unmarshal scopes for credential %d: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func (p *PostgresRepository) Upsert(ctx context.Context, rec *credential.Record) error {
	ctx, cancel := withStorageTimeout(ctx)
	defer cancel()

	var scopes any
	if len(rec.Scopes) > 0 {
		data, err := json.Marshal(rec.Scopes)
		if err != nil {
			return fmt.Errorf("marshal scopes: %w", err)
		}
		scopes = data
	}

	err := p.db.QueryRowContext(ctx, `
		INSERT INTO credentials
			(email, client_id, client_secret, project_id, scopes,
			 refresh_token, access_token, expiry, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (refresh_token) DO UPDATE SET
			email         = EXCLUDED.email,
			client_id     = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			project_id    = EXCLUDED.project_id,
			scopes        = EXCLUDED.scopes,
			access_token  = EXCLUDED.access_token,
			expiry        = EXCLUDED.expiry,
			status        = EXCLUDED.status
		RETURNING id`,
		nullIfEmpty(rec.Email), rec.ClientID, rec.ClientSecret, rec.ProjectID,
		scopes, rec.RefreshToken, nullIfEmpty(rec.AccessToken),
		rec.Expiry.UTC(), rec.Status,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (p *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status bool) error {
	ctx, cancel := withStorageTimeout(ctx)
	defer cancel()

	res, err := p.db.ExecContext(ctx,
		`UPDATE credentials SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update credential status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("credential %d not found", id)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
