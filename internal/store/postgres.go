package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores documents in a single JSONB table keyed by
// (guild_id, collection, doc_id).
type Postgres struct {
	pool *pgxpool.Pool
}

// Config holds Postgres connection settings.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnString renders the pgx connection URL.
func (c Config) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// NewPostgres opens a connection pool against the documents database.
func NewPostgres(config Config) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Get(ctx context.Context, guildID, collection, docID string, v any) error {
	query := `
		SELECT data
		FROM documents
		WHERE guild_id = $1 AND collection = $2 AND doc_id = $3`

	var raw []byte
	err := p.pool.QueryRow(ctx, query, guildID, collection, docID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s/%s", ErrNotFound, guildID, collection, docID)
	}
	if err != nil {
		return fmt.Errorf("error loading document: %w", err)
	}
	return json.Unmarshal(raw, v)
}

func (p *Postgres) Put(ctx context.Context, guildID, collection, docID string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}

	query := `
		INSERT INTO documents (guild_id, collection, doc_id, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, collection, doc_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	_, err = p.pool.Exec(ctx, query, guildID, collection, docID, raw, time.Now())
	if err != nil {
		return fmt.Errorf("error saving document: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, guildID, collection, docID string) error {
	query := `
		DELETE FROM documents
		WHERE guild_id = $1 AND collection = $2 AND doc_id = $3`

	_, err := p.pool.Exec(ctx, query, guildID, collection, docID)
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, guildID, collection string) (map[string]json.RawMessage, error) {
	query := `
		SELECT doc_id, data
		FROM documents
		WHERE guild_id = $1 AND collection = $2`

	rows, err := p.pool.Query(ctx, query, guildID, collection)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var docID string
		var raw []byte
		if err := rows.Scan(&docID, &raw); err != nil {
			return nil, err
		}
		out[docID] = json.RawMessage(raw)
	}
	return out, rows.Err()
}
