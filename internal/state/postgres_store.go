package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opTimeout = 5 * time.Second

const createRecordsTable = `CREATE TABLE IF NOT EXISTS webshop_records (
	tbl  TEXT   NOT NULL,
	id   BIGINT NOT NULL,
	body BYTEA  NOT NULL,
	PRIMARY KEY (tbl, id)
)`

// PostgresDB implements DB on a single records table in PostgreSQL.
type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createRecordsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &PostgresDB{pool: pool}, nil
}

func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresDB) Table(name string) (Table, error) {
	return &postgresTable{pool: p.pool, name: name}, nil
}

type postgresTable struct {
	pool *pgxpool.Pool
	name string
}

func (t *postgresTable) Get(id int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var body []byte
	err := t.pool.QueryRow(ctx, `SELECT body FROM webshop_records WHERE tbl=$1 AND id=$2`, t.name, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return body, err
}

func (t *postgresTable) Put(id int64, val []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := t.pool.Exec(ctx,
		`INSERT INTO webshop_records(tbl, id, body) VALUES ($1, $2, $3)
		 ON CONFLICT (tbl, id) DO UPDATE SET body = EXCLUDED.body`,
		t.name, id, val,
	)
	return err
}

func (t *postgresTable) Range(fn func(id int64, val []byte) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	rows, err := t.pool.Query(ctx, `SELECT id, body FROM webshop_records WHERE tbl=$1 ORDER BY id`, t.name)
	if err != nil {
		return err
	}
	type rec struct {
		id   int64
		body []byte
	}
	var recs []rec
	for rows.Next() {
		var r rec
		if err := rows.Scan(&r.id, &r.body); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	// Callbacks run after the rows are released so they may use the pool.
	for _, r := range recs {
		if err := fn(r.id, r.body); err != nil {
			return err
		}
	}
	return nil
}

func (t *postgresTable) Truncate() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := t.pool.Exec(ctx, `DELETE FROM webshop_records WHERE tbl=$1`, t.name)
	return err
}
