package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"assessync/internal/domain/entity"
	"assessync/internal/domain/resource"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// querier общая часть *pgxpool.Pool и pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ResourceRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewResourceRepository(storage *Storage, log *slog.Logger) *ResourceRepository {
	return &ResourceRepository{
		pool: storage.Pool(),
		log:  log.With(slog.String("component", "resource_repository")),
	}
}

const selectColumns = `id, collection, coalesce(natural_key, ''), data, created_at, updated_at`

func (r *ResourceRepository) List(ctx context.Context, collection string) ([]resource.Resource, error) {
	query := `SELECT ` + selectColumns + `
		FROM resources
		WHERE collection = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, collection)
	if err != nil {
		r.log.Error("failed to list resources", "collection", collection, "error", err)
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []resource.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

func (r *ResourceRepository) Get(ctx context.Context, collection, id string) (resource.Resource, error) {
	return get(ctx, r.pool, collection, id)
}

// Insert выполняется в транзакции: ON CONFLICT по уникальному индексу
// (collection, natural_key) не даёт двум параллельным запросам создать дубль.
func (r *ResourceRepository) Insert(ctx context.Context, collection, key string, data entity.Payload) (resource.Resource, bool, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return resource.Resource{}, false, fmt.Errorf("%w: %v", resource.ErrInvalidData, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return resource.Resource{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `INSERT INTO resources (collection, natural_key, data)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (collection, natural_key) DO NOTHING
		RETURNING ` + selectColumns

	res, err := scanResource(tx.QueryRow(ctx, query, collection, key, raw))
	created := true
	if errors.Is(err, resource.ErrNotFound) {
		created = false
		res, err = findByKey(ctx, tx, collection, key)
	}
	if err != nil {
		r.log.Error("failed to insert resource", "collection", collection, "error", err)
		return resource.Resource{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return resource.Resource{}, false, fmt.Errorf("commit: %w", err)
	}
	return res, created, nil
}

func (r *ResourceRepository) Update(ctx context.Context, collection, id, key string, data entity.Payload) (resource.Resource, error) {
	numID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return resource.Resource{}, resource.ErrNotFound
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return resource.Resource{}, fmt.Errorf("%w: %v", resource.ErrInvalidData, err)
	}

	query := `UPDATE resources
		SET natural_key = NULLIF($3, ''), data = $4, updated_at = $5
		WHERE collection = $1 AND id = $2
		RETURNING ` + selectColumns

	res, err := scanResource(r.pool.QueryRow(ctx, query, collection, numID, key, raw, time.Now().UTC()))
	if err != nil && !errors.Is(err, resource.ErrNotFound) {
		r.log.Error("failed to update resource", "collection", collection, "id", id, "error", err)
	}
	return res, err
}

func (r *ResourceRepository) Delete(ctx context.Context, collection, id string) error {
	numID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return resource.ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE collection = $1 AND id = $2`, collection, numID)
	if err != nil {
		r.log.Error("failed to delete resource", "collection", collection, "id", id, "error", err)
		return fmt.Errorf("delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return resource.ErrNotFound
	}
	return nil
}

func get(ctx context.Context, q querier, collection, id string) (resource.Resource, error) {
	numID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return resource.Resource{}, resource.ErrNotFound
	}

	query := `SELECT ` + selectColumns + `
		FROM resources
		WHERE collection = $1 AND id = $2`
	return scanResource(q.QueryRow(ctx, query, collection, numID))
}

func findByKey(ctx context.Context, q querier, collection, key string) (resource.Resource, error) {
	query := `SELECT ` + selectColumns + `
		FROM resources
		WHERE collection = $1 AND natural_key = $2`
	return scanResource(q.QueryRow(ctx, query, collection, key))
}

func scanResource(row pgx.Row) (resource.Resource, error) {
	var (
		res resource.Resource
		id  int64
		raw []byte
	)
	err := row.Scan(&id, &res.Collection, &res.NaturalKey, &raw, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return resource.Resource{}, resource.ErrNotFound
	}
	if err != nil {
		return resource.Resource{}, fmt.Errorf("scan resource: %w", err)
	}

	res.ID = strconv.FormatInt(id, 10)
	if err := json.Unmarshal(raw, &res.Data); err != nil {
		return resource.Resource{}, fmt.Errorf("decode resource %s/%s: %w", res.Collection, res.ID, err)
	}
	if res.Data == nil {
		res.Data = entity.Payload{}
	}
	return res, nil
}
