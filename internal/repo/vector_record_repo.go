package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/unichat-ai/unichat/internal/model"
	"github.com/unichat-ai/unichat/internal/pkg/dbutil"
)

// VectorRecordRepo persists embedding points for the in-process index
// backend. The qdrant backend keeps its own storage and bypasses this.
type VectorRecordRepo struct {
	db *sql.DB
}

func NewVectorRecordRepo(db *sql.DB) *VectorRecordRepo {
	return &VectorRecordRepo{db: db}
}

func (r *VectorRecordRepo) Upsert(ctx context.Context, records []*model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	const query = `
		INSERT INTO vector_records (point_id, chunk_id, namespace, embedding, active, payload, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (point_id) DO UPDATE SET
			chunk_id = EXCLUDED.chunk_id,
			namespace = EXCLUDED.namespace,
			embedding = EXCLUDED.embedding,
			active = EXCLUDED.active,
			payload = EXCLUDED.payload,
			ctime = EXCLUDED.ctime
	`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, record := range records {
		payload, err := json.Marshal(record.Payload)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			record.PointID,
			record.ChunkID,
			record.Namespace,
			pgvector.NewVector(record.Embedding),
			record.Active,
			payload,
			record.Ctime,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByNamespace loads every point in a namespace, embeddings included.
// An empty namespace spans all namespaces; activeOnly skips soft-deleted
// points.
func (r *VectorRecordRepo) ListByNamespace(ctx context.Context, namespace string, activeOnly bool) ([]*model.VectorRecord, error) {
	query := `SELECT point_id, chunk_id, namespace, embedding, active, payload, ctime FROM vector_records WHERE 1 = 1`
	var args []interface{}
	if namespace != "" {
		query += ` AND namespace = ?`
		args = append(args, namespace)
	}
	if activeOnly {
		query += ` AND active = ?`
		args = append(args, true)
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*model.VectorRecord
	for rows.Next() {
		record, err := scanVectorRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SetActive flips the soft-delete flag. Re-flipping an already-set flag
// still counts as affected, so the call is idempotent for callers.
func (r *VectorRecordRepo) SetActive(ctx context.Context, pointIDs []string, active bool) (int64, error) {
	if len(pointIDs) == 0 {
		return 0, nil
	}
	where := map[string]interface{}{
		"point_id in": pointIDs,
	}
	update := map[string]interface{}{
		"active": active,
	}
	sqlStr, args, err := builder.BuildUpdate("vector_records", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *VectorRecordRepo) Delete(ctx context.Context, pointIDs []string) (int64, error) {
	if len(pointIDs) == 0 {
		return 0, nil
	}
	where := map[string]interface{}{
		"point_id in": pointIDs,
	}
	sqlStr, args, err := builder.BuildDelete("vector_records", where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *VectorRecordRepo) Stats(ctx context.Context, namespace string) (total int64, active int64, err error) {
	query := `SELECT COUNT(1), COUNT(1) FILTER (WHERE active) FROM vector_records`
	var args []interface{}
	if namespace != "" {
		query += ` WHERE namespace = ?`
		args = append(args, namespace)
	}
	query, args = dbutil.Finalize(query, args)
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&total, &active); err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

// ListDangling returns points whose chunk no longer exists. The audit job
// uses this to spot cleanup gaps.
func (r *VectorRecordRepo) ListDangling(ctx context.Context, limit int) ([]string, error) {
	query, args := dbutil.Finalize(`
		SELECT v.point_id
		FROM vector_records v
		LEFT JOIN chunks c ON v.chunk_id = c.id
		WHERE c.id IS NULL
		LIMIT ?
	`, []interface{}{limit})
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pointIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pointIDs = append(pointIDs, id)
	}
	return pointIDs, rows.Err()
}

func scanVectorRecord(rows *sql.Rows) (*model.VectorRecord, error) {
	var record model.VectorRecord
	var embedding pgvector.Vector
	var payload []byte
	if err := rows.Scan(&record.PointID, &record.ChunkID, &record.Namespace, &embedding, &record.Active, &payload, &record.Ctime); err != nil {
		return nil, err
	}
	record.Embedding = embedding.Slice()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &record.Payload); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
