package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/unichat-ai/unichat/internal/model"
	"github.com/unichat-ai/unichat/internal/pkg/dbutil"
	appErr "github.com/unichat-ai/unichat/internal/pkg/errors"
)

var chunkFields = []string{"id", "document_id", "idx", "content", "tokens", "ctime"}

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// BatchCreate inserts chunks in one statement. Callers assign gapless
// zero-based idx values before the call.
func (r *ChunkRepo) BatchCreate(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, map[string]interface{}{
			"id":          chunk.ID,
			"document_id": chunk.DocumentID,
			"idx":         chunk.Idx,
			"content":     chunk.Text,
			"tokens":      chunk.Tokens,
			"ctime":       chunk.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err = r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		// the parent document can be deleted between reads
		if dbutil.IsForeignKeyViolation(err) {
			return appErr.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, docID string) ([]*model.Chunk, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_orderby":    "idx asc",
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChunks(rows)
}

// FindByIDs returns chunks in the order of the input ids; unknown ids are
// skipped.
func (r *ChunkRepo) FindByIDs(ctx context.Context, chunkIDs []string) ([]*model.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	where := map[string]interface{}{
		"id in": chunkIDs,
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Chunk, len(found))
	for _, chunk := range found {
		byID[chunk.ID] = chunk
	}
	ordered := make([]*model.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if chunk, ok := byID[id]; ok {
			ordered = append(ordered, chunk)
		}
	}
	return ordered, nil
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, docID string) (int64, error) {
	where := map[string]interface{}{
		"document_id": docID,
	}
	sqlStr, args, err := builder.BuildDelete("chunks", where)
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

func (r *ChunkRepo) CountByDocument(ctx context.Context, docID string) (int64, error) {
	query, args := dbutil.Finalize(`SELECT COUNT(1) FROM chunks WHERE document_id = ?`, []interface{}{docID})
	row := r.db.QueryRowContext(ctx, query, args...)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChunkRepo) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chunks`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func collectChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Idx, &chunk.Text, &chunk.Tokens, &chunk.Ctime); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}
