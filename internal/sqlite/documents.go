package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

// documentStore implements vectorstore.Store on the shared database.
// Similarity search loads the tenant's candidate rows and ranks them
// in process with the shared cosine path.
type documentStore struct {
	store *Store
}

var _ vectorstore.Store = (*documentStore)(nil)

func (d *documentStore) UpsertChunks(ctx context.Context, tenantID string, docs []vectorstore.IndexedDocument) (int, error) {
	if err := vectorstore.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (
			tenant_id, source_type, source_id, chunk_id,
			chunk_index, total_chunks, content, title, domain, version,
			start_position, end_position, metadata,
			embedding, embedding_model, embedding_dimension,
			content_hash, fingerprint, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, source_type, source_id, chunk_id) DO UPDATE SET
			chunk_index = excluded.chunk_index,
			total_chunks = excluded.total_chunks,
			content = excluded.content,
			title = excluded.title,
			domain = excluded.domain,
			version = excluded.version,
			start_position = excluded.start_position,
			end_position = excluded.end_position,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			embedding_dimension = excluded.embedding_dimension,
			content_hash = excluded.content_hash,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshalling metadata for %s: %w", doc.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			tenantID, string(doc.SourceType), doc.SourceID, doc.ChunkID,
			doc.ChunkIndex, doc.TotalChunks, doc.Content, doc.Title, doc.Domain, doc.Version,
			doc.StartPosition, doc.EndPosition, string(metadataJSON),
			float32SliceToBytes(doc.Embedding), doc.EmbeddingModel, doc.EmbeddingDimension,
			vectorstore.HashContent(doc.Content), doc.Fingerprint, now, now,
		); err != nil {
			return 0, fmt.Errorf("upserting chunk %s: %w", doc.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return len(docs), nil
}

func (d *documentStore) GetSourceFingerprint(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (string, error) {
	if err := vectorstore.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	row := d.store.db.QueryRowContext(ctx, `
		SELECT fingerprint FROM documents
		WHERE tenant_id = ? AND source_type = ? AND source_id = ?
		LIMIT 1
	`, tenantID, string(sourceType), sourceID)

	var fingerprint string
	if err := row.Scan(&fingerprint); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("reading fingerprint: %w", err)
	}
	return fingerprint, nil
}

func (d *documentStore) DeleteBySource(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (int, error) {
	return d.deleteWhere(ctx, tenantID,
		"AND source_type = ? AND source_id = ?", string(sourceType), sourceID)
}

func (d *documentStore) DeleteBySourceType(ctx context.Context, tenantID string, sourceType chunking.SourceType) (int, error) {
	return d.deleteWhere(ctx, tenantID, "AND source_type = ?", string(sourceType))
}

func (d *documentStore) DeleteByTenant(ctx context.Context, tenantID string) (int, error) {
	return d.deleteWhere(ctx, tenantID, "")
}

func (d *documentStore) deleteWhere(ctx context.Context, tenantID, clause string, args ...any) (int, error) {
	if err := vectorstore.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}
	query := "DELETE FROM documents WHERE tenant_id = ? " + clause
	res, err := d.store.db.ExecContext(ctx, query, append([]any{tenantID}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}
	return int(affected), nil
}

func (d *documentStore) SimilaritySearch(ctx context.Context, tenantID string, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	if err := vectorstore.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	sqlQuery := `
		SELECT tenant_id, source_type, source_id, chunk_id,
		       chunk_index, total_chunks, content, title, domain, version,
		       start_position, end_position, metadata,
		       embedding, embedding_model, embedding_dimension,
		       content_hash, fingerprint, created_at, updated_at
		FROM documents WHERE tenant_id = ?`
	args := []any{tenantID}
	if opts.Filter.SourceType != nil {
		sqlQuery += " AND source_type = ?"
		args = append(args, string(*opts.Filter.SourceType))
	}
	if opts.Filter.Domain != nil {
		sqlQuery += " AND domain = ?"
		args = append(args, *opts.Filter.Domain)
	}

	rows, err := d.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var candidates []vectorstore.IndexedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return vectorstore.RankBySimilarity(candidates, query, opts), nil
}

func scanDocument(rows *sql.Rows) (vectorstore.IndexedDocument, error) {
	var doc vectorstore.IndexedDocument
	var sourceType, metadataJSON string
	var embedding []byte
	var createdAt, updatedAt sql.NullTime
	if err := rows.Scan(
		&doc.TenantID, &sourceType, &doc.SourceID, &doc.ChunkID,
		&doc.ChunkIndex, &doc.TotalChunks, &doc.Content, &doc.Title, &doc.Domain, &doc.Version,
		&doc.StartPosition, &doc.EndPosition, &metadataJSON,
		&embedding, &doc.EmbeddingModel, &doc.EmbeddingDimension,
		&doc.ContentHash, &doc.Fingerprint, &createdAt, &updatedAt,
	); err != nil {
		return doc, fmt.Errorf("scanning document: %w", err)
	}
	doc.SourceType = chunking.SourceType(sourceType)
	doc.Embedding = bytesToFloat32Slice(embedding)
	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return doc, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return doc, nil
}

// Close is a no-op: the connection belongs to the parent Store.
func (d *documentStore) Close() error { return nil }
