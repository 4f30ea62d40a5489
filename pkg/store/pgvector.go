package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/logging"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
	Logger     *zap.Logger
}

// PGVector owns the connection pool and the chunk table. Each session indexes
// into its own collection of rows.
type PGVector struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	log    *zap.Logger
}

func NewPGVector(ctx context.Context, config VectorStoreConfig) (*PGVector, error) {
	if config.TableName == "" {
		config.TableName = "trip_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVector{
		config: config,
		pool:   pool,
		log:    logging.OrNop(config.Logger),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVector) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			document_id TEXT,
			source TEXT,
			page INTEGER,
			chunk_index INTEGER,
			content TEXT,
			embedding vector(%d),
			PRIMARY KEY (collection, id)
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Collection returns the store for one session's rows.
func (vs *PGVector) Collection(name string) *Collection {
	return &Collection{vs: vs, name: name}
}

func (vs *PGVector) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// Collection is a types.VectorStore scoped to rows with one collection key.
type Collection struct {
	vs   *PGVector
	name string
}

var _ types.VectorStore = (*Collection)(nil)

func (c *Collection) Reset(ctx context.Context) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE collection = $1", c.vs.config.TableName)
	if _, err := c.vs.pool.Exec(ctx, stmt, c.name); err != nil {
		return fmt.Errorf("failed to reset collection %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection) Store(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}

	tx, err := c.vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (collection, id, document_id, source, page, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		c.vs.config.TableName)

	batchSize := c.vs.config.BatchSize
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for j := i; j < end; j++ {
			chunk := chunks[j]
			batch.Queue(stmt,
				c.name,
				chunk.ID,
				chunk.DocumentID,
				sanitizeUTF8(chunk.Source),
				chunk.Page,
				chunk.Index,
				sanitizeUTF8(chunk.Content),
				pgvector.NewVector(vectors[j]),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.vs.log.Debug("stored chunks", zap.String("collection", c.name), zap.Int("count", len(chunks)))
	return nil
}

func (c *Collection) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.Chunk, error) {
	if limit <= 0 {
		limit = 4
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, source, page, chunk_index, content
		FROM %s
		WHERE collection = $1
		ORDER BY embedding <=> $2, id
		LIMIT $3`,
		c.vs.config.TableName)

	rows, err := c.vs.pool.Query(ctx, query, c.name, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Source,
			&chunk.Page,
			&chunk.Index,
			&chunk.Content,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// Close drops the collection's rows; the pool stays open for other sessions.
func (c *Collection) Close() {
	if err := c.Reset(context.Background()); err != nil {
		c.vs.log.Warn("failed to drop collection", zap.String("collection", c.name), zap.Error(err))
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
