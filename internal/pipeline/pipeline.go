// Package pipeline ties chunking, embedding, and vector search together into
// the ingest-then-query flow the server and CLI consume.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/fukabori/internal/chunker"
	"github.com/hyperjump/fukabori/internal/embedding"
	"github.com/hyperjump/fukabori/internal/models"
	"github.com/hyperjump/fukabori/internal/vector"
)

// Pipeline chunks documents, embeds the chunks, and indexes the vectors.
// Safe for concurrent use; the index carries its own read-write lock and the
// pipeline only swaps it wholesale under Load.
type Pipeline struct {
	embedder embedding.Embedder
	index    vector.Index
	logger   *zap.Logger
}

// New assembles a pipeline. A nil logger is replaced with a no-op one.
func New(embedder embedding.Embedder, index vector.Index, logger *zap.Logger) (*Pipeline, error) {
	if embedder.Dimensions() != index.Dimensions() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, index expects %d",
			vector.ErrDimensionMismatch, embedder.Dimensions(), index.Dimensions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{embedder: embedder, index: index, logger: logger}, nil
}

// AddDocuments chunks every document under the given policy, embeds all
// chunks in a single batch, and inserts them in order. It returns the number
// of chunks indexed; zero chunks overall is a no-op, not an error.
func (p *Pipeline) AddDocuments(ctx context.Context, docs []models.Document, policy chunker.Policy, params chunker.Params) (int, error) {
	ck, err := chunker.New(policy, params)
	if err != nil {
		return 0, err
	}

	var texts []string
	var metadata []map[string]interface{}
	for docID, doc := range docs {
		pieces := ck.Split(doc.Text)
		for chunkID, piece := range pieces {
			texts = append(texts, piece)
			metadata = append(metadata, chunkMetadata(doc.Metadata, docID, chunkID, len(pieces)))
		}
	}
	if len(texts) == 0 {
		p.logger.Debug("no chunks produced", zap.Int("documents", len(docs)))
		return 0, nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}
	if err := p.index.Add(ctx, embeddings, texts, metadata); err != nil {
		return 0, fmt.Errorf("index %d chunks: %w", len(texts), err)
	}
	p.logger.Info("documents indexed",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(texts)),
		zap.String("policy", string(policy)))
	return len(texts), nil
}

// chunkMetadata merges the document's metadata with the chunk's position
// fields. The position fields win on key collision.
func chunkMetadata(docMeta map[string]interface{}, docID, chunkID, total int) map[string]interface{} {
	merged := make(map[string]interface{}, len(docMeta)+3)
	for k, v := range docMeta {
		merged[k] = v
	}
	merged["doc_id"] = docID
	merged["chunk_id"] = chunkID
	merged["total_chunks"] = total
	return merged
}

// Search embeds the query and returns the k nearest chunks with the bounded
// score 1/(1+distance). A negative threshold disables distance filtering.
func (p *Pipeline) Search(ctx context.Context, query string, k int, threshold float64) ([]*models.SearchResult, error) {
	emb, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := p.index.Search(ctx, emb, k, threshold)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = &models.SearchResult{
			Text:     h.Text,
			Distance: h.Distance,
			Score:    1 / (1 + h.Distance),
			Metadata: h.Metadata,
		}
	}
	return results, nil
}

// Save persists the index snapshot to dir.
func (p *Pipeline) Save(dir string) error {
	if err := p.index.Save(dir); err != nil {
		return fmt.Errorf("save index snapshot: %w", err)
	}
	p.logger.Info("snapshot saved", zap.String("dir", dir), zap.Int("entries", p.index.Size()))
	return nil
}

// Load replaces the pipeline's index with the one recorded in the snapshot,
// whatever its variant, as long as its dimension matches the embedder.
func (p *Pipeline) Load(dir string) error {
	ix, err := vector.Open(dir)
	if err != nil {
		return err
	}
	if ix.Dimensions() != p.embedder.Dimensions() {
		return fmt.Errorf("%w: snapshot has %d dimensions, embedder produces %d",
			vector.ErrDimensionMismatch, ix.Dimensions(), p.embedder.Dimensions())
	}
	p.index = ix
	p.logger.Info("snapshot loaded",
		zap.String("dir", dir),
		zap.String("variant", string(ix.Variant())),
		zap.Int("entries", ix.Size()))
	return nil
}

// Size returns the number of indexed chunks.
func (p *Pipeline) Size() int {
	return p.index.Size()
}

// Variant returns the structural variant of the underlying index.
func (p *Pipeline) Variant() vector.Variant {
	return p.index.Variant()
}

// Close releases the embedder's resources.
func (p *Pipeline) Close() error {
	return p.embedder.Close()
}
