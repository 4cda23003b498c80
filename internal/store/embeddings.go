package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
	"github.com/azimhamza/safe-replies-backend-sub001/pkg/similarity"
	"github.com/google/uuid"
)

const (
	allowedPatternsCollection    = "allowed_patterns"
	autoActionPatternsCollection = "auto_action_patterns"
)

// Embedder generates an embedding vector for a piece of text. The LLM client
// satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingIndex keeps the two curated similarity corpora in MongoDB and
// answers nearest-neighbor lookups with a brute-force cosine scan. Corpora
// are owner-scoped and small (hand-reviewed patterns), so a scan per lookup
// is fine; swap in a vector index if that stops being true.
type EmbeddingIndex struct {
	db       *mongo.Database
	embedder Embedder
}

func NewEmbeddingIndex(db *mongo.Database, embedder Embedder) *EmbeddingIndex {
	return &EmbeddingIndex{db: db, embedder: embedder}
}

func (e *EmbeddingIndex) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.Embed(ctx, text)
}

func (e *EmbeddingIndex) loadPatterns(ctx context.Context, collection string, owner models.OwnerRef) ([]models.EmbeddingPattern, error) {
	cursor, err := e.db.Collection(collection).Find(ctx, bson.M{"owner_key": owner.Key()})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var patterns []models.EmbeddingPattern
	if err = cursor.All(ctx, &patterns); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", collection, err)
	}
	return patterns, nil
}

// FindAllowedSimilar returns the closest allowed-corpus pattern at or above
// minSimilarity, if any.
func (e *EmbeddingIndex) FindAllowedSimilar(ctx context.Context, owner models.OwnerRef, vec []float32, minSimilarity float64) (*moderation.SimilarMatch, bool, error) {
	patterns, err := e.loadPatterns(ctx, allowedPatternsCollection, owner)
	if err != nil {
		return nil, false, err
	}

	var best *moderation.SimilarMatch
	for _, p := range patterns {
		sim := similarity.Cosine(vec, p.Embedding)
		if sim < minSimilarity {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &moderation.SimilarMatch{PatternID: p.ID, Text: p.Text, Similarity: sim}
		}
	}
	return best, best != nil, nil
}

// FindAutoActionSimilar returns the closest auto-action pattern at or above
// minSimilarity, if any, carrying the action chosen when the pattern was
// reviewed.
func (e *EmbeddingIndex) FindAutoActionSimilar(ctx context.Context, owner models.OwnerRef, vec []float32, minSimilarity float64) (*moderation.AutoActionMatch, bool, error) {
	patterns, err := e.loadPatterns(ctx, autoActionPatternsCollection, owner)
	if err != nil {
		return nil, false, err
	}

	var best *moderation.AutoActionMatch
	var bestSim float64
	for _, p := range patterns {
		sim := similarity.Cosine(vec, p.Embedding)
		if sim < minSimilarity {
			continue
		}
		if best != nil && sim <= bestSim {
			continue
		}
		m := &moderation.AutoActionMatch{
			PatternID:  p.ID,
			Text:       p.Text,
			Similarity: sim,
			Action:     models.ActionDeleted,
			Hide:       p.Action == "hide",
		}
		if m.Hide {
			m.Action = models.ActionFlagged
		}
		best, bestSim = m, sim
	}
	return best, best != nil, nil
}

// AddAllowedPattern embeds the text and stores it in the allowed corpus.
func (e *EmbeddingIndex) AddAllowedPattern(ctx context.Context, owner models.OwnerRef, text string) (*models.EmbeddingPattern, error) {
	return e.addPattern(ctx, allowedPatternsCollection, owner, text, "")
}

// AddAutoActionPattern embeds the text and stores it with its action
// ("hide" or "delete") in the auto-action corpus.
func (e *EmbeddingIndex) AddAutoActionPattern(ctx context.Context, owner models.OwnerRef, text, action string) (*models.EmbeddingPattern, error) {
	if action != "hide" && action != "delete" {
		return nil, fmt.Errorf("invalid auto-action %q", action)
	}
	return e.addPattern(ctx, autoActionPatternsCollection, owner, text, action)
}

func (e *EmbeddingIndex) addPattern(ctx context.Context, collection string, owner models.OwnerRef, text, action string) (*models.EmbeddingPattern, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding pattern: %w", err)
	}

	pattern := &models.EmbeddingPattern{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		OwnerKey:  owner.Key(),
		Text:      text,
		Embedding: vec,
		Action:    action,
	}
	if _, err := e.db.Collection(collection).InsertOne(ctx, pattern); err != nil {
		return nil, fmt.Errorf("saving pattern: %w", err)
	}
	return pattern, nil
}

// RemovePattern deletes a pattern from either corpus.
func (e *EmbeddingIndex) RemovePattern(ctx context.Context, owner models.OwnerRef, id string, autoAction bool) (bool, error) {
	collection := allowedPatternsCollection
	if autoAction {
		collection = autoActionPatternsCollection
	}
	res, err := e.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id, "owner_key": owner.Key()})
	if err != nil {
		return false, fmt.Errorf("removing pattern: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ListPatterns returns an owner's corpus entries, embeddings omitted from the
// JSON form.
func (e *EmbeddingIndex) ListPatterns(ctx context.Context, owner models.OwnerRef, autoAction bool) ([]models.EmbeddingPattern, error) {
	collection := allowedPatternsCollection
	if autoAction {
		collection = autoActionPatternsCollection
	}
	return e.loadPatterns(ctx, collection, owner)
}
