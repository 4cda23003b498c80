package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/google/uuid"
)

// EvidenceStore appends and queries moderation audit rows in PostgreSQL.
type EvidenceStore struct {
	db *sql.DB
}

func NewEvidenceStore(db *sql.DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

// Insert appends one audit row. Rows are never updated or deleted.
func (s *EvidenceStore) Insert(ctx context.Context, rec *models.EvidenceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence_records (
			id, created_at, evaluation_id, account_id, comment_id, commenter_id,
			comment_text, category, risk_score, action, reason, rationale, degraded
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.CreatedAt, rec.EvaluationID, rec.AccountID, rec.CommentID,
		rec.CommenterID, rec.CommentText, rec.Category, rec.RiskScore,
		rec.Action, rec.Reason, rec.Rationale, rec.Degraded,
	)
	if err != nil {
		return fmt.Errorf("inserting evidence record: %w", err)
	}
	return nil
}

// ListByAccount returns an account's most recent evidence rows.
func (s *EvidenceStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.EvidenceRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, evaluation_id, account_id, comment_id, commenter_id,
		       comment_text, category, risk_score, action, reason, rationale, degraded
		FROM evidence_records
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying evidence records: %w", err)
	}
	defer rows.Close()
	return scanEvidence(rows)
}

// ListByCommenter returns a commenter's evidence rows on one account, the
// audit backing for a block or report decision.
func (s *EvidenceStore) ListByCommenter(ctx context.Context, accountID, commenterID string) ([]models.EvidenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, evaluation_id, account_id, comment_id, commenter_id,
		       comment_text, category, risk_score, action, reason, rationale, degraded
		FROM evidence_records
		WHERE account_id = $1 AND commenter_id = $2
		ORDER BY created_at DESC`, accountID, commenterID)
	if err != nil {
		return nil, fmt.Errorf("querying evidence records: %w", err)
	}
	defer rows.Close()
	return scanEvidence(rows)
}

// DeleteOlderThan prunes audit rows past the retention window. Returns the
// number removed.
func (s *EvidenceStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evidence_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning evidence records: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanEvidence(rows *sql.Rows) ([]models.EvidenceRecord, error) {
	var recs []models.EvidenceRecord
	for rows.Next() {
		var rec models.EvidenceRecord
		var rationale sql.NullString
		err := rows.Scan(
			&rec.ID, &rec.CreatedAt, &rec.EvaluationID, &rec.AccountID,
			&rec.CommentID, &rec.CommenterID, &rec.CommentText, &rec.Category,
			&rec.RiskScore, &rec.Action, &rec.Reason, &rationale, &rec.Degraded,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning evidence record: %w", err)
		}
		rec.Rationale = rationale.String
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading evidence records: %w", err)
	}
	return recs, nil
}
