package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/services/signing/storage"
)

// IssueToken inserts a token after revoking every live token for the same
// record and target. Supersession and insert commit together, so at most
// one live token exists per target at any point.
func (s *Store) IssueToken(ctx context.Context, tok storage.TokenRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE signing_tokens SET superseded_at = ?
			WHERE record_id = ? AND target_ref = ?
			  AND consumed_at IS NULL AND superseded_at IS NULL`,
			toMillis(tok.IssuedAt), tok.RecordID, tok.TargetRef,
		)
		if err != nil {
			return fmt.Errorf("supersede live tokens: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO signing_tokens (token_id, record_id, target_ref, recipient, issued_at, expires_at, consumed_at, superseded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tok.TokenID, tok.RecordID, tok.TargetRef, tok.Recipient,
			toMillis(tok.IssuedAt), toMillis(tok.ExpiresAt),
			nullableMillis(tok.ConsumedAt), nullableMillis(tok.SupersededAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("insert token: %w", err)
		}
		return nil
	})
}

// GetToken loads a token by its opaque identifier.
func (s *Store) GetToken(ctx context.Context, tokenID string) (storage.TokenRecord, error) {
	if err := s.ready(); err != nil {
		return storage.TokenRecord{}, err
	}
	return readToken(ctx, s.sqlDB, tokenID)
}

// consumeToken marks a token consumed inside an open transaction. The
// conditional update succeeds only for a live, unexpired token bound to
// the given record and target, and the caller's transaction rolls back
// the surrounding write when the token loses the race.
func consumeToken(ctx context.Context, tx *sql.Tx, tokenID, recordID, targetRef string, at time.Time) error {
	tok, err := readToken(ctx, tx, tokenID)
	if err == storage.ErrNotFound {
		return apperrors.WithMetadata(apperrors.CodeTokenNotFound,
			"signing token does not exist",
			map[string]string{"token_id": tokenID})
	}
	if err != nil {
		return err
	}
	if tok.RecordID != recordID || tok.TargetRef != targetRef {
		return apperrors.WithMetadata(apperrors.CodeTokenTargetMismatch,
			"signing token is bound to a different target",
			map[string]string{"token_id": tokenID})
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE signing_tokens SET consumed_at = ?
		WHERE token_id = ? AND consumed_at IS NULL AND superseded_at IS NULL AND expires_at > ?`,
		toMillis(at), tokenID, toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume token result: %w", err)
	}
	if affected == 1 {
		return nil
	}

	switch {
	case tok.ConsumedAt != nil:
		return apperrors.WithMetadata(apperrors.CodeTokenAlreadyConsumed,
			"signing token has already been used",
			map[string]string{"token_id": tokenID})
	case tok.SupersededAt != nil:
		return apperrors.WithMetadata(apperrors.CodeTokenSuperseded,
			"signing token has been superseded by a newer one",
			map[string]string{"token_id": tokenID})
	default:
		return apperrors.WithMetadata(apperrors.CodeTokenExpired,
			"signing token has expired",
			map[string]string{"token_id": tokenID})
	}
}

func readToken(ctx context.Context, q querier, tokenID string) (storage.TokenRecord, error) {
	var tok storage.TokenRecord
	var issuedAt, expiresAt int64
	var consumedAt, supersededAt sql.NullInt64

	err := q.QueryRowContext(ctx, `
		SELECT token_id, record_id, target_ref, recipient, issued_at, expires_at, consumed_at, superseded_at
		FROM signing_tokens WHERE token_id = ?`, tokenID,
	).Scan(&tok.TokenID, &tok.RecordID, &tok.TargetRef, &tok.Recipient,
		&issuedAt, &expiresAt, &consumedAt, &supersededAt)
	if err == sql.ErrNoRows {
		return storage.TokenRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.TokenRecord{}, fmt.Errorf("read token: %w", err)
	}
	tok.IssuedAt = fromMillis(issuedAt)
	tok.ExpiresAt = fromMillis(expiresAt)
	tok.ConsumedAt = timePtr(consumedAt)
	tok.SupersededAt = timePtr(supersededAt)
	return tok, nil
}
