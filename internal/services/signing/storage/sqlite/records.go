package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/services/signing/storage"
)

// PutRecord inserts a record together with its signer slots.
func (s *Store) PutRecord(ctx context.Context, rec storage.SignableRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO signable_records (id, kind, status, payload_json, created_at, updated_at, finalized_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Kind, rec.Status, rec.PayloadJSON,
			toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt), nullableMillis(rec.FinalizedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("insert record: %w", err)
		}

		for _, slot := range rec.Slots {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO signer_slots (record_id, role, position, signature_image, signed_at, signed_via)
				VALUES (?, ?, ?, ?, ?, ?)`,
				rec.ID, slot.Role, slot.Position, slot.SignatureImage,
				nullableMillis(slot.SignedAt), slot.SignedVia,
			)
			if err != nil {
				if isUniqueConstraintError(err) {
					return storage.ErrConflict
				}
				return fmt.Errorf("insert signer slot: %w", err)
			}
		}
		return nil
	})
}

// GetRecord loads a record and its slots.
func (s *Store) GetRecord(ctx context.Context, recordID string) (storage.SignableRecord, error) {
	if err := s.ready(); err != nil {
		return storage.SignableRecord{}, err
	}
	return readRecord(ctx, s.sqlDB, recordID)
}

// SubmitRecord moves a draft record into awaiting_signatures.
func (s *Store) SubmitRecord(ctx context.Context, recordID string, at time.Time) (storage.SignableRecord, error) {
	return s.transitionRecord(ctx, recordID, at, storage.RecordStatusDraft, storage.RecordStatusAwaiting)
}

// VoidRecord moves a draft or awaiting record into the voided terminal state.
func (s *Store) VoidRecord(ctx context.Context, recordID string, at time.Time) (storage.SignableRecord, error) {
	if err := s.ready(); err != nil {
		return storage.SignableRecord{}, err
	}

	var out storage.SignableRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		status, err := recordStatus(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if status != storage.RecordStatusDraft && status != storage.RecordStatusAwaiting {
			return apperrors.WithMetadata(apperrors.CodeRecordInvalidStatus,
				"record cannot be voided from its current status",
				map[string]string{"record_id": recordID, "status": status})
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE signable_records SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			storage.RecordStatusVoided, toMillis(at), recordID, status,
		)
		if err != nil {
			return fmt.Errorf("void record: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("void record result: %w", err)
		}
		if affected == 0 {
			return apperrors.WithMetadata(apperrors.CodeRecordInvalidStatus,
				"record cannot be voided from its current status",
				map[string]string{"record_id": recordID})
		}

		out, err = readRecord(ctx, tx, recordID)
		return err
	})
	if err != nil {
		return storage.SignableRecord{}, err
	}
	return out, nil
}

// SignSlot applies one signature. When args.TokenID is set, the token is
// consumed in the same transaction, and a completion check follows the
// slot write so the last signature finalizes the record atomically.
func (s *Store) SignSlot(ctx context.Context, args storage.SignSlotArgs) (storage.SignableRecord, error) {
	if err := s.ready(); err != nil {
		return storage.SignableRecord{}, err
	}

	var out storage.SignableRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		status, err := recordStatus(ctx, tx, args.RecordID)
		if err != nil {
			return err
		}
		switch status {
		case storage.RecordStatusAwaiting:
		case storage.RecordStatusDraft:
			// The first signature submits the record.
			_, err := tx.ExecContext(ctx, `
				UPDATE signable_records SET status = ?, updated_at = ?
				WHERE id = ? AND status = ?`,
				storage.RecordStatusAwaiting, toMillis(args.At), args.RecordID, storage.RecordStatusDraft,
			)
			if err != nil {
				return fmt.Errorf("submit record on first signature: %w", err)
			}
		default:
			return apperrors.WithMetadata(apperrors.CodeRecordNotSignable,
				"record is not accepting signatures",
				map[string]string{"record_id": args.RecordID, "status": status})
		}

		if args.TokenID != "" {
			if err := consumeToken(ctx, tx, args.TokenID, args.RecordID, args.Role, args.At); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE signer_slots SET signature_image = ?, signed_at = ?, signed_via = ?
			WHERE record_id = ? AND role = ? AND signed_at IS NULL`,
			args.SignatureImage, toMillis(args.At), args.Via, args.RecordID, args.Role,
		)
		if err != nil {
			return fmt.Errorf("sign slot: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sign slot result: %w", err)
		}
		if affected == 0 {
			return diagnoseSlotWrite(ctx, tx, args.RecordID, args.Role)
		}

		var unsigned int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM signer_slots WHERE record_id = ? AND signed_at IS NULL`,
			args.RecordID,
		).Scan(&unsigned)
		if err != nil {
			return fmt.Errorf("count unsigned slots: %w", err)
		}

		if unsigned == 0 {
			_, err = tx.ExecContext(ctx, `
				UPDATE signable_records SET status = ?, finalized_at = ?, updated_at = ?
				WHERE id = ? AND status = ? AND finalized_at IS NULL`,
				storage.RecordStatusCompleted, toMillis(args.At), toMillis(args.At),
				args.RecordID, storage.RecordStatusAwaiting,
			)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE signable_records SET updated_at = ? WHERE id = ?`,
				toMillis(args.At), args.RecordID,
			)
		}
		if err != nil {
			return fmt.Errorf("update record after signature: %w", err)
		}

		out, err = readRecord(ctx, tx, args.RecordID)
		return err
	})
	if err != nil {
		return storage.SignableRecord{}, err
	}
	return out, nil
}

func (s *Store) transitionRecord(ctx context.Context, recordID string, at time.Time, fromStatus, toStatus string) (storage.SignableRecord, error) {
	if err := s.ready(); err != nil {
		return storage.SignableRecord{}, err
	}

	var out storage.SignableRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE signable_records SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			toStatus, toMillis(at), recordID, fromStatus,
		)
		if err != nil {
			return fmt.Errorf("transition record: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("transition record result: %w", err)
		}
		if affected == 0 {
			status, err := recordStatus(ctx, tx, recordID)
			if err != nil {
				return err
			}
			return apperrors.WithMetadata(apperrors.CodeRecordInvalidStatus,
				"record is not in a status that allows this transition",
				map[string]string{"record_id": recordID, "status": status})
		}

		out, err = readRecord(ctx, tx, recordID)
		return err
	})
	if err != nil {
		return storage.SignableRecord{}, err
	}
	return out, nil
}

// diagnoseSlotWrite explains a zero-row slot update. The record is known
// to exist at this point, so the slot is either missing or already signed.
func diagnoseSlotWrite(ctx context.Context, tx *sql.Tx, recordID, role string) error {
	var signedAt sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT signed_at FROM signer_slots WHERE record_id = ? AND role = ?`,
		recordID, role,
	).Scan(&signedAt)
	if err == sql.ErrNoRows {
		return apperrors.WithMetadata(apperrors.CodeSlotNotFound,
			"no signer slot exists for this role",
			map[string]string{"record_id": recordID, "role": role})
	}
	if err != nil {
		return fmt.Errorf("diagnose slot write: %w", err)
	}
	return apperrors.WithMetadata(apperrors.CodeSlotAlreadySigned,
		"signer slot already holds a signature",
		map[string]string{"record_id": recordID, "role": role})
}

func recordStatus(ctx context.Context, q querier, recordID string) (string, error) {
	var status string
	err := q.QueryRowContext(ctx, `
		SELECT status FROM signable_records WHERE id = ?`, recordID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", apperrors.WithMetadata(apperrors.CodeRecordNotFound,
			"record does not exist",
			map[string]string{"record_id": recordID})
	}
	if err != nil {
		return "", fmt.Errorf("read record status: %w", err)
	}
	return status, nil
}

func readRecord(ctx context.Context, q querier, recordID string) (storage.SignableRecord, error) {
	var rec storage.SignableRecord
	var createdAt, updatedAt int64
	var finalizedAt sql.NullInt64

	err := q.QueryRowContext(ctx, `
		SELECT id, kind, status, payload_json, created_at, updated_at, finalized_at
		FROM signable_records WHERE id = ?`, recordID,
	).Scan(&rec.ID, &rec.Kind, &rec.Status, &rec.PayloadJSON, &createdAt, &updatedAt, &finalizedAt)
	if err == sql.ErrNoRows {
		return storage.SignableRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SignableRecord{}, fmt.Errorf("read record: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.FinalizedAt = timePtr(finalizedAt)

	rows, err := q.QueryContext(ctx, `
		SELECT record_id, role, position, signature_image, signed_at, signed_via
		FROM signer_slots WHERE record_id = ? ORDER BY position`, recordID)
	if err != nil {
		return storage.SignableRecord{}, fmt.Errorf("read signer slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slot storage.SignerSlotRecord
		var signedAt sql.NullInt64
		if err := rows.Scan(&slot.RecordID, &slot.Role, &slot.Position, &slot.SignatureImage, &signedAt, &slot.SignedVia); err != nil {
			return storage.SignableRecord{}, fmt.Errorf("scan signer slot: %w", err)
		}
		slot.SignedAt = timePtr(signedAt)
		rec.Slots = append(rec.Slots, slot)
	}
	if err := rows.Err(); err != nil {
		return storage.SignableRecord{}, fmt.Errorf("iterate signer slots: %w", err)
	}
	return rec, nil
}
