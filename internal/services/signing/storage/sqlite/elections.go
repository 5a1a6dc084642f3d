package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/services/signing/storage"
)

// PutElection inserts an election header with its initial candidates.
func (s *Store) PutElection(ctx context.Context, e storage.ElectionRecord, candidates []storage.CandidateRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO elections (id, title, status, created_at, updated_at, opened_at, closed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, e.Status, toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
			nullableMillis(e.OpenedAt), nullableMillis(e.ClosedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("insert election: %w", err)
		}

		for _, candidate := range candidates {
			if err := insertCandidate(ctx, tx, candidate); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetElection loads an election header.
func (s *Store) GetElection(ctx context.Context, electionID string) (storage.ElectionRecord, error) {
	if err := s.ready(); err != nil {
		return storage.ElectionRecord{}, err
	}
	return readElection(ctx, s.sqlDB, electionID)
}

// ListCandidates returns candidates ordered by registration position.
func (s *Store) ListCandidates(ctx context.Context, electionID string) ([]storage.CandidateRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT election_id, id, name, department, position
		FROM election_candidates WHERE election_id = ? ORDER BY position`, electionID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []storage.CandidateRecord
	for rows.Next() {
		var candidate storage.CandidateRecord
		if err := rows.Scan(&candidate.ElectionID, &candidate.ID, &candidate.Name, &candidate.Department, &candidate.Position); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// ListVoters returns registered voters ordered by registration time.
func (s *Store) ListVoters(ctx context.Context, electionID string) ([]storage.VoterRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT election_id, id, contact, token_id, voted_at, created_at
		FROM election_voters WHERE election_id = ? ORDER BY created_at, id`, electionID)
	if err != nil {
		return nil, fmt.Errorf("list voters: %w", err)
	}
	defer rows.Close()

	var voters []storage.VoterRecord
	for rows.Next() {
		var voter storage.VoterRecord
		var votedAt sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&voter.ElectionID, &voter.ID, &voter.Contact, &voter.TokenID, &votedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan voter: %w", err)
		}
		voter.VotedAt = timePtr(votedAt)
		voter.CreatedAt = fromMillis(createdAt)
		voters = append(voters, voter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voters: %w", err)
	}
	return voters, nil
}

// AddCandidate registers one candidate while the election is in draft.
func (s *Store) AddCandidate(ctx context.Context, candidate storage.CandidateRecord, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireElectionStatus(ctx, tx, candidate.ElectionID, storage.ElectionStatusDraft, apperrors.CodeElectionNotDraft,
			"candidates can only be added while the election is in draft"); err != nil {
			return err
		}
		count, err := candidateCount(ctx, tx, candidate.ElectionID)
		if err != nil {
			return err
		}
		if count >= storage.ElectionMaxCandidates {
			return apperrors.WithMetadata(apperrors.CodeElectionCandidateCount,
				"election already has the maximum number of candidates",
				map[string]string{"election_id": candidate.ElectionID, "count": fmt.Sprintf("%d", count)})
		}
		if err := insertCandidate(ctx, tx, candidate); err != nil {
			return err
		}
		return touchElection(ctx, tx, candidate.ElectionID, at)
	})
}

// AddVoter registers one voter while the election is in draft.
func (s *Store) AddVoter(ctx context.Context, voter storage.VoterRecord, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		// The voter roster may grow until voting closes.
		status, err := electionStatus(ctx, tx, voter.ElectionID)
		if err != nil {
			return err
		}
		if status == storage.ElectionStatusClosed {
			return apperrors.WithMetadata(apperrors.CodeElectionNotOpen,
				"voters cannot be registered after voting closes",
				map[string]string{"election_id": voter.ElectionID, "status": status})
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO election_voters (election_id, id, contact, token_id, voted_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			voter.ElectionID, voter.ID, voter.Contact, voter.TokenID,
			nullableMillis(voter.VotedAt), toMillis(voter.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("insert voter: %w", err)
		}
		return touchElection(ctx, tx, voter.ElectionID, at)
	})
}

// OpenElection moves a draft election into voting_open.
// SetVoterToken records the voter's current ballot token reference.
// Reissuing a ballot link overwrites the prior reference.
func (s *Store) SetVoterToken(ctx context.Context, electionID, voterID, tokenID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE election_voters SET token_id = ? WHERE election_id = ? AND id = ?`,
		tokenID, electionID, voterID,
	)
	if err != nil {
		return fmt.Errorf("set voter token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set voter token result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) OpenElection(ctx context.Context, electionID string, at time.Time) (storage.ElectionRecord, error) {
	if err := s.ready(); err != nil {
		return storage.ElectionRecord{}, err
	}

	var out storage.ElectionRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireElectionStatus(ctx, tx, electionID, storage.ElectionStatusDraft, apperrors.CodeElectionNotDraft,
			"voting can only open from draft"); err != nil {
			return err
		}

		// The count guard runs in the same transaction as the status flip
		// so a concurrent AddCandidate cannot slip past it.
		count, err := candidateCount(ctx, tx, electionID)
		if err != nil {
			return err
		}
		if count < storage.ElectionMinCandidates || count > storage.ElectionMaxCandidates {
			return apperrors.WithMetadata(apperrors.CodeElectionCandidateCount,
				"elections require 2 to 10 candidates",
				map[string]string{"election_id": electionID, "count": fmt.Sprintf("%d", count)})
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE elections SET status = ?, opened_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			storage.ElectionStatusOpen, toMillis(at), toMillis(at),
			electionID, storage.ElectionStatusDraft,
		)
		if err != nil {
			return fmt.Errorf("open election: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("open election result: %w", err)
		}
		if affected == 0 {
			status, err := electionStatus(ctx, tx, electionID)
			if err != nil {
				return err
			}
			return apperrors.WithMetadata(apperrors.CodeElectionNotDraft,
				"voting can only open from draft",
				map[string]string{"election_id": electionID, "status": status})
		}

		out, err = readElection(ctx, tx, electionID)
		return err
	})
	if err != nil {
		return storage.ElectionRecord{}, err
	}
	return out, nil
}

func candidateCount(ctx context.Context, tx *sql.Tx, electionID string) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM election_candidates WHERE election_id = ?`, electionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return count, nil
}

// CloseElection moves an open election into voting_closed.
func (s *Store) CloseElection(ctx context.Context, electionID string, at time.Time) (storage.ElectionRecord, error) {
	return s.transitionElection(ctx, electionID, at,
		storage.ElectionStatusOpen, storage.ElectionStatusClosed, apperrors.CodeElectionNotOpen,
		"voting can only close from voting_open")
}

// CastVote records one ballot fact. Vote insert, voter votedAt, and the
// optional token consumption commit together. The primary key on
// (election_id, voter_id) rejects the second of two concurrent ballots.
func (s *Store) CastVote(ctx context.Context, args storage.CastVoteArgs) (storage.VoteRecord, error) {
	if err := s.ready(); err != nil {
		return storage.VoteRecord{}, err
	}

	var out storage.VoteRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireElectionStatus(ctx, tx, args.ElectionID, storage.ElectionStatusOpen, apperrors.CodeElectionNotOpen,
			"ballots are only accepted while voting is open"); err != nil {
			return err
		}

		if args.TokenID != "" {
			if err := consumeToken(ctx, tx, args.TokenID, args.ElectionID, args.VoterID, args.At); err != nil {
				return err
			}
		}

		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM election_candidates WHERE election_id = ? AND id = ?`,
			args.ElectionID, args.CandidateID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check candidate: %w", err)
		}
		if exists == 0 {
			return apperrors.WithMetadata(apperrors.CodeCandidateUnknown,
				"candidate is not on this ballot",
				map[string]string{"election_id": args.ElectionID, "candidate_id": args.CandidateID})
		}

		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM election_voters WHERE election_id = ? AND id = ?`,
			args.ElectionID, args.VoterID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check voter: %w", err)
		}
		if exists == 0 {
			return apperrors.WithMetadata(apperrors.CodeVoterNotFound,
				"voter is not registered for this election",
				map[string]string{"election_id": args.ElectionID, "voter_id": args.VoterID})
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO election_votes (election_id, voter_id, candidate_id, cast_at)
			VALUES (?, ?, ?, ?)`,
			args.ElectionID, args.VoterID, args.CandidateID, toMillis(args.At),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.WithMetadata(apperrors.CodeVoterAlreadyVoted,
					"voter has already cast a ballot",
					map[string]string{"election_id": args.ElectionID, "voter_id": args.VoterID})
			}
			return fmt.Errorf("insert vote: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE election_voters SET voted_at = ?
			WHERE election_id = ? AND id = ? AND voted_at IS NULL`,
			toMillis(args.At), args.ElectionID, args.VoterID,
		)
		if err != nil {
			return fmt.Errorf("mark voter voted: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark voter voted result: %w", err)
		}
		if affected == 0 {
			return apperrors.WithMetadata(apperrors.CodeVoterAlreadyVoted,
				"voter has already cast a ballot",
				map[string]string{"election_id": args.ElectionID, "voter_id": args.VoterID})
		}

		if err := touchElection(ctx, tx, args.ElectionID, args.At); err != nil {
			return err
		}

		out = storage.VoteRecord{
			ElectionID:  args.ElectionID,
			VoterID:     args.VoterID,
			CandidateID: args.CandidateID,
			CastAt:      args.At.UTC(),
		}
		return nil
	})
	if err != nil {
		return storage.VoteRecord{}, err
	}
	return out, nil
}

// Tally counts vote facts per candidate. Candidates without votes appear
// with a zero count so the result always covers the full ballot.
func (s *Store) Tally(ctx context.Context, electionID string) ([]storage.TallyRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT c.id, c.name, c.department, COUNT(v.voter_id)
		FROM election_candidates c
		LEFT JOIN election_votes v ON v.election_id = c.election_id AND v.candidate_id = c.id
		WHERE c.election_id = ?
		GROUP BY c.id, c.name, c.department
		ORDER BY COUNT(v.voter_id) DESC, c.position`, electionID)
	if err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}
	defer rows.Close()

	var tally []storage.TallyRow
	for rows.Next() {
		var row storage.TallyRow
		if err := rows.Scan(&row.CandidateID, &row.Name, &row.Department, &row.VoteCount); err != nil {
			return nil, fmt.Errorf("scan tally row: %w", err)
		}
		tally = append(tally, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tally rows: %w", err)
	}
	return tally, nil
}

func (s *Store) transitionElection(ctx context.Context, electionID string, at time.Time, fromStatus, toStatus string, code apperrors.Code, message string) (storage.ElectionRecord, error) {
	if err := s.ready(); err != nil {
		return storage.ElectionRecord{}, err
	}

	stampColumn := "opened_at"
	if toStatus == storage.ElectionStatusClosed {
		stampColumn = "closed_at"
	}

	var out storage.ElectionRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE elections SET status = ?, `+stampColumn+` = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			toStatus, toMillis(at), toMillis(at), electionID, fromStatus,
		)
		if err != nil {
			return fmt.Errorf("transition election: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("transition election result: %w", err)
		}
		if affected == 0 {
			status, err := electionStatus(ctx, tx, electionID)
			if err != nil {
				return err
			}
			return apperrors.WithMetadata(code, message,
				map[string]string{"election_id": electionID, "status": status})
		}

		out, err = readElection(ctx, tx, electionID)
		return err
	})
	if err != nil {
		return storage.ElectionRecord{}, err
	}
	return out, nil
}

func insertCandidate(ctx context.Context, tx *sql.Tx, candidate storage.CandidateRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO election_candidates (election_id, id, name, department, position)
		VALUES (?, ?, ?, ?, ?)`,
		candidate.ElectionID, candidate.ID, candidate.Name, candidate.Department, candidate.Position,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func requireElectionStatus(ctx context.Context, tx *sql.Tx, electionID, wantStatus string, code apperrors.Code, message string) error {
	status, err := electionStatus(ctx, tx, electionID)
	if err != nil {
		return err
	}
	if status != wantStatus {
		return apperrors.WithMetadata(code, message,
			map[string]string{"election_id": electionID, "status": status})
	}
	return nil
}

func electionStatus(ctx context.Context, tx *sql.Tx, electionID string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM elections WHERE id = ?`, electionID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", apperrors.WithMetadata(apperrors.CodeElectionNotFound,
			"election does not exist",
			map[string]string{"election_id": electionID})
	}
	if err != nil {
		return "", fmt.Errorf("read election status: %w", err)
	}
	return status, nil
}

func touchElection(ctx context.Context, tx *sql.Tx, electionID string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE elections SET updated_at = ? WHERE id = ?`,
		toMillis(at), electionID,
	); err != nil {
		return fmt.Errorf("touch election: %w", err)
	}
	return nil
}

func readElection(ctx context.Context, q querier, electionID string) (storage.ElectionRecord, error) {
	var e storage.ElectionRecord
	var createdAt, updatedAt int64
	var openedAt, closedAt sql.NullInt64

	err := q.QueryRowContext(ctx, `
		SELECT id, title, status, created_at, updated_at, opened_at, closed_at
		FROM elections WHERE id = ?`, electionID,
	).Scan(&e.ID, &e.Title, &e.Status, &createdAt, &updatedAt, &openedAt, &closedAt)
	if err == sql.ErrNoRows {
		return storage.ElectionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ElectionRecord{}, fmt.Errorf("read election: %w", err)
	}
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	e.OpenedAt = timePtr(openedAt)
	e.ClosedAt = timePtr(closedAt)
	return e, nil
}
