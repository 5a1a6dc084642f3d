// Package app wires the signing domain services to their SQLite store.
package app

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/services/signing/domain/election"
	"github.com/sheqdesk/signing/internal/services/signing/domain/record"
	"github.com/sheqdesk/signing/internal/services/signing/domain/token"
	"github.com/sheqdesk/signing/internal/services/signing/storage"
)

// recordStore adapts a storage.RecordStore to the record domain boundary.
type recordStore struct {
	store storage.RecordStore
}

func (a recordStore) PutRecord(ctx context.Context, rec record.Record) error {
	err := a.store.PutRecord(ctx, toStorageRecord(rec))
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			"record id already exists",
			map[string]string{"record_id": rec.ID})
	}
	return err
}

func (a recordStore) GetRecord(ctx context.Context, recordID string) (record.Record, error) {
	row, err := a.store.GetRecord(ctx, recordID)
	if errors.Is(err, storage.ErrNotFound) {
		return record.Record{}, apperrors.WithMetadata(apperrors.CodeRecordNotFound,
			"record does not exist",
			map[string]string{"record_id": recordID})
	}
	if err != nil {
		return record.Record{}, err
	}
	return toDomainRecord(row), nil
}

func (a recordStore) SubmitRecord(ctx context.Context, recordID string, at time.Time) (record.Record, error) {
	row, err := a.store.SubmitRecord(ctx, recordID, at)
	if err != nil {
		return record.Record{}, err
	}
	return toDomainRecord(row), nil
}

func (a recordStore) SignSlot(ctx context.Context, req record.SignSlotRequest) (record.Record, error) {
	row, err := a.store.SignSlot(ctx, storage.SignSlotArgs{
		RecordID:       req.RecordID,
		Role:           req.Role,
		SignatureImage: req.SignatureImage,
		Via:            string(req.Via),
		TokenID:        req.TokenID,
		At:             req.At,
	})
	if err != nil {
		return record.Record{}, err
	}
	return toDomainRecord(row), nil
}

func (a recordStore) VoidRecord(ctx context.Context, recordID string, at time.Time) (record.Record, error) {
	row, err := a.store.VoidRecord(ctx, recordID, at)
	if err != nil {
		return record.Record{}, err
	}
	return toDomainRecord(row), nil
}

// tokenStore adapts a storage.TokenStore to the token domain boundary.
type tokenStore struct {
	store storage.TokenStore
}

func (a tokenStore) IssueToken(ctx context.Context, tok token.Token) error {
	err := a.store.IssueToken(ctx, storage.TokenRecord{
		TokenID:      tok.ID,
		RecordID:     tok.RecordID,
		TargetRef:    tok.TargetRef,
		Recipient:    tok.Recipient,
		IssuedAt:     tok.IssuedAt,
		ExpiresAt:    tok.ExpiresAt,
		ConsumedAt:   tok.ConsumedAt,
		SupersededAt: tok.SupersededAt,
	})
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			"token id already exists",
			map[string]string{"token_id": tok.ID})
	}
	return err
}

func (a tokenStore) GetToken(ctx context.Context, tokenID string) (token.Token, error) {
	row, err := a.store.GetToken(ctx, tokenID)
	if errors.Is(err, storage.ErrNotFound) {
		return token.Token{}, apperrors.WithMetadata(apperrors.CodeTokenNotFound,
			"signing token does not exist",
			map[string]string{"token_id": tokenID})
	}
	if err != nil {
		return token.Token{}, err
	}
	return token.Token{
		ID:           row.TokenID,
		RecordID:     row.RecordID,
		TargetRef:    row.TargetRef,
		Recipient:    row.Recipient,
		IssuedAt:     row.IssuedAt,
		ExpiresAt:    row.ExpiresAt,
		ConsumedAt:   row.ConsumedAt,
		SupersededAt: row.SupersededAt,
	}, nil
}

// electionStore adapts a storage.ElectionStore to the election domain boundary.
type electionStore struct {
	store storage.ElectionStore
}

func (a electionStore) PutElection(ctx context.Context, e election.Election) error {
	candidates := make([]storage.CandidateRecord, 0, len(e.Candidates))
	for _, candidate := range e.Candidates {
		candidates = append(candidates, toStorageCandidate(e.ID, candidate))
	}
	err := a.store.PutElection(ctx, storage.ElectionRecord{
		ID:        e.ID,
		Title:     e.Title,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		OpenedAt:  e.OpenedAt,
		ClosedAt:  e.ClosedAt,
	}, candidates)
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			"election id already exists",
			map[string]string{"election_id": e.ID})
	}
	return err
}

func (a electionStore) GetElection(ctx context.Context, electionID string) (election.Election, error) {
	header, err := a.store.GetElection(ctx, electionID)
	if errors.Is(err, storage.ErrNotFound) {
		return election.Election{}, apperrors.WithMetadata(apperrors.CodeElectionNotFound,
			"election does not exist",
			map[string]string{"election_id": electionID})
	}
	if err != nil {
		return election.Election{}, err
	}

	candidates, err := a.store.ListCandidates(ctx, electionID)
	if err != nil {
		return election.Election{}, err
	}
	voters, err := a.store.ListVoters(ctx, electionID)
	if err != nil {
		return election.Election{}, err
	}

	e := election.Election{
		ID:        header.ID,
		Title:     header.Title,
		Status:    election.Status(header.Status),
		CreatedAt: header.CreatedAt,
		UpdatedAt: header.UpdatedAt,
		OpenedAt:  header.OpenedAt,
		ClosedAt:  header.ClosedAt,
	}
	for _, candidate := range candidates {
		e.Candidates = append(e.Candidates, election.Candidate{
			ID:         candidate.ID,
			Name:       candidate.Name,
			Department: candidate.Department,
			Position:   candidate.Position,
		})
	}
	for _, voter := range voters {
		e.Voters = append(e.Voters, election.Voter{
			ID:        voter.ID,
			Contact:   voter.Contact,
			TokenID:   voter.TokenID,
			VotedAt:   voter.VotedAt,
			CreatedAt: voter.CreatedAt,
		})
	}
	return e, nil
}

func (a electionStore) AddCandidate(ctx context.Context, electionID string, candidate election.Candidate, at time.Time) error {
	err := a.store.AddCandidate(ctx, toStorageCandidate(electionID, candidate), at)
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			"candidate id already exists",
			map[string]string{"election_id": electionID, "candidate_id": candidate.ID})
	}
	return err
}

func (a electionStore) AddVoter(ctx context.Context, electionID string, voter election.Voter, at time.Time) error {
	err := a.store.AddVoter(ctx, storage.VoterRecord{
		ElectionID: electionID,
		ID:         voter.ID,
		Contact:    voter.Contact,
		TokenID:    voter.TokenID,
		VotedAt:    voter.VotedAt,
		CreatedAt:  voter.CreatedAt,
	}, at)
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			"voter id already exists",
			map[string]string{"election_id": electionID, "voter_id": voter.ID})
	}
	return err
}

func (a electionStore) SetVoterToken(ctx context.Context, electionID, voterID, tokenID string) error {
	err := a.store.SetVoterToken(ctx, electionID, voterID, tokenID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeVoterNotFound,
			"voter is not registered for this election",
			map[string]string{"election_id": electionID, "voter_id": voterID})
	}
	return err
}

func (a electionStore) OpenElection(ctx context.Context, electionID string, at time.Time) (election.Election, error) {
	if _, err := a.store.OpenElection(ctx, electionID, at); err != nil {
		return election.Election{}, err
	}
	return a.GetElection(ctx, electionID)
}

func (a electionStore) CloseElection(ctx context.Context, electionID string, at time.Time) (election.Election, error) {
	if _, err := a.store.CloseElection(ctx, electionID, at); err != nil {
		return election.Election{}, err
	}
	return a.GetElection(ctx, electionID)
}

func (a electionStore) CastVote(ctx context.Context, req election.CastVoteRequest) (election.Vote, error) {
	row, err := a.store.CastVote(ctx, storage.CastVoteArgs{
		ElectionID:  req.ElectionID,
		VoterID:     req.VoterID,
		CandidateID: req.CandidateID,
		TokenID:     req.TokenID,
		At:          req.At,
	})
	if err != nil {
		return election.Vote{}, err
	}
	return election.Vote{
		ElectionID:  row.ElectionID,
		VoterID:     row.VoterID,
		CandidateID: row.CandidateID,
		CastAt:      row.CastAt,
	}, nil
}

func (a electionStore) Tally(ctx context.Context, electionID string) ([]election.TallyEntry, error) {
	rows, err := a.store.Tally(ctx, electionID)
	if err != nil {
		return nil, err
	}
	tally := make([]election.TallyEntry, 0, len(rows))
	for _, row := range rows {
		tally = append(tally, election.TallyEntry{
			CandidateID: row.CandidateID,
			Name:        row.Name,
			Department:  row.Department,
			VoteCount:   row.VoteCount,
		})
	}
	return tally, nil
}

func toStorageRecord(rec record.Record) storage.SignableRecord {
	row := storage.SignableRecord{
		ID:          rec.ID,
		Kind:        string(rec.Kind),
		Status:      string(rec.Status),
		PayloadJSON: rec.PayloadJSON,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		FinalizedAt: rec.FinalizedAt,
	}
	for _, slot := range rec.Slots {
		row.Slots = append(row.Slots, storage.SignerSlotRecord{
			RecordID:       rec.ID,
			Role:           slot.Role,
			Position:       slot.Position,
			SignatureImage: slot.SignatureImage,
			SignedAt:       slot.SignedAt,
			SignedVia:      string(slot.SignedVia),
		})
	}
	return row
}

func toDomainRecord(row storage.SignableRecord) record.Record {
	rec := record.Record{
		ID:          row.ID,
		Kind:        record.Kind(row.Kind),
		Status:      record.Status(row.Status),
		PayloadJSON: row.PayloadJSON,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		FinalizedAt: row.FinalizedAt,
	}
	for _, slot := range row.Slots {
		rec.Slots = append(rec.Slots, record.SignerSlot{
			Role:           slot.Role,
			Position:       slot.Position,
			SignatureImage: slot.SignatureImage,
			SignedAt:       slot.SignedAt,
			SignedVia:      record.Via(slot.SignedVia),
		})
	}
	return rec
}

func toStorageCandidate(electionID string, candidate election.Candidate) storage.CandidateRecord {
	return storage.CandidateRecord{
		ElectionID: electionID,
		ID:         candidate.ID,
		Name:       candidate.Name,
		Department: candidate.Department,
		Position:   candidate.Position,
	}
}
