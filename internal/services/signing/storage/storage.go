// Package storage defines the persistence boundary of the signing core.
//
// Stores own every row subject to the atomicity rules: record status,
// slot signatures, token consumption, voter votedAt, and vote facts are
// written only through the operations below, each of which executes its
// read-guard-write sequence inside one transaction.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested row is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicted with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// Status values stored in record and election rows. Conditional writes
// guard on these strings, so they are part of the persistence contract.
const (
	RecordStatusDraft     = "draft"
	RecordStatusAwaiting  = "awaiting_signatures"
	RecordStatusCompleted = "completed"
	RecordStatusVoided    = "voided"

	ElectionStatusDraft  = "draft"
	ElectionStatusOpen   = "voting_open"
	ElectionStatusClosed = "voting_closed"

	// Candidate-count bounds re-checked inside the transactions that add
	// candidates and open voting.
	ElectionMinCandidates = 2
	ElectionMaxCandidates = 10
)

// SignableRecord stores one record subject to signing.
type SignableRecord struct {
	ID          string
	Kind        string
	Status      string
	PayloadJSON string
	Slots       []SignerSlotRecord
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinalizedAt *time.Time
}

// SignerSlotRecord stores one required signature position.
type SignerSlotRecord struct {
	RecordID       string
	Role           string
	Position       int
	SignatureImage []byte
	SignedAt       *time.Time
	SignedVia      string
}

// TokenRecord stores one single-use signing token.
type TokenRecord struct {
	TokenID      string
	RecordID     string
	TargetRef    string
	Recipient    string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	SupersededAt *time.Time
}

// ElectionRecord stores one election header.
type ElectionRecord struct {
	ID        string
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	OpenedAt  *time.Time
	ClosedAt  *time.Time
}

// CandidateRecord stores one election candidate.
type CandidateRecord struct {
	ElectionID string
	ID         string
	Name       string
	Department string
	Position   int
}

// VoterRecord stores one registered voter.
type VoterRecord struct {
	ElectionID string
	ID         string
	Contact    string
	TokenID    string
	VotedAt    *time.Time
	CreatedAt  time.Time
}

// VoteRecord stores one append-only ballot fact.
type VoteRecord struct {
	ElectionID  string
	VoterID     string
	CandidateID string
	CastAt      time.Time
}

// TallyRow is one candidate's vote count, computed from vote facts.
type TallyRow struct {
	CandidateID string
	Name        string
	Department  string
	VoteCount   int
}

// SignSlotArgs carries one atomic slot-signing write. TokenID, when
// non-empty, is consumed in the same transaction as the slot write.
type SignSlotArgs struct {
	RecordID       string
	Role           string
	SignatureImage []byte
	Via            string
	TokenID        string
	At             time.Time
}

// CastVoteArgs carries one atomic ballot write. TokenID, when non-empty,
// is consumed in the same transaction as the vote fact.
type CastVoteArgs struct {
	ElectionID  string
	VoterID     string
	CandidateID string
	TokenID     string
	At          time.Time
}

// RecordStore persists signable record lifecycle state.
type RecordStore interface {
	PutRecord(ctx context.Context, rec SignableRecord) error
	GetRecord(ctx context.Context, recordID string) (SignableRecord, error)
	SubmitRecord(ctx context.Context, recordID string, at time.Time) (SignableRecord, error)
	SignSlot(ctx context.Context, args SignSlotArgs) (SignableRecord, error)
	VoidRecord(ctx context.Context, recordID string, at time.Time) (SignableRecord, error)
}

// TokenStore persists single-use signing tokens.
type TokenStore interface {
	IssueToken(ctx context.Context, tok TokenRecord) error
	GetToken(ctx context.Context, tokenID string) (TokenRecord, error)
}

// ElectionStore persists election, voter, and ballot state.
type ElectionStore interface {
	PutElection(ctx context.Context, e ElectionRecord, candidates []CandidateRecord) error
	GetElection(ctx context.Context, electionID string) (ElectionRecord, error)
	ListCandidates(ctx context.Context, electionID string) ([]CandidateRecord, error)
	ListVoters(ctx context.Context, electionID string) ([]VoterRecord, error)
	AddCandidate(ctx context.Context, candidate CandidateRecord, at time.Time) error
	AddVoter(ctx context.Context, voter VoterRecord, at time.Time) error
	SetVoterToken(ctx context.Context, electionID, voterID, tokenID string) error
	OpenElection(ctx context.Context, electionID string, at time.Time) (ElectionRecord, error)
	CloseElection(ctx context.Context, electionID string, at time.Time) (ElectionRecord, error)
	CastVote(ctx context.Context, args CastVoteArgs) (VoteRecord, error)
	Tally(ctx context.Context, electionID string) ([]TallyRow, error)
}
