package election

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/platform/id"
)

// CastVoteRequest is one atomic ballot request against the store.
type CastVoteRequest struct {
	ElectionID  string
	VoterID     string
	CandidateID string
	TokenID     string
	At          time.Time
}

// Store is the domain persistence boundary for elections. CastVote must
// append the vote fact, set the voter's votedAt, and consume the token (when
// present) as one atomic unit; voter uniqueness is enforced by the store's
// vote-fact constraint, not by an in-memory check.
type Store interface {
	PutElection(ctx context.Context, e Election) error
	GetElection(ctx context.Context, electionID string) (Election, error)
	AddCandidate(ctx context.Context, electionID string, candidate Candidate, at time.Time) error
	AddVoter(ctx context.Context, electionID string, voter Voter, at time.Time) error
	SetVoterToken(ctx context.Context, electionID, voterID, tokenID string) error
	OpenElection(ctx context.Context, electionID string, at time.Time) (Election, error)
	CloseElection(ctx context.Context, electionID string, at time.Time) (Election, error)
	CastVote(ctx context.Context, req CastVoteRequest) (Vote, error)
	Tally(ctx context.Context, electionID string) ([]TallyEntry, error)
}

// ErrStoreNotConfigured is reported when the service has no persistence wiring.
var ErrStoreNotConfigured = apperrors.New(apperrors.CodeUnknown, "election store is not configured")

// Service orchestrates election ballot behavior.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs election use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{store: store, clock: clock, newID: newID}
}

// Create creates a draft election with its initial candidates.
func (s *Service) Create(ctx context.Context, input CreateInput) (Election, error) {
	if s == nil || s.store == nil {
		return Election{}, ErrStoreNotConfigured
	}
	e, err := Create(input, s.clock, s.newID)
	if err != nil {
		return Election{}, err
	}
	if err := s.store.PutElection(ctx, e); err != nil {
		return Election{}, err
	}
	return e, nil
}

// Get returns one election including candidates and voters.
func (s *Service) Get(ctx context.Context, electionID string) (Election, error) {
	if s == nil || s.store == nil {
		return Election{}, ErrStoreNotConfigured
	}
	electionID = strings.TrimSpace(electionID)
	if electionID == "" {
		return Election{}, apperrors.New(apperrors.CodeElectionNotFound, "election id is required")
	}
	return s.store.GetElection(ctx, electionID)
}

// AddCandidate adds one candidate while the election is still in draft.
func (s *Service) AddCandidate(ctx context.Context, electionID string, input CandidateInput) (Candidate, error) {
	if s == nil || s.store == nil {
		return Candidate{}, ErrStoreNotConfigured
	}
	e, err := s.Get(ctx, electionID)
	if err != nil {
		return Candidate{}, err
	}
	if err := ValidateAddCandidate(e.Status, len(e.Candidates)); err != nil {
		return Candidate{}, err
	}
	candidate, err := NewCandidate(input, len(e.Candidates), s.newID)
	if err != nil {
		return Candidate{}, err
	}
	if err := s.store.AddCandidate(ctx, e.ID, candidate, s.nowUTC()); err != nil {
		return Candidate{}, err
	}
	return candidate, nil
}

// AddVoter registers one voter. Voters may join a draft or open election.
func (s *Service) AddVoter(ctx context.Context, electionID string, contact string) (Voter, error) {
	if s == nil || s.store == nil {
		return Voter{}, ErrStoreNotConfigured
	}
	e, err := s.Get(ctx, electionID)
	if err != nil {
		return Voter{}, err
	}
	if err := ValidateAddVoter(e.Status); err != nil {
		return Voter{}, err
	}
	voter, err := NewVoter(contact, s.clock, s.newID)
	if err != nil {
		return Voter{}, err
	}
	if err := s.store.AddVoter(ctx, e.ID, voter, s.nowUTC()); err != nil {
		return Voter{}, err
	}
	return voter, nil
}

// AttachVoterToken records which ballot token the voter should present.
// Reissuing a ballot link replaces the prior reference.
func (s *Service) AttachVoterToken(ctx context.Context, electionID, voterID, tokenID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	electionID = strings.TrimSpace(electionID)
	if electionID == "" {
		return apperrors.New(apperrors.CodeElectionNotFound, "election id is required")
	}
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return apperrors.New(apperrors.CodeVoterNotFound, "voter id is required")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return apperrors.New(apperrors.CodeTokenRequired, "token id is required")
	}
	return s.store.SetVoterToken(ctx, electionID, voterID, tokenID)
}

// Open moves a draft election to voting_open. Candidates freeze here.
// The candidate-count rule is checked here; candidates only ever grow while
// the election is in draft, so the count cannot shrink under this check.
func (s *Service) Open(ctx context.Context, electionID string) (Election, error) {
	if s == nil || s.store == nil {
		return Election{}, ErrStoreNotConfigured
	}
	e, err := s.Get(ctx, electionID)
	if err != nil {
		return Election{}, err
	}
	if err := ValidateOpen(e.Status, len(e.Candidates)); err != nil {
		return Election{}, err
	}
	return s.store.OpenElection(ctx, e.ID, s.nowUTC())
}

// Close moves an open election to voting_closed; tallies become final.
func (s *Service) Close(ctx context.Context, electionID string) (Election, error) {
	if s == nil || s.store == nil {
		return Election{}, ErrStoreNotConfigured
	}
	e, err := s.Get(ctx, electionID)
	if err != nil {
		return Election{}, err
	}
	if err := ValidateClose(e.Status); err != nil {
		return Election{}, err
	}
	return s.store.CloseElection(ctx, e.ID, s.nowUTC())
}

// CastInput describes one ballot attempt.
type CastInput struct {
	ElectionID  string
	VoterID     string
	CandidateID string
	TokenID     string
}

// CastVote records one ballot. Under concurrent attempts for the same voter
// exactly one succeeds; the rest surface VoterAlreadyVoted or a token error.
func (s *Service) CastVote(ctx context.Context, input CastInput) (Vote, error) {
	if s == nil || s.store == nil {
		return Vote{}, ErrStoreNotConfigured
	}
	electionID := strings.TrimSpace(input.ElectionID)
	if electionID == "" {
		return Vote{}, apperrors.New(apperrors.CodeElectionNotFound, "election id is required")
	}
	voterID := strings.TrimSpace(input.VoterID)
	if voterID == "" {
		return Vote{}, apperrors.New(apperrors.CodeVoterNotFound, "voter id is required")
	}
	candidateID := strings.TrimSpace(input.CandidateID)
	if candidateID == "" {
		return Vote{}, apperrors.New(apperrors.CodeCandidateUnknown, "candidate id is required")
	}
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return Vote{}, err
	}
	if err := ValidateCastVote(e, voterID, candidateID); err != nil {
		return Vote{}, err
	}
	return s.store.CastVote(ctx, CastVoteRequest{
		ElectionID:  electionID,
		VoterID:     voterID,
		CandidateID: candidateID,
		TokenID:     strings.TrimSpace(input.TokenID),
		At:          s.nowUTC(),
	})
}

// Tally returns per-candidate vote counts, computed from the append-only
// vote facts.
func (s *Service) Tally(ctx context.Context, electionID string) ([]TallyEntry, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	electionID = strings.TrimSpace(electionID)
	if electionID == "" {
		return nil, apperrors.New(apperrors.CodeElectionNotFound, "election id is required")
	}
	return s.store.Tally(ctx, electionID)
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
