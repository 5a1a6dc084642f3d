// Package election models SHE-committee elections and their ballot rules.
package election

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/platform/id"
)

const (
	// MinCandidates is the smallest candidate set that may open for voting.
	MinCandidates = 2
	// MaxCandidates is the largest candidate set that may open for voting.
	MaxCandidates = 10
)

// Status represents the lifecycle status of an election.
type Status string

const (
	// StatusDraft means candidates may still change and no votes are accepted.
	StatusDraft Status = "draft"
	// StatusVotingOpen means ballots are being accepted.
	StatusVotingOpen Status = "voting_open"
	// StatusVotingClosed means tallies are final and read-only.
	StatusVotingClosed Status = "voting_closed"
)

// Candidate is one person standing in an election. Candidates are immutable
// once the election leaves draft.
type Candidate struct {
	ID         string
	Name       string
	Department string
	Position   int
}

// Voter is one registered voter. VotedAt is set at most once, by the store,
// atomically with the vote fact.
type Voter struct {
	ID        string
	Contact   string
	TokenID   string
	VotedAt   *time.Time
	CreatedAt time.Time
}

// Vote is one append-only ballot fact. Exactly one exists per voter per
// election; votes are never updated or deleted.
type Vote struct {
	ElectionID  string
	VoterID     string
	CandidateID string
	CastAt      time.Time
}

// TallyEntry is one candidate's final or running vote count.
type TallyEntry struct {
	CandidateID string
	Name        string
	Department  string
	VoteCount   int
}

// Election is one SHE-committee election.
type Election struct {
	ID         string
	Title      string
	Status     Status
	Candidates []Candidate
	Voters     []Voter
	CreatedAt  time.Time
	UpdatedAt  time.Time
	OpenedAt   *time.Time
	ClosedAt   *time.Time
}

// Candidate returns the candidate with the given ID.
func (e Election) Candidate(candidateID string) (Candidate, bool) {
	for _, candidate := range e.Candidates {
		if candidate.ID == candidateID {
			return candidate, true
		}
	}
	return Candidate{}, false
}

// Voter returns the voter with the given ID.
func (e Election) Voter(voterID string) (Voter, bool) {
	for _, voter := range e.Voters {
		if voter.ID == voterID {
			return voter, true
		}
	}
	return Voter{}, false
}

// CandidateInput describes one candidate at creation time.
type CandidateInput struct {
	Name       string
	Department string
}

// CreateInput describes the metadata needed to create an election.
type CreateInput struct {
	Title      string
	Candidates []CandidateInput
}

// Create creates a new draft election with generated IDs and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Election, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	title := strings.TrimSpace(input.Title)
	if len(input.Candidates) > MaxCandidates {
		return Election{}, candidateCountError(len(input.Candidates))
	}

	electionID, err := idGenerator()
	if err != nil {
		return Election{}, fmt.Errorf("generate election id: %w", err)
	}

	createdAt := now().UTC()
	candidates := make([]Candidate, 0, len(input.Candidates))
	for i, candidate := range input.Candidates {
		built, err := NewCandidate(candidate, i, idGenerator)
		if err != nil {
			return Election{}, err
		}
		candidates = append(candidates, built)
	}

	return Election{
		ID:         electionID,
		Title:      title,
		Status:     StatusDraft,
		Candidates: candidates,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}, nil
}

// NewCandidate validates and builds one candidate with a generated ID.
func NewCandidate(input CandidateInput, position int, idGenerator func() (string, error)) (Candidate, error) {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Candidate{}, apperrors.New(apperrors.CodeCandidateEmptyName, "candidate name is required")
	}
	candidateID, err := idGenerator()
	if err != nil {
		return Candidate{}, fmt.Errorf("generate candidate id: %w", err)
	}
	return Candidate{
		ID:         candidateID,
		Name:       name,
		Department: strings.TrimSpace(input.Department),
		Position:   position,
	}, nil
}

// NewVoter validates and builds one voter with a generated ID.
func NewVoter(contact string, now func() time.Time, idGenerator func() (string, error)) (Voter, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return Voter{}, apperrors.New(apperrors.CodeVoterEmptyContact, "voter email or phone is required")
	}
	voterID, err := idGenerator()
	if err != nil {
		return Voter{}, fmt.Errorf("generate voter id: %w", err)
	}
	return Voter{
		ID:        voterID,
		Contact:   contact,
		CreatedAt: now().UTC(),
	}, nil
}

// ValidateOpen checks that a draft election with the given candidate count
// may open for voting.
func ValidateOpen(status Status, candidateCount int) error {
	if status != StatusDraft {
		return apperrors.WithMetadata(apperrors.CodeElectionNotDraft, "election has already opened", map[string]string{"Status": string(status)})
	}
	if candidateCount < MinCandidates || candidateCount > MaxCandidates {
		return candidateCountError(candidateCount)
	}
	return nil
}

// ValidateAddCandidate checks that the candidate roster may still change.
func ValidateAddCandidate(status Status, candidateCount int) error {
	if status != StatusDraft {
		return apperrors.New(apperrors.CodeElectionNotDraft, "candidates are immutable once voting opens")
	}
	if candidateCount >= MaxCandidates {
		return candidateCountError(candidateCount + 1)
	}
	return nil
}

// ValidateAddVoter checks that the voter roster may grow. Unlike candidates,
// voters may be added while voting is open.
func ValidateAddVoter(status Status) error {
	if status == StatusVotingClosed {
		return apperrors.New(apperrors.CodeElectionNotOpen, "election is closed")
	}
	return nil
}

// ValidateCastVote checks ballot guards against a loaded election. The
// store re-enforces voter uniqueness with its vote-fact constraint; this
// pre-check exists to produce precise errors without burning a write.
func ValidateCastVote(e Election, voterID string, candidateID string) error {
	if e.Status != StatusVotingOpen {
		return apperrors.WithMetadata(apperrors.CodeElectionNotOpen, "election is not open for voting", map[string]string{"Status": string(e.Status)})
	}
	if _, ok := e.Candidate(candidateID); !ok {
		return apperrors.WithMetadata(apperrors.CodeCandidateUnknown, "candidate does not belong to this election", map[string]string{"CandidateID": candidateID})
	}
	voter, ok := e.Voter(voterID)
	if !ok {
		return apperrors.New(apperrors.CodeVoterNotFound, "voter is not registered for this election")
	}
	if voter.VotedAt != nil {
		return apperrors.New(apperrors.CodeVoterAlreadyVoted, "voter has already cast a ballot")
	}
	return nil
}

// ValidateClose checks that an open election may close.
func ValidateClose(status Status) error {
	if status != StatusVotingOpen {
		return apperrors.WithMetadata(apperrors.CodeElectionNotOpen, "election is not open", map[string]string{"Status": string(status)})
	}
	return nil
}

func candidateCountError(count int) error {
	return apperrors.WithMetadata(apperrors.CodeElectionCandidateCount, "elections require 2 to 10 candidates", map[string]string{
		"Count": fmt.Sprintf("%d", count),
	})
}
