package election

import (
	"fmt"
	"testing"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	at := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func sequenceID(t *testing.T) func() (string, error) {
	t.Helper()
	next := 0
	return func() (string, error) {
		next++
		return fmt.Sprintf("id-%d", next), nil
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	e, err := Create(CreateInput{
		Title: " SHE Committee 2026 ",
		Candidates: []CandidateInput{
			{Name: " Thandi Nkosi ", Department: "Production"},
			{Name: "Pieter van Wyk"},
		},
	}, fixedClock(t), sequenceID(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Title != "SHE Committee 2026" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.Status != StatusDraft {
		t.Errorf("Status = %q, want %q", e.Status, StatusDraft)
	}
	if len(e.Candidates) != 2 {
		t.Fatalf("Candidates = %d, want 2", len(e.Candidates))
	}
	if e.Candidates[0].Name != "Thandi Nkosi" || e.Candidates[0].Position != 0 {
		t.Errorf("candidate 0 = %+v", e.Candidates[0])
	}
	if e.Candidates[1].Position != 1 {
		t.Errorf("candidate 1 position = %d", e.Candidates[1].Position)
	}
	if !e.CreatedAt.Equal(e.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v", e.CreatedAt, e.UpdatedAt)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	tooMany := make([]CandidateInput, MaxCandidates+1)
	for i := range tooMany {
		tooMany[i] = CandidateInput{Name: fmt.Sprintf("Candidate %d", i)}
	}
	if _, err := Create(CreateInput{Title: "x", Candidates: tooMany}, fixedClock(t), sequenceID(t)); apperrors.CodeOf(err) != apperrors.CodeElectionCandidateCount {
		t.Errorf("too many candidates err = %v", err)
	}
	if _, err := Create(CreateInput{Title: "x", Candidates: []CandidateInput{{Name: "  "}}}, fixedClock(t), sequenceID(t)); apperrors.CodeOf(err) != apperrors.CodeCandidateEmptyName {
		t.Errorf("blank candidate err = %v", err)
	}
}

func TestNewVoter(t *testing.T) {
	t.Parallel()

	voter, err := NewVoter(" thandi@example.com ", fixedClock(t), sequenceID(t))
	if err != nil {
		t.Fatalf("NewVoter: %v", err)
	}
	if voter.Contact != "thandi@example.com" || voter.ID == "" {
		t.Errorf("voter = %+v", voter)
	}
	if voter.VotedAt != nil {
		t.Error("new voter already voted")
	}
	if _, err := NewVoter("  ", fixedClock(t), sequenceID(t)); apperrors.CodeOf(err) != apperrors.CodeVoterEmptyContact {
		t.Errorf("blank contact err = %v", err)
	}
}

func TestValidateOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status Status
		count  int
		code   apperrors.Code
	}{
		{name: "two candidates", status: StatusDraft, count: MinCandidates},
		{name: "ten candidates", status: StatusDraft, count: MaxCandidates},
		{name: "one candidate", status: StatusDraft, count: 1, code: apperrors.CodeElectionCandidateCount},
		{name: "eleven candidates", status: StatusDraft, count: 11, code: apperrors.CodeElectionCandidateCount},
		{name: "already open", status: StatusVotingOpen, count: 3, code: apperrors.CodeElectionNotDraft},
		{name: "already closed", status: StatusVotingClosed, count: 3, code: apperrors.CodeElectionNotDraft},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateOpen(tc.status, tc.count)
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Errorf("code = %q, want %q (err %v)", got, tc.code, err)
			}
		})
	}
}

func TestValidateAddCandidate(t *testing.T) {
	t.Parallel()

	if err := ValidateAddCandidate(StatusDraft, MaxCandidates-1); err != nil {
		t.Errorf("room left: %v", err)
	}
	if got := apperrors.CodeOf(ValidateAddCandidate(StatusDraft, MaxCandidates)); got != apperrors.CodeElectionCandidateCount {
		t.Errorf("at capacity code = %q", got)
	}
	if got := apperrors.CodeOf(ValidateAddCandidate(StatusVotingOpen, 2)); got != apperrors.CodeElectionNotDraft {
		t.Errorf("open election code = %q", got)
	}
}

func TestValidateAddVoter(t *testing.T) {
	t.Parallel()

	for _, status := range []Status{StatusDraft, StatusVotingOpen} {
		if err := ValidateAddVoter(status); err != nil {
			t.Errorf("%q: %v", status, err)
		}
	}
	if got := apperrors.CodeOf(ValidateAddVoter(StatusVotingClosed)); got != apperrors.CodeElectionNotOpen {
		t.Errorf("closed code = %q", got)
	}
}

func TestValidateCastVote(t *testing.T) {
	t.Parallel()

	votedAt := fixedClock(t)()
	open := Election{
		ID:     "el-1",
		Status: StatusVotingOpen,
		Candidates: []Candidate{
			{ID: "cand-1", Name: "Thandi Nkosi"},
			{ID: "cand-2", Name: "Pieter van Wyk"},
		},
		Voters: []Voter{
			{ID: "voter-1", Contact: "one@example.com"},
			{ID: "voter-2", Contact: "two@example.com", VotedAt: &votedAt},
		},
	}

	if err := ValidateCastVote(open, "voter-1", "cand-1"); err != nil {
		t.Errorf("valid ballot: %v", err)
	}

	draft := open
	draft.Status = StatusDraft

	tests := []struct {
		name        string
		e           Election
		voterID     string
		candidateID string
		code        apperrors.Code
	}{
		{name: "not open", e: draft, voterID: "voter-1", candidateID: "cand-1", code: apperrors.CodeElectionNotOpen},
		{name: "unknown candidate", e: open, voterID: "voter-1", candidateID: "cand-9", code: apperrors.CodeCandidateUnknown},
		{name: "unknown voter", e: open, voterID: "voter-9", candidateID: "cand-1", code: apperrors.CodeVoterNotFound},
		{name: "already voted", e: open, voterID: "voter-2", candidateID: "cand-1", code: apperrors.CodeVoterAlreadyVoted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateCastVote(tc.e, tc.voterID, tc.candidateID)
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Errorf("code = %q, want %q (err %v)", got, tc.code, err)
			}
		})
	}
}

func TestValidateClose(t *testing.T) {
	t.Parallel()

	if err := ValidateClose(StatusVotingOpen); err != nil {
		t.Errorf("open: %v", err)
	}
	for _, status := range []Status{StatusDraft, StatusVotingClosed} {
		if got := apperrors.CodeOf(ValidateClose(status)); got != apperrors.CodeElectionNotOpen {
			t.Errorf("%q: code = %q", status, got)
		}
	}
}
