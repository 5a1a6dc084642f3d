package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	notify "github.com/sheqdesk/signing/internal/services/notify/domain"
	"github.com/sheqdesk/signing/internal/services/notify/render"
	"github.com/sheqdesk/signing/internal/services/signing/domain/election"
	"github.com/sheqdesk/signing/internal/services/signing/domain/token"
)

type candidateView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Position   int    `json:"position"`
}

type voterView struct {
	ID      string     `json:"id"`
	Contact string     `json:"contact"`
	VotedAt *time.Time `json:"voted_at,omitempty"`
}

type tallyView struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Department  string `json:"department,omitempty"`
	VoteCount   int    `json:"vote_count"`
}

type electionView struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	Candidates []candidateView `json:"candidates"`
	Voters     []voterView     `json:"voters,omitempty"`
	Tally      []tallyView     `json:"tally,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	OpenedAt   *time.Time      `json:"opened_at,omitempty"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
}

func toElectionView(e election.Election, tally []election.TallyEntry) electionView {
	view := electionView{
		ID:        e.ID,
		Title:     e.Title,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		OpenedAt:  e.OpenedAt,
		ClosedAt:  e.ClosedAt,
	}
	for _, candidate := range e.Candidates {
		view.Candidates = append(view.Candidates, candidateView{
			ID:         candidate.ID,
			Name:       candidate.Name,
			Department: candidate.Department,
			Position:   candidate.Position,
		})
	}
	for _, voter := range e.Voters {
		view.Voters = append(view.Voters, voterView{
			ID:      voter.ID,
			Contact: voter.Contact,
			VotedAt: voter.VotedAt,
		})
	}
	for _, entry := range tally {
		view.Tally = append(view.Tally, tallyView{
			CandidateID: entry.CandidateID,
			Name:        entry.Name,
			Department:  entry.Department,
			VoteCount:   entry.VoteCount,
		})
	}
	return view
}

type createElectionRequest struct {
	Title      string `json:"title"`
	Candidates []struct {
		Name       string `json:"name"`
		Department string `json:"department,omitempty"`
	} `json:"candidates"`
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "elections.create")
	defer span.End()

	var req createElectionRequest
	if !decodeBody(w, r, defaultBodyLimit, &req) {
		return
	}

	input := election.CreateInput{Title: req.Title}
	for _, candidate := range req.Candidates {
		input.Candidates = append(input.Candidates, election.CandidateInput{
			Name:       candidate.Name,
			Department: candidate.Department,
		})
	}

	e, err := s.app.Elections.Create(ctx, input)
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, toElectionView(e, nil))
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	e, err := s.app.Elections.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, false)
		return
	}

	var tally []election.TallyEntry
	if e.Status != election.StatusDraft {
		tally, err = s.app.Elections.Tally(r.Context(), e.ID)
		if err != nil {
			writeError(w, err, false)
			return
		}
	}
	writeJSON(w, http.StatusOK, toElectionView(e, tally))
}

type addCandidateRequest struct {
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}

func (s *Server) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "elections.add_candidate")
	defer span.End()

	var req addCandidateRequest
	if !decodeBody(w, r, defaultBodyLimit, &req) {
		return
	}

	candidate, err := s.app.Elections.AddCandidate(ctx, r.PathValue("id"), election.CandidateInput{
		Name:       req.Name,
		Department: req.Department,
	})
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, candidateView{
		ID:         candidate.ID,
		Name:       candidate.Name,
		Department: candidate.Department,
		Position:   candidate.Position,
	})
}

type addVoterRequest struct {
	Contact    string `json:"contact"`
	IssueToken bool   `json:"issue_token,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

type addVoterResponse struct {
	VoterID string `json:"voter_id"`
	Contact string `json:"contact"`
	Link    string `json:"link,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handleAddVoter(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "elections.add_voter")
	defer span.End()

	var req addVoterRequest
	if !decodeBody(w, r, defaultBodyLimit, &req) {
		return
	}

	electionID := r.PathValue("id")
	voter, err := s.app.Elections.AddVoter(ctx, electionID, req.Contact)
	if err != nil {
		writeError(w, err, false)
		return
	}

	resp := addVoterResponse{VoterID: voter.ID, Contact: voter.Contact}
	if req.IssueToken {
		issued, err := s.app.Tokens.Issue(ctx, token.IssueInput{
			RecordID:  electionID,
			TargetRef: voter.ID,
			Recipient: voter.Contact,
		})
		if err != nil {
			writeError(w, err, false)
			return
		}
		resp.Link = issued.Link
		if err := s.app.Elections.AttachVoterToken(ctx, electionID, voter.ID, issued.Token.ID); err != nil {
			writeError(w, err, false)
			return
		}

		e, err := s.app.Elections.Get(ctx, electionID)
		if err != nil {
			writeError(w, err, false)
			return
		}
		payload, _ := json.Marshal(map[string]string{"election_title": e.Title})
		resp.Warning = s.dispatchLink(ctx, notify.DispatchInput{
			Recipient:   voter.Contact,
			Topic:       render.TopicBallotInvite,
			PayloadJSON: string(payload),
			Link:        issued.Link,
			Locale:      req.Locale,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleOpenElection(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "elections.open")
	defer span.End()

	e, err := s.app.Elections.Open(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toElectionView(e, nil))
}

type castVoteRequest struct {
	VoterID     string `json:"voter_id"`
	CandidateID string `json:"candidate_id"`
	Grant       string `json:"grant,omitempty"`
}

type voteView struct {
	ElectionID  string    `json:"election_id"`
	VoterID     string    `json:"voter_id"`
	CandidateID string    `json:"candidate_id"`
	CastAt      time.Time `json:"cast_at"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "elections.cast_vote")
	defer span.End()

	var req castVoteRequest
	if !decodeBody(w, r, defaultBodyLimit, &req) {
		return
	}

	remote := req.Grant != ""

	var tokenID string
	if remote {
		tok, err := s.app.Tokens.Resolve(ctx, req.Grant)
		if err != nil {
			writeError(w, err, true)
			return
		}
		tokenID = tok.ID
		// The grant names the voter; a body mismatch never redirects a
		// ballot to someone else's slot.
		if req.VoterID == "" {
			req.VoterID = tok.TargetRef
		}
	}

	vote, err := s.app.Elections.CastVote(ctx, election.CastInput{
		ElectionID:  r.PathValue("id"),
		VoterID:     req.VoterID,
		CandidateID: req.CandidateID,
		TokenID:     tokenID,
	})
	if err != nil {
		writeError(w, err, remote)
		return
	}
	writeJSON(w, http.StatusCreated, voteView{
		ElectionID:  vote.ElectionID,
		VoterID:     vote.VoterID,
		CandidateID: vote.CandidateID,
		CastAt:      vote.CastAt,
	})
}

func (s *Server) handleCloseElection(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "elections.close")
	defer span.End()

	e, err := s.app.Elections.Close(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err, false)
		return
	}

	tally, err := s.app.Elections.Tally(ctx, e.ID)
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toElectionView(e, tally))
}
