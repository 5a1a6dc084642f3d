package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	notify "github.com/sheqdesk/signing/internal/services/notify/domain"
	"github.com/sheqdesk/signing/internal/services/notify/render"
	notifystorage "github.com/sheqdesk/signing/internal/services/notify/storage"
	"github.com/sheqdesk/signing/internal/services/signing/domain/token"
)

type issueTokenRequest struct {
	RecordID  string `json:"record_id"`
	TargetRef string `json:"target_ref"`
	Recipient string `json:"recipient"`
	TTL       string `json:"ttl,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

type issueTokenResponse struct {
	TokenID   string    `json:"token_id"`
	RecordID  string    `json:"record_id"`
	TargetRef string    `json:"target_ref"`
	ExpiresAt time.Time `json:"expires_at"`
	Link      string    `json:"link"`
	Warning   string    `json:"warning,omitempty"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "tokens.issue")
	defer span.End()

	var req issueTokenRequest
	if !decodeBody(w, r, defaultBodyLimit, &req) {
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil {
			writeError(w, apperrors.New(apperrors.CodeTokenInvalidTTL, "ttl must be a duration such as 72h"), false)
			return
		}
		ttl = parsed
	}

	// The target must exist before a link is minted for it. Record IDs and
	// election IDs share the token namespace, so a miss on one falls through
	// to the other. Reissuing a ballot link supersedes the voter's prior one.
	topic := render.TopicSigningLink
	var payloadFields map[string]string
	var ballotVoterID string
	rec, err := s.app.Records.Get(ctx, req.RecordID)
	switch {
	case err == nil:
		payloadFields = map[string]string{
			"record_kind": string(rec.Kind),
			"role":        req.TargetRef,
		}
	case apperrors.CodeOf(err) == apperrors.CodeRecordNotFound:
		e, electionErr := s.app.Elections.Get(ctx, req.RecordID)
		if electionErr != nil {
			writeError(w, err, false)
			return
		}
		registered := false
		for _, voter := range e.Voters {
			if voter.ID == req.TargetRef {
				registered = true
				break
			}
		}
		if !registered {
			writeError(w, apperrors.WithMetadata(apperrors.CodeVoterNotFound,
				"voter is not registered for this election",
				map[string]string{"election_id": e.ID, "voter_id": req.TargetRef}), false)
			return
		}
		topic = render.TopicBallotInvite
		payloadFields = map[string]string{"election_title": e.Title}
		ballotVoterID = req.TargetRef
	default:
		writeError(w, err, false)
		return
	}

	issued, err := s.app.Tokens.Issue(ctx, token.IssueInput{
		RecordID:  req.RecordID,
		TargetRef: req.TargetRef,
		Recipient: req.Recipient,
		TTL:       ttl,
	})
	if err != nil {
		writeError(w, err, false)
		return
	}
	if ballotVoterID != "" {
		if err := s.app.Elections.AttachVoterToken(ctx, req.RecordID, ballotVoterID, issued.Token.ID); err != nil {
			writeError(w, err, false)
			return
		}
	}

	payload, _ := json.Marshal(payloadFields)
	warning := s.dispatchLink(ctx, notify.DispatchInput{
		Recipient:   issued.Token.Recipient,
		Topic:       topic,
		PayloadJSON: string(payload),
		Link:        issued.Link,
		Locale:      req.Locale,
	})

	writeJSON(w, http.StatusCreated, issueTokenResponse{
		TokenID:   issued.Token.ID,
		RecordID:  issued.Token.RecordID,
		TargetRef: issued.Token.TargetRef,
		ExpiresAt: issued.Token.ExpiresAt,
		Link:      issued.Link,
		Warning:   warning,
	})
}

type previewTokenResponse struct {
	TokenID   string    `json:"token_id"`
	RecordID  string    `json:"record_id"`
	TargetRef string    `json:"target_ref"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handlePreviewToken serves the unauthenticated link landing view, so every
// failure is redacted to the generic unauthorized body.
func (s *Server) handlePreviewToken(w http.ResponseWriter, r *http.Request) {
	preview, err := s.app.Tokens.Preview(r.Context(), r.PathValue("grant"))
	if err != nil {
		writeError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, previewTokenResponse{
		TokenID:   preview.TokenID,
		RecordID:  preview.RecordID,
		TargetRef: preview.TargetRef,
		ExpiresAt: preview.ExpiresAt,
	})
}

// dispatchLink attempts one link delivery and reduces any failure to a
// warning string. Issuance never fails because a message could not be sent.
func (s *Server) dispatchLink(ctx context.Context, input notify.DispatchInput) string {
	if s.dispatcher == nil {
		return "link delivery is not configured"
	}

	outcome, err := s.dispatcher.Dispatch(ctx, input)
	if err != nil {
		log.Printf("dispatch link: %v", err)
		return "link could not be queued for delivery"
	}
	if outcome.Status != notifystorage.DeliveryStatusDelivered {
		return "link delivery failed and will be retried"
	}
	return ""
}
