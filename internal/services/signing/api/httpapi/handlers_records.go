package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sheqdesk/signing/internal/services/signing/domain/record"
)

const (
	defaultBodyLimit = 64 << 10
	// Base64 expansion plus envelope headroom over the raw signature cap.
	signBodyLimit = record.MaxSignatureBytes*2 + (4 << 10)
)

type slotView struct {
	Role      string     `json:"role"`
	Position  int        `json:"position"`
	Signed    bool       `json:"signed"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`
	SignedVia string     `json:"signed_via,omitempty"`
}

type recordView struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Slots       []slotView      `json:"slots"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
}

func toRecordView(rec record.Record) recordView {
	view := recordView{
		ID:          rec.ID,
		Kind:        string(rec.Kind),
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		FinalizedAt: rec.FinalizedAt,
	}
	if rec.PayloadJSON != "" {
		view.Payload = json.RawMessage(rec.PayloadJSON)
	}
	for _, slot := range rec.Slots {
		view.Slots = append(view.Slots, slotView{
			Role:      slot.Role,
			Position:  slot.Position,
			Signed:    slot.Signed(),
			SignedAt:  slot.SignedAt,
			SignedVia: string(slot.SignedVia),
		})
	}
	return view
}

type createRecordRequest struct {
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	SignerRoles []string        `json:"signer_roles"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "records.create")
	defer span.End()

	var req createRecordRequest
	if !decodeBody(w, r, defaultBodyLimit, &req) {
		return
	}

	rec, err := s.app.Records.Create(ctx, record.CreateInput{
		Kind:        req.Kind,
		PayloadJSON: string(req.Payload),
		SlotRoles:   req.SignerRoles,
	})
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordView(rec))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.app.Records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (s *Server) handleSubmitRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "records.submit")
	defer span.End()

	rec, err := s.app.Records.Submit(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

type signRecordRequest struct {
	Role         string `json:"role"`
	SignaturePNG []byte `json:"signature_png"`
	Via          string `json:"via"`
	Grant        string `json:"grant,omitempty"`
}

func (s *Server) handleSignRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "records.sign")
	defer span.End()

	var req signRecordRequest
	if !decodeBody(w, r, signBodyLimit, &req) {
		return
	}

	// A grant identifies an unauthenticated link holder; token-security
	// detail is withheld from this caller.
	remote := req.Grant != ""

	var tokenID string
	if remote {
		tok, err := s.app.Tokens.Resolve(ctx, req.Grant)
		if err != nil {
			writeError(w, err, true)
			return
		}
		tokenID = tok.ID
	}

	rec, err := s.app.Records.SignSlot(ctx, record.SignInput{
		RecordID:       r.PathValue("id"),
		Role:           req.Role,
		SignatureImage: req.SignaturePNG,
		Via:            req.Via,
		TokenID:        tokenID,
	})
	if err != nil {
		writeError(w, err, remote)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (s *Server) handleVoidRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "records.void")
	defer span.End()

	rec, err := s.app.Records.Void(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}
