// Package httpapi exposes the signing core as a JSON HTTP surface.
package httpapi

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	notify "github.com/sheqdesk/signing/internal/services/notify/domain"
	"github.com/sheqdesk/signing/internal/services/signing/app"
)

// Server bundles the signing services behind an http.Handler.
type Server struct {
	app        *app.App
	dispatcher *notify.Dispatcher
	tracer     trace.Tracer
}

// New wires a server. The dispatcher may be nil; token issuance then skips
// link delivery and reports a warning.
func New(application *app.App, dispatcher *notify.Dispatcher) *Server {
	return &Server{
		app:        application,
		dispatcher: dispatcher,
		tracer:     otel.Tracer("sheqdesk.signing.httpapi"),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc(http.MethodPost+" /records", s.handleCreateRecord)
	mux.HandleFunc(http.MethodGet+" /records/{id}", s.handleGetRecord)
	mux.HandleFunc(http.MethodPost+" /records/{id}/submit", s.handleSubmitRecord)
	mux.HandleFunc(http.MethodPost+" /records/{id}/sign", s.handleSignRecord)
	mux.HandleFunc(http.MethodPost+" /records/{id}/void", s.handleVoidRecord)

	mux.HandleFunc(http.MethodPost+" /tokens", s.handleIssueToken)
	mux.HandleFunc(http.MethodGet+" /tokens/{grant}", s.handlePreviewToken)

	mux.HandleFunc(http.MethodPost+" /elections", s.handleCreateElection)
	mux.HandleFunc(http.MethodGet+" /elections/{id}", s.handleGetElection)
	mux.HandleFunc(http.MethodPost+" /elections/{id}/candidates", s.handleAddCandidate)
	mux.HandleFunc(http.MethodPost+" /elections/{id}/voters", s.handleAddVoter)
	mux.HandleFunc(http.MethodPost+" /elections/{id}/open", s.handleOpenElection)
	mux.HandleFunc(http.MethodPost+" /elections/{id}/votes", s.handleCastVote)
	mux.HandleFunc(http.MethodPost+" /elections/{id}/close", s.handleCloseElection)
}
