package app

import (
	"fmt"
	"time"

	"github.com/sheqdesk/signing/internal/platform/id"
	"github.com/sheqdesk/signing/internal/services/signing/domain/election"
	"github.com/sheqdesk/signing/internal/services/signing/domain/record"
	"github.com/sheqdesk/signing/internal/services/signing/domain/token"
	"github.com/sheqdesk/signing/internal/services/signing/storage/sqlite"
)

// App bundles the signing domain services over one shared store. Records,
// tokens, and elections share a database so every token redemption commits
// in the same transaction as the write it authorizes.
type App struct {
	Records   *record.Service
	Tokens    *token.Service
	Elections *election.Service

	store *sqlite.Store
}

// New opens the store at dbPath and wires the domain services.
func New(dbPath string, tokenCfg token.Config) (*App, error) {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open signing store: %w", err)
	}

	grantCfg, err := tokenCfg.GrantConfig(time.Now)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("token grant config: %w", err)
	}

	return &App{
		Records:   record.NewService(recordStore{store: store}, time.Now, id.NewID),
		Tokens:    token.NewService(tokenStore{store: store}, tokenCfg, grantCfg, time.Now, id.NewID),
		Elections: election.NewService(electionStore{store: store}, time.Now, id.NewID),
		store:     store,
	}, nil
}

// Close releases the underlying store.
func (a *App) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}
