package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	serrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
)

// Tokens is the worker side of the cancellation bridge: a registry of cancellable
// contexts addressed by id. It implements shared.TokenSource.
type Tokens struct {
	logger hclog.Logger

	mu     sync.Mutex
	tokens map[string]*token
}

type token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewTokens(logger hclog.Logger) *Tokens {
	return &Tokens{
		logger: logger,
		tokens: make(map[string]*token),
	}
}

// NewToken registers a fresh cancellable context and returns its id.
func (t *Tokens) NewToken() (string, error) {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.tokens[id] = &token{ctx: ctx, cancel: cancel}
	t.mu.Unlock()

	t.logger.Debug("cancellation token issued", "token", id)
	return id, nil
}

// Cancel signals the token. Analyses holding it stop at their next checkpoint.
func (t *Tokens) Cancel(id string) error {
	t.mu.Lock()
	tok, ok := t.tokens[id]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", serrors.ErrUnknownToken, id)
	}

	t.logger.Debug("cancellation requested", "token", id)
	tok.cancel()
	return nil
}

// Release forgets the token. Releasing an unknown token is a no-op.
func (t *Tokens) Release(id string) error {
	t.mu.Lock()
	tok, ok := t.tokens[id]
	delete(t.tokens, id)
	t.mu.Unlock()

	if ok {
		tok.cancel()
	}
	return nil
}

// Context returns the context of token id. An empty id yields a context that is never cancelled.
func (t *Tokens) Context(id string) (context.Context, error) {
	if id == "" {
		return context.Background(), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	tok, ok := t.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", serrors.ErrUnknownToken, id)
	}
	return tok.ctx, nil
}

// Len returns the number of live tokens.
func (t *Tokens) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens)
}
