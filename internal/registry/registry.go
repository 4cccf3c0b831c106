// Package registry owns the per-account sync stacks of the process.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"zont-sync-backend/internal/command"
	"zont-sync-backend/internal/engine"
	"zont-sync-backend/internal/zont"
)

// Account bundles everything that serves one cloud account.
type Account struct {
	ID         string
	Engine     *engine.Engine
	Dispatcher *command.Dispatcher
	Client     *zont.Client

	cancel context.CancelFunc
	done   chan struct{}
}

// Registry maps account ids to their running stacks.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	accounts map[string]*Account
	runCtx   context.Context
}

func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		accounts: make(map[string]*Account),
	}
}

// Add registers an account. Once StartAll has run, the account's engine is
// started right away.
func (r *Registry) Add(acc *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[acc.ID]; exists {
		return fmt.Errorf("account %q is already registered", acc.ID)
	}
	r.accounts[acc.ID] = acc
	if r.runCtx != nil {
		r.start(acc)
	}
	return nil
}

// Get looks an account up by id.
func (r *Registry) Get(id string) (*Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[id]
	return acc, ok
}

// Accounts returns all accounts ordered by id.
func (r *Registry) Accounts() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartAll runs the engine of every registered account until ctx is done or
// the registry is shut down.
func (r *Registry) StartAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runCtx = ctx
	for _, acc := range r.accounts {
		r.start(acc)
	}
}

// Remove stops an account's engine and forgets the account.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	acc, ok := r.accounts[id]
	delete(r.accounts, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	stop(acc)
	r.logger.Info("account removed", zap.String("account", id))
	return true
}

// Shutdown stops every engine and waits for them to return.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	accounts := make([]*Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		accounts = append(accounts, acc)
	}
	r.runCtx = nil
	r.mu.Unlock()

	for _, acc := range accounts {
		stop(acc)
	}
	r.logger.Info("all sync engines stopped", zap.Int("accounts", len(accounts)))
}

// start must be called with r.mu held.
func (r *Registry) start(acc *Account) {
	if acc.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.runCtx)
	acc.cancel = cancel
	acc.done = make(chan struct{})
	go func() {
		defer close(acc.done)
		acc.Engine.Run(ctx)
	}()
}

func stop(acc *Account) {
	if acc.cancel == nil {
		return
	}
	acc.cancel()
	<-acc.done
}
