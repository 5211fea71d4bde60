// Package gateway is the only write path to the listings collection.
// It validates input, stamps the author, and issues the backend write;
// it never echoes results locally. New records become visible when the
// synchronizer delivers the next snapshot, not before.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/session"
)

const (
	// DefaultWriteTimeout bounds a single create or delete so a hung
	// backend cannot leave the gateway submitting forever.
	DefaultWriteTimeout = 10 * time.Second
)

// createInput is what Create validates after trimming.
type createInput struct {
	Name        string `validate:"required,max=120"`
	Description string `validate:"max=2000"`
}

// Gateway issues creates and deletes against the listings collection.
type Gateway struct {
	store   backend.ListingStore
	boot    *session.Bootstrapper
	logger  logger.Logger
	timeout time.Duration

	validate   *validator.Validate
	submitting atomic.Bool
}

// New creates a gateway. timeout <= 0 falls back to the default write
// timeout.
func New(store backend.ListingStore, boot *session.Bootstrapper, timeout time.Duration, log logger.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Gateway{
		store:    store,
		boot:     boot,
		logger:   log,
		timeout:  timeout,
		validate: validator.New(),
	}
}

// Create validates the input and writes a new listing authored by the
// current identity. The backend assigns id and creation timestamp; the
// returned id is all the caller learns until the next snapshot.
//
// Creates are single-flight: a second call while one is awaiting
// acknowledgement fails with ErrCreateInFlight and performs no write.
func (g *Gateway) Create(ctx context.Context, name, description string) (string, error) {
	identity := g.boot.Identity()
	if identity == nil {
		return "", domain.ErrNotAuthenticated
	}

	input := createInput{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	if err := g.validate.Struct(input); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidListing, err)
	}

	if !g.submitting.CompareAndSwap(false, true) {
		return "", domain.ErrCreateInFlight
	}
	defer g.submitting.Store(false)

	writeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	listing := domain.NewListing("", identity.UID, input.Name, input.Description)
	id, err := g.store.CreateListing(writeCtx, listing)
	if err != nil {
		g.logger.Error("create listing failed",
			logger.String("name", input.Name),
			logger.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrWriteFailed, err)
	}

	g.logger.Info("listing created",
		logger.String("id", id),
		logger.String("name", input.Name),
		logger.String("author", identity.UID))
	return id, nil
}

// Delete removes a listing. Any identity may delete any listing; the
// collection is shared on purpose. Deleting an id that no longer exists
// succeeds silently.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	identity := g.boot.Identity()
	if identity == nil {
		return domain.ErrNotAuthenticated
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", domain.ErrInvalidListing)
	}

	writeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.store.DeleteListing(writeCtx, id); err != nil {
		g.logger.Error("delete listing failed",
			logger.String("id", id),
			logger.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrWriteFailed, err)
	}

	g.logger.Info("listing deleted",
		logger.String("id", id),
		logger.String("by", identity.UID))
	return nil
}

// Submitting reports whether a create is currently awaiting backend
// acknowledgement.
func (g *Gateway) Submitting() bool {
	return g.submitting.Load()
}
