// Package service holds the messaging core: every operation a client can
// perform, with authorization, validation, rate limiting and persistence.
//
// Callers pass an explicit auth.Principal. Queries degrade to an empty
// result when the caller may not see something; mutations return a typed
// apperr so the transport can map it to a status code.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/blob"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/realtime"
	"github.com/lalith-99/teamchat/internal/repository"
	"go.uber.org/zap"
)

// LinkResolver turns URLs into previews. *linkpreview.Resolver satisfies it.
type LinkResolver interface {
	Resolve(ctx context.Context, urls []string) []models.LinkPreview
}

// Deps are the collaborators of a Service. Only Store is required.
type Deps struct {
	Store     repository.Store
	Limiter   ratelimit.Limiter
	Blob      blob.Storage
	Previews  LinkResolver
	Publisher realtime.Publisher
	Logger    *zap.Logger

	JWTSecret string
	TokenTTL  time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store     repository.Store
	authz     *Authority
	limiter   ratelimit.Limiter
	blob      blob.Storage
	previews  LinkResolver
	publisher realtime.Publisher
	logger    *zap.Logger
	jwtSecret string
	tokenTTL  time.Duration
	now       func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		authz:     NewAuthority(d.Store),
		limiter:   d.Limiter,
		blob:      d.Blob,
		previews:  d.Previews,
		publisher: d.Publisher,
		logger:    d.Logger,
		jwtSecret: d.JWTSecret,
		tokenTTL:  d.TokenTTL,
		now:       d.Now,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.Unlimited{}
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type nopPublisher struct{}

func (nopPublisher) Publish(uuid.UUID, realtime.Event) {}
func (nopPublisher) Evict(uuid.UUID, uuid.UUID) {}
func (nopPublisher) CloseScope(uuid.UUID) {}

// clock returns the current time at the precision Postgres stores, so a
// value read back compares equal to the one written.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// fail passes domain errors through and turns anything else into INTERNAL,
// logging the cause once.
func (s *Service) fail(op string, err error) error {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return err
	}
	s.logger.Error(op+" failed", zap.Error(err))
	return apperr.Internal(err)
}

func requireAuth(p auth.Principal) error {
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	return nil
}

func (s *Service) limit(ctx context.Context, action ratelimit.Action, p auth.Principal) error {
	return s.limiter.Limit(ctx, action, p.UserID.String())
}

func (s *Service) publish(scope models.Scope, typ string, payload any) {
	s.publisher.Publish(scope.ID(), realtime.Event{Type: typ, ScopeID: scope.ID(), Payload: payload})
}
