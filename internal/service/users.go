package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/blob"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/repository"
	"go.uber.org/zap"
)

// validate checks the same tags gin's binding layer uses, so a caller that
// skips the HTTP API gets the same answers.
var validate = validator.New()

// AuthResult is returned by Signup and Login. The client sends Token as
// "Authorization: Bearer <token>" afterwards.
type AuthResult struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", apperr.InvalidArg("invalid email address")
	}
	return email, nil
}

func (s *Service) Signup(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validate.Var(password, "required,min=8"); err != nil {
		return nil, apperr.InvalidArg("password must be at least 8 characters")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperr.InvalidArg("display name is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, s.fail("hash password", err)
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    s.clock(),
	}
	if err := s.store.Users().Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.InvalidOperation("email already registered")
		}
		return nil, s.fail("create user", err)
	}
	return s.issueToken(ctx, u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, s.fail("get user by email", err)
	}
	// Same answer for unknown email and wrong password.
	if u == nil || !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	return s.issueToken(ctx, u)
}

func (s *Service) issueToken(ctx context.Context, u *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(u.ID, u.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, s.fail("generate token", err)
	}
	return &AuthResult{Token: token, User: s.summary(ctx, u)}, nil
}

// GetMe returns nil for anonymous callers and for tokens whose user no
// longer exists.
func (s *Service) GetMe(ctx context.Context, p auth.Principal) (*models.UserSummary, error) {
	if !p.Authenticated() {
		return nil, nil
	}
	u, err := s.store.Users().GetByID(ctx, p.UserID)
	if err != nil {
		return nil, s.fail("get user", err)
	}
	if u == nil {
		return nil, nil
	}
	sum := s.summary(ctx, u)
	return &sum, nil
}

// GenerateUploadURL hands out a presigned PUT target. The returned
// StorageRef is what the client later attaches to a message or avatar.
func (s *Service) GenerateUploadURL(ctx context.Context, p auth.Principal) (*blob.Upload, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionGenerateUploadURL, p); err != nil {
		return nil, err
	}
	if s.blob == nil {
		return nil, s.fail("generate upload url", errors.New("blob storage is not configured"))
	}
	up, err := s.blob.GenerateUploadURL(ctx)
	if err != nil {
		return nil, s.fail("generate upload url", err)
	}
	return up, nil
}

func (s *Service) SetAvatar(ctx context.Context, p auth.Principal, storageRef string) (*models.UserSummary, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	if !blob.ValidRef(storageRef) {
		return nil, apperr.InvalidArg("invalid storage reference")
	}
	if err := s.store.Users().SetAvatar(ctx, p.UserID, storageRef); err != nil {
		return nil, s.fail("set avatar", err)
	}
	return s.GetMe(ctx, p)
}

// summary projects a user, resolving the avatar if there is one. A failed
// resolution leaves AvatarURL empty.
func (s *Service) summary(ctx context.Context, u *models.User) models.UserSummary {
	sum := models.UserSummary{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
	if u.AvatarRef != "" && s.blob != nil {
		url, err := s.blob.GetURL(ctx, u.AvatarRef)
		if err != nil {
			s.logger.Warn("resolve avatar", zap.String("user_id", u.ID.String()), zap.Error(err))
		} else {
			sum.AvatarURL = url
		}
	}
	return sum
}

// summaries loads and projects the given users. Unknown IDs are skipped.
func (s *Service) summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserSummary, error) {
	users, err := s.store.Users().GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.UserSummary, len(users))
	for id, u := range users {
		u := u // per-iteration copy (pre-Go 1.22 loopvar semantics)
		out[id] = s.summary(ctx, &u)
	}
	return out, nil
}
