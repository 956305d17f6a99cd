package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/auth/password"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	sessions domain.SessionStore
	clock    clock.Clock
	genID    *snowflake.Node
	cfg      config.Config
}

func New(log *zap.Logger, repo domain.Repository, sessions domain.SessionStore, clk clock.Clock, genID *snowflake.Node, cfg config.Config) domain.Service {
	return &Service{
		log:      log.Named("auth.service"),
		repo:     repo,
		sessions: sessions,
		clock:    clk,
		genID:    genID,
		cfg:      cfg,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrWeakPassword, err)
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:                  s.genID.Generate(),
		Email:               email,
		PasswordHash:        &hashed,
		IsDefault:           req.IsDefault,
		LastPasswordChanged: &now,
		Metadata:            datatypes.JSONMap{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and signs the device in. The resulting session
// change is announced by the session store.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Identity, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, domain.ErrInvalidDevice
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	log := logger.WithContext(ctx, s.log)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			log.Debug("login for unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash) {
		log.Debug("login with wrong password", zap.String("user_id", user.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}

	now := s.clock.Now().UTC()
	identity := &domain.Identity{
		ID:        user.ID.String(),
		Email:     user.Email,
		SessionID: ulid.Make().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.SignIn(ctx, deviceID, identity); err != nil {
		return nil, err
	}

	log.Info("signed in",
		zap.String("user_id", identity.ID),
		zap.String("session_id", identity.SessionID),
		zap.String("user_agent", strings.TrimSpace(req.UserAgent)),
	)
	return identity, nil
}

func (s *Service) Logout(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return domain.ErrInvalidDevice
	}
	return s.sessions.SignOut(ctx, deviceID)
}

// Extend pushes the expiry of the device session forward. The identity id is
// unchanged, so watchers keep their cached profile.
func (s *Service) Extend(ctx context.Context, deviceID string) (*domain.Identity, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, domain.ErrInvalidDevice
	}
	return s.sessions.Extend(ctx, deviceID, s.clock.Now().UTC().Add(s.cfg.SessionTTL))
}

func (s *Service) ChangePassword(ctx context.Context, userID string, newPassword string) error {
	if err := password.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWeakPassword, err)
	}

	id, err := snowflake.ParseString(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	fields := map[string]any{
		"password_hash":         hashed,
		"last_password_changed": &now,
		"is_default":            false,
		"updated_at":            now,
	}

	return s.repo.UpdateFields(ctx, id, fields)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}
