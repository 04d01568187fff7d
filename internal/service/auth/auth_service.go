// internal/service/auth/auth_service.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maproom-service/internal/domain/auth"
	xerrors "maproom-service/internal/pkg/errors"
	"maproom-service/internal/pkg/jwt"
	"maproom-service/internal/pkg/session"
	"maproom-service/internal/repository/postgres"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	authRepo       *postgres.AuthRepository
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	accessTTL      time.Duration
	logger         *zap.Logger
}

func NewAuthService(
	authRepo *postgres.AuthRepository,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	rateLimiter *session.RateLimiter,
	accessTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		authRepo:       authRepo,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		accessTTL:      accessTTL,
		logger:         logger,
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, req *auth.RegisterRequest) (*auth.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &auth.User{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Roles:        []string{"user"},
		Status:       auth.StatusActive,
	}

	if err := s.authRepo.Create(ctx, user); err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			return nil, fmt.Errorf("%w: email already registered", xerrors.ErrDuplicateEntry)
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and opens a session. Attempts are rate-limited
// per (ip, email); the counter resets on success.
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest, ip, userAgent string) (*auth.LoginResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, ip, req.Email)
	if err != nil {
		s.logger.Warn("rate limiter unavailable, allowing attempt", zap.Error(err))
	} else if !allowed {
		return nil, fmt.Errorf("%w: too many login attempts", xerrors.ErrRateLimited)
	}

	user, err := s.authRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			s.logger.Info("login failed, unknown email", zap.Int64("attempts_remaining", remaining))
			return nil, xerrors.ErrUnauthorized
		}
		return nil, err
	}

	if user.Status != auth.StatusActive {
		return nil, fmt.Errorf("%w: account is deactivated", xerrors.ErrForbidden)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("login failed, bad password",
			zap.Int64("user_id", user.ID), zap.Int64("attempts_remaining", remaining))
		return nil, xerrors.ErrUnauthorized
	}

	accessToken, jti, err := s.jwtManager.GenerateAccessToken(user.ID, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, _, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	if err := s.sessionManager.CreateSession(ctx, &session.SessionData{
		JTI:            jti,
		IdentityID:     user.ID,
		Email:          user.Email,
		Roles:          user.Roles,
		IPAddress:      ip,
		UserAgent:      userAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.accessTTL),
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.rateLimiter.ResetLoginAttempts(ctx, ip, req.Email); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}
	if err := s.authRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to stamp last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("jti", jti))

	return &auth.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh access token and session
func (s *AuthService) Refresh(ctx context.Context, req *auth.RefreshRequest) (*auth.LoginResponse, error) {
	claims, err := s.jwtManager.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	user, err := s.authRepo.FindByID(ctx, claims.IdentityID)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	if user.Status != auth.StatusActive {
		return nil, fmt.Errorf("%w: account is deactivated", xerrors.ErrForbidden)
	}

	accessToken, jti, err := s.jwtManager.GenerateAccessToken(user.ID, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := time.Now()
	if err := s.sessionManager.CreateSession(ctx, &session.SessionData{
		JTI:            jti,
		IdentityID:     user.ID,
		Email:          user.Email,
		Roles:          user.Roles,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.accessTTL),
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &auth.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: req.RefreshToken,
		User:         user,
	}, nil
}

// ValidateToken verifies an access token and its backing session. Used by
// the auth middleware on every authenticated request.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.VerifyAccessToken(token)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	if _, err := s.sessionManager.GetSession(ctx, claims.IdentityID, claims.ID); err != nil {
		return nil, err
	}

	if err := s.sessionManager.TouchSession(ctx, claims.IdentityID, claims.ID); err != nil {
		s.logger.Debug("failed to touch session", zap.Error(err))
	}

	return claims, nil
}

// Logout tears down the current session
func (s *AuthService) Logout(ctx context.Context, identityID int64, jti string) error {
	return s.sessionManager.DeleteSession(ctx, identityID, jti)
}

// LogoutEverywhere tears down every session of the user
func (s *AuthService) LogoutEverywhere(ctx context.Context, identityID int64) error {
	return s.sessionManager.DeleteAllSessions(ctx, identityID)
}

// ChangePassword verifies the current password, replaces it, and revokes
// every existing session.
func (s *AuthService) ChangePassword(ctx context.Context, identityID int64, req *auth.ChangePasswordRequest) error {
	user, err := s.authRepo.FindByID(ctx, identityID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("%w: current password is incorrect", xerrors.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.authRepo.UpdatePassword(ctx, identityID, string(hash)); err != nil {
		return err
	}

	if err := s.sessionManager.DeleteAllSessions(ctx, identityID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change",
			zap.Int64("user_id", identityID), zap.Error(err))
	}

	s.logger.Info("password changed", zap.Int64("user_id", identityID))
	return nil
}

// GetProfile returns the user's own account record
func (s *AuthService) GetProfile(ctx context.Context, identityID int64) (*auth.User, error) {
	return s.authRepo.FindByID(ctx, identityID)
}
