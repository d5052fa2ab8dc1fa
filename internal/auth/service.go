package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/medichat/internal"
	"golang.org/x/crypto/bcrypt"
)

var ErrAccountNotFound = errors.New("account not found")

type RepositoryAPI interface {
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByID(ctx context.Context, userID string) (*Account, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(account Account) (string, error)
	GenerateRefreshToken(account Account) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

type Service struct {
	repo       RepositoryAPI
	tokens     TokenGeneratorAPI
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, tokens TokenGeneratorAPI, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Authenticate checks the credentials and issues a token pair.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	account, err := s.repo.GetAccountByEmail(ctx, dto.Email)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			s.logger.Error("failed to load account for login", "error", err)
			return AuthTokens{}, internal.NewInternalError("Authentication failed", err)
		}
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Warn("login with wrong password", "user_id", account.ID)
		return AuthTokens{}, internal.ErrInvalidCredentials
	}
	if !account.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	s.logger.Info("user logged in", "user_id", account.ID)
	return s.issue(*account)
}

// RefreshTokens exchanges a refresh token for a new pair. The account is
// reloaded so role changes and deactivation take effect.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	account, err := s.loadActive(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, err
	}
	return s.issue(*account)
}

// Identify resolves an access token into the caller it was issued to.
func (s *Service) Identify(ctx context.Context, accessToken string) (internal.Caller, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return internal.Caller{}, err
	}

	account, err := s.loadActive(ctx, claims.UserID)
	if err != nil {
		return internal.Caller{}, err
	}
	return internal.Caller{ID: account.ID, Email: account.Email, Role: account.Role}, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) loadActive(ctx context.Context, userID string) (*Account, error) {
	account, err := s.repo.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, internal.ErrInvalidToken
		}
		s.logger.Error("failed to load account", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("Authentication failed", err)
	}
	if !account.IsActive {
		return nil, internal.ErrUserInactive
	}
	return account, nil
}

func (s *Service) issue(account Account) (AuthTokens, error) {
	access, err := s.tokens.GenerateAccessToken(account)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("Failed to issue token", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(account)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("Failed to issue token", err)
	}

	tokens := AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	if gen, ok := s.tokens.(*JWTTokenGenerator); ok {
		tokens.ExpiresIn = int64(gen.AccessTokenTTL.Seconds())
	}
	return tokens, nil
}
