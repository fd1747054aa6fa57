package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/logging"
	"github.com/admitflow/admitflow/internal/server/auth"
	sc "github.com/admitflow/admitflow/internal/server/config"
	"github.com/admitflow/admitflow/internal/server/models"
	"github.com/admitflow/admitflow/internal/server/repositories/repomanager"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService handles registration, login and refresh token rotation.
type UserService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	config *sc.Config
	logger logging.Logger
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, config *sc.Config, logger logging.Logger) *UserService {
	return &UserService{db: db, repos: repos, config: config, logger: logger.With("component", "user_service")}
}

func (s *UserService) Register(ctx context.Context, email string, password []byte) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.repos.Users(s.db).Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "email", email)
	return user, nil
}

func (s *UserService) issueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, []byte(s.config.SecretKey), s.config.AccessTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	refresh := uuid.NewString()
	err = s.repos.RefreshTokens(s.db).Create(ctx, userID, refresh, s.config.RefreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *UserService) Login(ctx context.Context, email string, password []byte) (*TokenPair, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, password); err != nil {
		return nil, common.ErrUnauthorized
	}

	return s.issueTokens(ctx, user.ID)
}

// Refresh rotates a refresh token: the presented token is deleted and a new
// pair is issued. An expired token is removed and reported.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repos.RefreshTokens(s.db)

	stored, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}

	if err := repo.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}

	if time.Now().After(stored.ExpiresAt) {
		return nil, common.ErrRefreshTokenExpired
	}

	return s.issueTokens(ctx, stored.UserID)
}
