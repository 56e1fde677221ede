package credentials

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/jwt"
	"guildchat-backend/internal/keyValue"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/validator"
)

const bcryptCost = 10

var errInvalidLogin = apperrors.NotFound("Invalid username or password")

// UserStore is the part of the identity store the credential service needs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Taken(ctx context.Context, username string, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

type Service struct {
	users     UserStore
	sugar     *zap.SugaredLogger
	providers map[string]models.OIDCProvider
	verifiers *verifierCache
}

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

func New(users UserStore, sugar *zap.SugaredLogger, providers []models.OIDCProvider) *Service {
	byName := make(map[string]models.OIDCProvider, len(providers))
	for _, provider := range providers {
		byName[provider.Name] = provider
	}

	return &Service{
		users:     users,
		sugar:     sugar,
		providers: byName,
		verifiers: newVerifierCache(),
	}
}

func refreshKey(tokenID string) string {
	return "refresh_token:" + tokenID
}

func (s *Service) Register(ctx context.Context, username string, email string, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validator.Username(username); err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("Invalid username: %s", err))
	}
	if err := validator.Email(email); err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("Invalid email: %s", err))
	}
	if err := validator.Password(password); err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("Invalid password: %s", err))
	}

	taken, err := s.users.Taken(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.Conflict("Username or email already exists")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		UserName: username,
		Email:    email,
		Password: passwordHash,
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sugar.Infof("Registered user [%s] with ID [%d]", user.UserName, user.ID)
	return user, nil
}

// Login answers every failure the same way so callers can't probe which usernames exist.
func (s *Service) Login(ctx context.Context, login string, password string) (*Session, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return nil, errInvalidLogin
	} else if err != nil {
		return nil, err
	}

	if len(user.Password) == 0 {
		return nil, errInvalidLogin
	}

	err = bcrypt.CompareHashAndPassword(user.Password, []byte(password))
	if err != nil {
		s.sugar.Debugf("Wrong password for user ID [%d]", user.ID)
		return nil, errInvalidLogin
	}

	return s.issue(user)
}

func (s *Service) issue(user *models.User) (*Session, error) {
	accessToken, err := jwt.CreateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	refreshToken, tokenID, err := jwt.CreateRefreshToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	err = keyValue.Set(refreshKey(tokenID), fmt.Sprint(user.ID), jwt.RefreshLifetime())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &Session{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) revoke(tokenID string) {
	if tokenID == "" {
		return
	}
	if err := keyValue.Del(refreshKey(tokenID)); err != nil {
		s.sugar.Error(err)
	}
}

// Refresh rotates a refresh token. The old token is revoked in every outcome except a
// missing cookie.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperrors.Unauthenticated("Refresh token not found")
	}

	claims, err := jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.sugar.Debug(err)
		s.revoke(jwt.UnverifiedTokenID(refreshToken))
		return nil, apperrors.Forbidden("Invalid refresh token")
	}

	stored, err := keyValue.GetDel(refreshKey(claims.ID))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if stored == "" {
		return nil, apperrors.Forbidden("Refresh token was revoked")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return nil, apperrors.Forbidden("User no longer exists")
	} else if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.Unauthenticated("Refresh token not found")
	}

	s.revoke(jwt.UnverifiedTokenID(refreshToken))
	return nil
}

// IsRevoked reports whether a refresh token id is no longer accepted.
func IsRevoked(tokenID string) (bool, error) {
	exists, err := keyValue.Exists(refreshKey(tokenID))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

