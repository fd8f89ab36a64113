// Package services contains server-side business logic. This file implements
// UserService, which owns the credential lifecycle: registration, login and
// session tokens, password recovery through a security question, and the
// authenticated self-service updates.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/dbx"
	"github.com/dmitrijs2005/consejo/internal/logging"
	"github.com/dmitrijs2005/consejo/internal/server/auth"
	"github.com/dmitrijs2005/consejo/internal/server/config"
	"github.com/dmitrijs2005/consejo/internal/server/models"
	"github.com/dmitrijs2005/consejo/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides the credential operations. It keeps no state between
// calls: the two recovery steps are independent requests and each one
// revalidates everything it needs.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	hasher                       auth.Hasher
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	defaultUnitName              string

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.Hasher, log logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		log:                          log.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		defaultUnitName:              cfg.DefaultUnitName,
	}
}

// Register creates an administrator account. The username is checked for
// availability before anything is hashed; the unit lookup/creation and the
// user insert share one transaction. Register does not log the user in.
func (s *UserService) Register(ctx context.Context, in SignUpInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	_, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, in.Username)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateUsername
	case !errors.Is(err, common.ErrorNotFound):
		return nil, s.storeFailure(ctx, "register: lookup", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "register: hash password", err)
	}
	answerHash, err := s.hasher.Hash(auth.NormalizeAnswer(in.SecurityAnswer))
	if err != nil {
		return nil, s.internal(ctx, "register: hash answer", err)
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		unitID, err := ResolveUnit(ctx, s.repomanager.Units(tx), in.UnitName, s.defaultUnitName)
		if err != nil {
			return fmt.Errorf("error resolving unit: %w", err)
		}
		created, err = s.repomanager.Users(tx).Create(ctx, &models.User{
			UserName:           in.Username,
			PasswordHash:       passwordHash,
			Role:               models.RoleAdmin,
			UnitID:             &unitID,
			SecurityQuestion:   in.SecurityQuestion,
			SecurityAnswerHash: answerHash,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUsername) {
			return nil, common.ErrDuplicateUsername
		}
		return nil, s.storeFailure(ctx, "register: persist", err)
	}

	s.log.Info(ctx, "user registered", "username", created.UserName, "user_id", created.ID)
	return created, nil
}

// VerifyLogin checks a username/password pair and returns the user id.
// Unknown users and wrong passwords both yield common.ErrAuthFailed, and
// both cost one bcrypt comparison.
func (s *UserService) VerifyLogin(ctx context.Context, userName string, password string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(s.getDummyHash(), password)
			s.log.Warn(ctx, "login failed", "username", userName)
			return "", common.ErrAuthFailed
		}
		return "", s.storeFailure(ctx, "login: lookup", err)
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		s.log.Warn(ctx, "login failed", "username", userName)
		return "", common.ErrAuthFailed
	}
	return user.ID, nil
}

// Login verifies the credentials and, on success, returns a new TokenPair.
func (s *UserService) Login(ctx context.Context, userName string, password string) (*TokenPair, error) {
	userID, err := s.VerifyLogin(ctx, userName, password)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, userID, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.storeFailure(ctx, "refresh: lookup", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		if errors.Is(err, common.ErrorInternal) {
			return nil, err
		}
		return nil, s.storeFailure(ctx, "refresh: rotate", err)
	}
	return pair, nil
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return common.NewValidationError("refresh_token", "required")
	}
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return s.storeFailure(ctx, "logout", err)
	}
	return nil
}

// LookupSecurityQuestion is the first recovery step: it returns the question
// stored for username. The caller carries username and question forward to
// ResetPasswordWithSecurity.
func (s *UserService) LookupSecurityQuestion(ctx context.Context, userName string) (string, error) {
	user, err := s.findForRecovery(ctx, userName)
	if err != nil {
		return "", err
	}
	return user.SecurityQuestion, nil
}

// ResetPasswordWithSecurity is the second recovery step. It can be called
// without the first one and repeats every check itself. On success the
// password hash is replaced and all refresh tokens of the account are
// revoked in the same transaction.
func (s *UserService) ResetPasswordWithSecurity(ctx context.Context, userName, answer, newPassword string) error {
	if e := checkPassword("new_password", newPassword); e != nil {
		return e
	}

	user, err := s.findForRecovery(ctx, userName)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(user.SecurityAnswerHash, auth.NormalizeAnswer(answer)) {
		s.log.Warn(ctx, "security answer mismatch", "username", user.UserName)
		return common.ErrAnswerMismatch
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "reset: hash password", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}
		return s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return s.storeFailure(ctx, "reset: persist", err)
	}

	s.log.Info(ctx, "password reset via security question", "username", user.UserName, "user_id", user.ID)
	return nil
}

// ChangePassword replaces the password of the session owner after proving
// knowledge of the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	if err := common.JoinValidation(checkNewPassword("new_password", newPassword, confirmPassword)); err != nil {
		return err
	}

	user, err := s.authorize(ctx, userID, currentPassword)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "change password: hash", err)
	}
	if err := s.repomanager.Users(s.db).UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnauthenticated
		}
		return s.storeFailure(ctx, "change password: persist", err)
	}

	s.log.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// UpdateSecurityQA replaces the security question and answer of the session
// owner. Both are written by one statement.
func (s *UserService) UpdateSecurityQA(ctx context.Context, userID, currentPassword, question, answer string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	if err := common.JoinValidation(checkSecurityQA(question, answer)); err != nil {
		return err
	}

	user, err := s.authorize(ctx, userID, currentPassword)
	if err != nil {
		return err
	}

	answerHash, err := s.hasher.Hash(auth.NormalizeAnswer(answer))
	if err != nil {
		return s.internal(ctx, "update security: hash", err)
	}
	if err := s.repomanager.Users(s.db).UpdateSecurityQA(ctx, user.ID, question, answerHash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnauthenticated
		}
		return s.storeFailure(ctx, "update security: persist", err)
	}

	s.log.Info(ctx, "security question updated", "user_id", user.ID)
	return nil
}

// Profile returns the account of the session owner.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, s.storeFailure(ctx, "profile", err)
	}
	return user, nil
}

// --- helpers below ---

// findForRecovery loads the account targeted by a recovery step.
func (s *UserService) findForRecovery(ctx context.Context, userName string) (*models.User, error) {
	if strings.TrimSpace(userName) == "" {
		return nil, common.NewValidationError("username", "required")
	}
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, s.storeFailure(ctx, "recovery: lookup", err)
	}
	if !user.SecurityConfigured() {
		return nil, common.ErrSecurityNotConfigured
	}
	return user, nil
}

// authorize loads the session owner and checks the current password.
// A user id that no longer resolves counts as no session.
func (s *UserService) authorize(ctx context.Context, userID, currentPassword string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, s.storeFailure(ctx, "authorize: lookup", err)
	}
	if !s.hasher.Verify(user.PasswordHash, currentPassword) {
		s.log.Warn(ctx, "current password rejected", "user_id", user.ID)
		return nil, common.ErrCurrentPasswordIncorrect
	}
	return user, nil
}

// getDummyHash returns a valid hash used to spend the same time on unknown
// usernames as on wrong passwords.
func (s *UserService) getDummyHash() string {
	s.dummyOnce.Do(func() {
		plain, _ := common.MakeRandHexString(16)
		h, err := s.hasher.Hash(plain)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *UserService) storeFailure(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, "store failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", common.ErrStoreFailure, op, err)
}

func (s *UserService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, "internal error", "op", op, "error", err)
	return fmt.Errorf("%w: %s", common.ErrorInternal, op)
}

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		s.log.Error(ctx, "store failure", "op", "issue refresh token", "error", err)
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
