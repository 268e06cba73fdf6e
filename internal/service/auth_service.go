package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/madrasati/madrasati-api/internal/models"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
)

type authAccountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account, profile *models.Profile) error
	LoadProfile(ctx context.Context, account *models.Account) (*models.Profile, error)
	CountStudentsByPrincipal(ctx context.Context, principalID string) (int, error)
}

// AuthConfig defines configuration for the access-code login flow.
type AuthConfig struct {
	Secret     string
	Expiry     time.Duration
	Issuer     string
	CodeLength int
}

// AuthService authenticates access codes and issues new ones.
type AuthService struct {
	repo      authAccountRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authAccountRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.CodeLength < 8 {
		config.CodeLength = 10
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config}
}

// Login resolves an access code to a profile and issues a token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	account, err := s.repo.FindByFingerprint(ctx, Fingerprint(req.AccessCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	if account.Disabled {
		return nil, appErrors.ErrInactiveAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.AccessCodeHash), []byte(req.AccessCode)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	profile, err := s.repo.LoadProfile(ctx, account)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	token, err := s.generateAccessToken(profile)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("account logged in",
		zap.String("account_id", account.ID), zap.String("role", string(account.Role)))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		IssuedAt:    time.Now().UTC(),
		Profile:     *profile,
	}, nil
}

// IssueAccount creates a teacher or student account under a principal and
// returns the plaintext access code exactly once.
func (s *AuthService) IssueAccount(ctx context.Context, principalID string, req models.IssueAccountRequest) (*models.IssueAccountResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	principal, err := s.repo.FindByID(ctx, principalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch principal")
	}
	if principal.Role != models.RolePrincipal {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only principals issue access codes")
	}

	if req.Role == models.RoleStudent {
		principalProfile, err := s.repo.LoadProfile(ctx, principal)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load principal profile")
		}
		issued, err := s.repo.CountStudentsByPrincipal(ctx, principalID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count student codes")
		}
		if limit := principalProfile.Principal.StudentCodeLimit; limit > 0 && issued >= limit {
			return nil, appErrors.Clone(appErrors.ErrForbidden,
				fmt.Sprintf("student code limit reached (%d)", limit))
		}
	}

	code, err := s.generateAccessCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash access code")
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:                    uuid.NewString(),
		Role:                  req.Role,
		Name:                  req.Name,
		AccessCodeHash:        string(hash),
		AccessCodeFingerprint: Fingerprint(code),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	profile := models.Profile{Account: account}
	switch req.Role {
	case models.RoleTeacher:
		assignments := make([]models.TeacherAssignment, 0, len(req.Assignments))
		for _, assignment := range req.Assignments {
			assignment.ID = uuid.NewString()
			assignment.TeacherID = account.ID
			assignments = append(assignments, assignment)
		}
		profile.Teacher = &models.TeacherProfile{
			AccountID:   account.ID,
			PrincipalID: principalID,
			Assignments: assignments,
		}
	case models.RoleStudent:
		profile.Student = &models.StudentProfile{
			AccountID:   account.ID,
			PrincipalID: principalID,
			StudentID:   req.StudentID,
			ClassID:     req.ClassID,
			Stage:       req.Stage,
			Section:     req.Section,
		}
	}

	if err := s.repo.Create(ctx, &account, &profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.logger.Info("access code issued",
		zap.String("principal_id", principalID),
		zap.String("account_id", account.ID),
		zap.String("role", string(req.Role)))

	return &models.IssueAccountResponse{Profile: profile, AccessCode: code}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(profile *models.Profile) (string, error) {
	now := time.Now().UTC()
	claims := models.JWTClaims{
		AccountID:   profile.Account.ID,
		Role:        profile.Account.Role,
		Name:        profile.Account.Name,
		PrincipalID: principalIDOf(profile),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.Account.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiry)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
}

// principalIDOf resolves the school a profile belongs to. Principals are
// their own school.
func principalIDOf(profile *models.Profile) string {
	switch {
	case profile.Principal != nil:
		return profile.Account.ID
	case profile.Teacher != nil:
		return profile.Teacher.PrincipalID
	case profile.Student != nil:
		return profile.Student.PrincipalID
	}
	return ""
}

// codeAlphabet avoids characters that are easy to misread on paper.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func (s *AuthService) generateAccessCode() (string, error) {
	buf := make([]byte, s.config.CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Fingerprint derives the deterministic lookup digest of an access code.
func Fingerprint(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
