package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/config"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// AuthResult carries the access token for the response body and the raw
// refresh token for the httpOnly cookie.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *models.User

	refreshID uuid.UUID
}

type AuthService struct {
	db          *gorm.DB
	cfg         *config.Config
	adminEmails []string
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:          db,
		cfg:         cfg,
		adminEmails: parseCSV(strings.ToLower(cfg.AdminEmails)),
	}
}

// Register creates a pending account. Emails listed in ADMIN_EMAILS are
// created as active administrators so a fresh install can be bootstrapped.
func (s *AuthService) Register(req *dto.RegisterRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if err := validateNames(req.Firstname, req.Lastname); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password, req.ConfirmPassword); err != nil {
		return nil, err
	}

	if err := ensureEmailFree(s.db, email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	bootstrapAdmin := contains(s.adminEmails, email)
	user := models.User{
		ID:                uuid.New(),
		Firstname:         strings.TrimSpace(req.Firstname),
		Lastname:          strings.TrimSpace(req.Lastname),
		Email:             email,
		Password:          hash,
		UserType:          models.UserTypeUser,
		IsActive:          bootstrapAdmin,
		AssignedLocations: []uuid.UUID{},
	}
	if bootstrapAdmin {
		user.UserType = models.UserTypeAdmin
		user.IsAdmin = true
		slog.Info("bootstrap admin registered", "user_id", user.ID.String())
	}

	if err := insertUser(s.db, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login never reveals whether the email exists. An inactive account with the
// correct password gets ErrAccountPending.
func (s *AuthService) Login(req *dto.LoginRequest) (*AuthResult, error) {
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountPending
	}

	return s.generateTokenPair(&user)
}

// Refresh rotates the refresh token: the presented one is revoked and a new
// pair is issued. Presenting a token that was already rotated revokes every
// session of its owner, since only a copied token can be replayed.
func (s *AuthService) Refresh(rawToken string) (*AuthResult, error) {
	if rawToken == "" {
		return nil, ErrInvalidToken
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashToken(rawToken)).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	now := time.Now()
	claimed := s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = false", stored.ID).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": now})
	if claimed.Error != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", claimed.Error)
	}
	if claimed.RowsAffected == 0 {
		slog.Warn("refresh token reuse detected", "user_id", stored.UserID.String())
		if err := s.RevokeAll(stored.UserID); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrAccountPending
	}

	result, err := s.generateTokenPair(&user)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.RefreshToken{}).Where("id = ?", stored.ID).
		Update("replaced_by", result.refreshID).Error; err != nil {
		slog.Warn("failed to link rotated refresh token", "user_id", user.ID.String(), "error", err)
	}
	return result, nil
}

func (s *AuthService) Logout(rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked = false", hashToken(rawToken)).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": time.Now()}).Error
}

// RevokeAll revokes every refresh token of a user, e.g. after deactivation.
func (s *AuthService) RevokeAll(userID uuid.UUID) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = false", userID).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": time.Now()}).Error
}

// PurgeExpiredTokens deletes refresh tokens that expired before now.
func (s *AuthService) PurgeExpiredTokens(now time.Time) (int64, error) {
	result := s.db.Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

func (s *AuthService) generateTokenPair(user *models.User) (*AuthResult, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	record, refreshToken, err := s.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: record.ExpiresAt,
		User:             user,
		refreshID:        record.ID,
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":       user.ID.String(),
		"email":     user.Email,
		"user_type": user.UserType,
		"is_admin":  user.IsAdmin,
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(user *models.User) (*models.RefreshToken, string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	rawToken := base64.URLEncoding.EncodeToString(rawBytes)

	record := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshExpiry),
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return record, rawToken, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateNames(firstname, lastname string) error {
	if strings.TrimSpace(firstname) == "" || strings.TrimSpace(lastname) == "" {
		return Validation("firstname and lastname are required")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return Validation("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Validation("email %q is not valid", email)
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if len(password) < minPasswordLength {
		return Validation("password must be at least %d characters", minPasswordLength)
	}
	if password != confirm {
		return Validation("passwords do not match")
	}
	return nil
}

// ensureEmailFree reports ErrEmailTaken when another user (not exceptID)
// already owns the address.
func ensureEmailFree(db *gorm.DB, email string, exceptID uuid.UUID) error {
	var count int64
	q := db.Model(&models.User{}).Where("email = ?", email)
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

// insertUser creates user. A concurrent insert of the same email reaches the
// unique index after ensureEmailFree passed and is reported as ErrEmailTaken.
func insertUser(db *gorm.DB, user *models.User) error {
	if err := db.Create(user).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
