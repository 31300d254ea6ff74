package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ayuda-red/internal/domain"
	"ayuda-red/internal/email"
	"ayuda-red/internal/repository"
)

// AuthService coordina registro, login, verificación de email y ciclo de vida de tokens.
type AuthService struct {
	logger          *zap.Logger
	users           repository.UserRepository
	emailSender     email.Sender
	tokens          *JWTService
	resendLimiter   RateLimiter
	verificationTTL time.Duration
	resetTTL        time.Duration
	frontendBaseURL string
}

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("please verify your email before logging in")
	ErrRefreshTokenMissing = errors.New("refresh token required")
	ErrRefreshTokenInvalid = errors.New("refresh token expired or invalid, please log in again")
	ErrVerificationInvalid = errors.New("verification token invalid")
	ErrVerificationExpired = errors.New("verification token expired")
	ErrResendNotAllowed    = errors.New("verification email cannot be sent")
	ErrRateLimited         = errors.New("rate limited")
	ErrEmailSendFailure    = errors.New("email send failed")
	ErrUserNotFound        = errors.New("user not found")
	ErrResetNotEligible    = errors.New("account not eligible for password reset")
	ErrPasswordMismatch    = errors.New("current password incorrect")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrResetTokenInvalid   = errors.New("reset token invalid or expired")
)

const (
	defaultVerificationTTL = 30 * time.Minute
	defaultResetTTL        = time.Hour
	resendWindow           = 5 * time.Minute
	resendMax              = 3
	minPasswordLength      = 6
)

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	emailSender email.Sender,
	tokens *JWTService,
	resendLimiter RateLimiter,
	verificationTTL, resetTTL time.Duration,
	frontendBaseURL string,
) *AuthService {
	if resendLimiter == nil {
		resendLimiter = NewMemoryRateLimiter(resendWindow, resendMax)
	}
	if verificationTTL <= 0 {
		verificationTTL = defaultVerificationTTL
	}
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &AuthService{
		logger:          logger,
		users:           users,
		emailSender:     emailSender,
		tokens:          tokens,
		resendLimiter:   resendLimiter,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
	}
}

type RegisterInput struct {
	Email    string
	Name     string
	Phone    string
	Password string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	password := strings.TrimSpace(input.Password)
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	token, err := newSecretToken()
	if err != nil {
		return domain.User{}, err
	}
	expiresAt := time.Now().UTC().Add(s.verificationTTL)

	// El rol nunca viene del request: siempre se crea como usuario regular.
	user := domain.User{
		Email:             emailAddr,
		Name:              strings.TrimSpace(input.Name),
		Phone:             strings.TrimSpace(input.Phone),
		PasswordHash:      string(hashBytes),
		Role:              domain.RoleUser,
		IsEmailVerified:   false,
		VerificationToken: token,
		TokenExpiresAt:    &expiresAt,
		CreatedAt:         time.Now().UTC(),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	// El envío es best-effort: un fallo no revierte la creación del usuario.
	link := s.verificationLink(emailAddr, token)
	if s.emailSender == nil {
		s.warn("verification email skipped, no sender configured", emailAddr)
	} else if err := s.emailSender.SendVerification(ctx, emailAddr, link, expiresAt); err != nil {
		s.warnErr("send verification email failed", emailAddr, err)
	}

	return created, nil
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.User, TokenPair, error) {
	if s.users == nil || s.tokens == nil {
		return domain.User{}, TokenPair{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, TokenPair{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsEmailVerified {
		return domain.User{}, TokenPair{}, ErrEmailNotVerified
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	// Sesión única: el refresh token persistido pisa cualquier valor anterior.
	if err := s.users.UpdateRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return domain.User{}, TokenPair{}, err
	}
	user.RefreshToken = pair.RefreshToken
	return user, pair, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if s.users == nil || s.tokens == nil {
		return TokenPair{}, errors.New("auth service not configured")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, ErrRefreshTokenMissing
	}

	// Cualquier fallo de verificación colapsa al mismo resultado genérico.
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrRefreshTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, ErrRefreshTokenInvalid
		}
		return TokenPair{}, err
	}
	// El token presentado debe coincidir con el persistido: cubre tokens
	// revocados y copias viejas tras una rotación.
	if !secretTokenEqual(user.RefreshToken, refreshToken) {
		return TokenPair{}, ErrRefreshTokenInvalid
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return TokenPair{}, err
	}
	// Persistir antes de responder: el token anterior queda inválido de inmediato.
	if err := s.users.UpdateRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, emailAddr, token string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	token = strings.TrimSpace(token)
	if emailAddr == "" || token == "" {
		return ErrVerificationInvalid
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVerificationInvalid
		}
		return err
	}
	if user.IsEmailVerified {
		return ErrVerificationInvalid
	}
	if !secretTokenEqual(user.VerificationToken, token) {
		return ErrVerificationInvalid
	}
	if user.TokenExpiresAt == nil || time.Now().UTC().After(*user.TokenExpiresAt) {
		return ErrVerificationExpired
	}

	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return err
	}

	if s.emailSender != nil {
		if err := s.emailSender.SendWelcome(ctx, emailAddr, user.Name); err != nil {
			s.warnErr("send welcome email failed", emailAddr, err)
		}
	}
	return nil
}

func (s *AuthService) ResendVerification(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if s.resendLimiter != nil && !s.resendLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Rechazo genérico: no se confirma si la cuenta existe.
			return ErrResendNotAllowed
		}
		return err
	}
	if user.IsEmailVerified {
		return ErrResendNotAllowed
	}

	token, err := newSecretToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.verificationTTL)
	if err := s.users.UpdateVerificationToken(ctx, user.ID, token, expiresAt); err != nil {
		return err
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerification(ctx, emailAddr, s.verificationLink(emailAddr, token), expiresAt); err != nil {
		s.warnErr("resend verification email failed", emailAddr, err)
		return ErrEmailSendFailure
	}
	return nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Silencioso a propósito: no se revela la existencia de la cuenta.
			return nil
		}
		return err
	}
	if !user.IsEmailVerified {
		return nil
	}

	token, err := newSecretToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.resetTTL)
	// Solo se persiste el hash; el token crudo viaja únicamente en el correo.
	if err := s.users.UpdatePasswordResetToken(ctx, user.ID, hashSecretToken(token), expiresAt); err != nil {
		return err
	}

	if s.emailSender == nil {
		s.warn("password reset email skipped, no sender configured", emailAddr)
		return nil
	}
	if err := s.emailSender.SendPasswordReset(ctx, emailAddr, s.resetLink(emailAddr, token), expiresAt); err != nil {
		s.warnErr("send password reset email failed", emailAddr, err)
	}
	return nil
}

type ResetPasswordInput struct {
	Email           string
	NewPassword     string
	CurrentPassword string
	Token           string
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return ErrUserNotFound
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.IsEmailVerified {
		return ErrResetNotEligible
	}

	newPassword := strings.TrimSpace(input.NewPassword)
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	if current := strings.TrimSpace(input.CurrentPassword); current != "" {
		if user.PasswordHash == "" {
			return ErrPasswordMismatch
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
			return ErrPasswordMismatch
		}
	}

	if token := strings.TrimSpace(input.Token); token != "" {
		if !secretTokenEqual(user.PasswordResetTokenHash, hashSecretToken(token)) {
			return ErrResetTokenInvalid
		}
		if user.ResetTokenExpiresAt == nil || time.Now().UTC().After(*user.ResetTokenExpiresAt) {
			return ErrResetTokenInvalid
		}
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	// UpdatePassword también limpia el reset token: es de un solo uso.
	// Las sesiones activas no se revocan aquí.
	return s.users.UpdatePassword(ctx, user.ID, string(hashBytes))
}

func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}
	return s.users.UpdateRefreshToken(ctx, userID, "")
}

func (s *AuthService) verificationLink(emailAddr, token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s&email=%s", s.frontendBaseURL, token, url.QueryEscape(emailAddr))
}

func (s *AuthService) resetLink(emailAddr, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s&email=%s", s.frontendBaseURL, token, url.QueryEscape(emailAddr))
}

func (s *AuthService) warn(msg, emailAddr string) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.String("email", emailAddr))
	}
}

func (s *AuthService) warnErr(msg, emailAddr string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.Error(err), zap.String("email", emailAddr))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
