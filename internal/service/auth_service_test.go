package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ayuda-red/internal/domain"
	"ayuda-red/internal/repository"
)

type mockUserRepo struct {
	usersByID    map[int64]domain.User
	usersByEmail map[string]int64
	nextID       int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[int64]domain.User),
		usersByEmail: make(map[string]int64),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return domain.User{}, repository.ErrDuplicateEmail
	}
	m.nextID++
	user.ID = m.nextID
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return user, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) UpdateVerificationToken(_ context.Context, id int64, token string, expiresAt time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.VerificationToken = token
	user.TokenExpiresAt = &expiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) SetEmailVerified(_ context.Context, id int64) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsEmailVerified = true
	user.VerificationToken = ""
	user.TokenExpiresAt = nil
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateRefreshToken(_ context.Context, id int64, token string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.RefreshToken = token
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdatePasswordResetToken(_ context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordResetTokenHash = tokenHash
	user.ResetTokenExpiresAt = &expiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.PasswordResetTokenHash = ""
	user.ResetTokenExpiresAt = nil
	m.usersByID[id] = user
	return nil
}

type mockEmailSender struct {
	verifyTo    string
	verifyLink  string
	verifyCount int
	resetTo     string
	resetLink   string
	resetCount  int
	welcomeTo   string
	err         error
}

func (m *mockEmailSender) SendVerification(_ context.Context, toEmail, link string, _ time.Time) error {
	m.verifyTo = toEmail
	m.verifyLink = link
	m.verifyCount++
	return m.err
}

func (m *mockEmailSender) SendPasswordReset(_ context.Context, toEmail, link string, _ time.Time) error {
	m.resetTo = toEmail
	m.resetLink = link
	m.resetCount++
	return m.err
}

func (m *mockEmailSender) SendWelcome(_ context.Context, toEmail, _ string) error {
	m.welcomeTo = toEmail
	return m.err
}

func newTestAuthService(repo *mockUserRepo, sender *mockEmailSender, limiter RateLimiter) *AuthService {
	jwtSvc := NewJWTService("secret", 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(zap.NewNop(), repo, sender, jwtSvc, limiter, 30*time.Minute, time.Hour, "https://app.example.org")
}

func linkQueryParam(t *testing.T, link, param string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	return u.Query().Get(param)
}

func TestAuthServiceRegister_CreatesUnverifiedUser(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender, nil)

	start := time.Now().UTC()
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    " Ana@Example.com ",
		Name:     "Ana",
		Phone:    "555-0101",
		Password: "pw123456",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}
	if user.IsEmailVerified {
		t.Fatalf("expected new user to be unverified")
	}
	if user.PasswordHash == "" || user.PasswordHash == "pw123456" {
		t.Fatalf("expected password to be stored hashed")
	}

	stored, err := repo.GetByEmail(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("expected user stored, got %v", err)
	}
	if stored.VerificationToken == "" || len(stored.VerificationToken) != 64 {
		t.Fatalf("expected 32-byte hex verification token, got %q", stored.VerificationToken)
	}
	if stored.TokenExpiresAt == nil {
		t.Fatalf("expected verification expiry stored")
	}
	if stored.TokenExpiresAt.Before(start.Add(29*time.Minute)) || stored.TokenExpiresAt.After(start.Add(31*time.Minute)) {
		t.Fatalf("expected expiry around 30 minutes, got %v", stored.TokenExpiresAt)
	}

	if sender.verifyTo != "ana@example.com" {
		t.Fatalf("expected verification email sent, got %q", sender.verifyTo)
	}
	if got := linkQueryParam(t, sender.verifyLink, "token"); got != stored.VerificationToken {
		t.Fatalf("expected link to carry the stored token")
	}
}

func TestAuthServiceRegister_EmailFailureDoesNotRollBack(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{err: errors.New("smtp down")}
	svc := newTestAuthService(repo, sender, nil)

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("expected register to survive email failure, got %v", err)
	}
	if _, err := repo.GetByEmail(context.Background(), "ana@example.com"); err != nil {
		t.Fatalf("expected user to exist despite email failure, got %v", err)
	}
}

func TestAuthServiceRegister_DuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{}, nil)

	first, err := svc.Register(context.Background(), RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"})
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "ana@example.com", Name: "Otra", Password: "pw654321"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	stored, err := repo.GetByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("expected first user intact, got %v", err)
	}
	if stored.Name != "Ana" {
		t.Fatalf("expected first user data unchanged, got %q", stored.Name)
	}
}

func TestAuthServiceRegister_WeakPassword(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), &mockEmailSender{}, nil)
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw1"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestAuthServiceLogin_RequiresVerifiedEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{}, nil)
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "ana@example.com", "pw123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "ana@example.com", "pw123456"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified before verification, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ana@example.com", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}

	stored, _ := repo.GetByEmail(ctx, "ana@example.com")
	if err := svc.VerifyEmail(ctx, "ana@example.com", stored.VerificationToken); err != nil {
		t.Fatalf("verify email: %v", err)
	}

	user, pair, err := svc.Login(ctx, "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("login after verification: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token pair")
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}

	stored, _ = repo.GetByEmail(ctx, "ana@example.com")
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatalf("expected refresh token persisted on the user record")
	}
}

func TestAuthServiceVerifyEmail_Failures(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{}, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, _ := repo.GetByEmail(ctx, "ana@example.com")

	if err := svc.VerifyEmail(ctx, "nadie@example.com", stored.VerificationToken); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("expected ErrVerificationInvalid for unknown user, got %v", err)
	}
	if err := svc.VerifyEmail(ctx, "ana@example.com", "deadbeef"); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("expected ErrVerificationInvalid for wrong token, got %v", err)
	}

	// Token correcto pero vencido: rechazo con causa distinguible.
	expired := time.Now().UTC().Add(-time.Minute)
	if err := repo.UpdateVerificationToken(ctx, stored.ID, stored.VerificationToken, expired); err != nil {
		t.Fatalf("seed expired token: %v", err)
	}
	if err := svc.VerifyEmail(ctx, "ana@example.com", stored.VerificationToken); !errors.Is(err, ErrVerificationExpired) {
		t.Fatalf("expected ErrVerificationExpired, got %v", err)
	}
}

func TestAuthServiceVerifyEmail_ClearsTokenAndSendsWelcome(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, _ := repo.GetByEmail(ctx, "ana@example.com")
	token := stored.VerificationToken

	if err := svc.VerifyEmail(ctx, "ana@example.com", token); err != nil {
		t.Fatalf("verify email: %v", err)
	}

	stored, _ = repo.GetByEmail(ctx, "ana@example.com")
	if !stored.IsEmailVerified {
		t.Fatalf("expected user verified")
	}
	if stored.VerificationToken != "" || stored.TokenExpiresAt != nil {
		t.Fatalf("expected verification token cleared after use")
	}
	if sender.welcomeTo != "ana@example.com" {
		t.Fatalf("expected welcome email, got %q", sender.welcomeTo)
	}

	// El token consumido no puede reutilizarse.
	if err := svc.VerifyEmail(ctx, "ana@example.com", token); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("expected consumed token to be rejected, got %v", err)
	}
}

func registerAndVerify(t *testing.T, svc *AuthService, repo *mockUserRepo, emailAddr, password string) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: emailAddr, Name: "Test", Password: password}); err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, err := repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if err := svc.VerifyEmail(ctx, emailAddr, stored.VerificationToken); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestAuthServiceRefresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{}, nil)
	ctx := context.Background()

	registerAndVerify(t, svc, repo, "ana@example.com", "pw123456")
	_, pair, err := svc.Login(ctx, "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a fresh refresh token after rotation")
	}

	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected rotated-out token to be rejected, got %v", err)
	}
	if _, err := svc.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("expected newest token to keep working, got %v", err)
	}
}

func TestAuthServiceRefresh_RejectsBadInput(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{}, nil)
	ctx := context.Background()

	if _, err := svc.Refresh(ctx, "   "); !errors.Is(err, ErrRefreshTokenMissing) {
		t.Fatalf("expected ErrRefreshTokenMissing, got %v", err)
	}
	if _, err := svc.Refresh(ctx, "not-a-jwt"); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid for malformed token, got %v", err)
	}

	// Un access token firmado no sirve como refresh.
	registerAndVerify(t, svc, repo, "ana@example.com", "pw123456")
	_, pair, err := svc.Login(ctx, "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected access token rejected in refresh flow, got %v", err)
	}
}

func TestAuthServiceLogout_RevokesRefreshToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{}, nil)
	ctx := context.Background()

	registerAndVerify(t, svc, repo, "ana@example.com", "pw123456")
	user, pair, err := svc.Login(ctx, "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected refresh rejected after logout, got %v", err)
	}
}

func TestAuthServiceResendVerification(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	limiter := NewMemoryRateLimiter(5*time.Minute, 3)
	svc := newTestAuthService(repo, sender, limiter)
	ctx := context.Background()

	if err := svc.ResendVerification(ctx, "nadie@example.com"); !errors.Is(err, ErrResendNotAllowed) {
		t.Fatalf("expected generic rejection for unknown email, got %v", err)
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	before, _ := repo.GetByEmail(ctx, "ana@example.com")

	if err := svc.ResendVerification(ctx, "ana@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	after, _ := repo.GetByEmail(ctx, "ana@example.com")
	if after.VerificationToken == before.VerificationToken {
		t.Fatalf("expected resend to replace the stored token")
	}
	if sender.verifyCount != 2 {
		t.Fatalf("expected 2 verification emails (register + resend), got %d", sender.verifyCount)
	}

	if err := svc.VerifyEmail(ctx, "ana@example.com", after.VerificationToken); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.ResendVerification(ctx, "ana@example.com"); !errors.Is(err, ErrResendNotAllowed) {
		t.Fatalf("expected rejection for already verified account, got %v", err)
	}
}

func TestAuthServiceResendVerification_RateLimited(t *testing.T) {
	repo := newMockUserRepo()
	limiter := NewMemoryRateLimiter(5*time.Minute, 3)
	svc := newTestAuthService(repo, &mockEmailSender{}, limiter)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.ResendVerification(ctx, "ana@example.com"); err != nil {
			t.Fatalf("resend %d: %v", i+1, err)
		}
	}
	if err := svc.ResendVerification(ctx, "ana@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 4th resend, got %v", err)
	}
}

func TestAuthServiceRequestPasswordReset_SilentWhenNotEligible(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender, nil)
	ctx := context.Background()

	// Cuenta inexistente: respuesta exitosa sin efecto observable.
	if err := svc.RequestPasswordReset(ctx, "nadie@example.com"); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if sender.resetCount != 0 {
		t.Fatalf("expected no reset email for unknown account")
	}

	// Cuenta sin verificar: mismo silencio.
	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if sender.resetCount != 0 {
		t.Fatalf("expected no reset email for unverified account")
	}
}

func TestAuthServiceRequestPasswordReset_StoresHashOnly(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender, nil)
	ctx := context.Background()

	registerAndVerify(t, svc, repo, "ana@example.com", "pw123456")
	if err := svc.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if sender.resetTo != "ana@example.com" {
		t.Fatalf("expected reset email sent")
	}

	raw := linkQueryParam(t, sender.resetLink, "token")
	if raw == "" {
		t.Fatalf("expected raw token in the reset link")
	}
	stored, _ := repo.GetByEmail(ctx, "ana@example.com")
	if stored.PasswordResetTokenHash == raw {
		t.Fatalf("expected only the hash to be persisted")
	}
	if stored.PasswordResetTokenHash != hashSecretToken(raw) {
		t.Fatalf("expected stored value to be the token hash")
	}
	if stored.ResetTokenExpiresAt == nil {
		t.Fatalf("expected reset expiry stored")
	}
}

func TestAuthServiceResetPassword(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender, nil)
	ctx := context.Background()

	if err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "nadie@example.com", NewPassword: "pw999999"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Name: "Ana", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", NewPassword: "pw999999"}); !errors.Is(err, ErrResetNotEligible) {
		t.Fatalf("expected ErrResetNotEligible for unverified account, got %v", err)
	}

	stored, _ := repo.GetByEmail(ctx, "ana@example.com")
	if err := svc.VerifyEmail(ctx, "ana@example.com", stored.VerificationToken); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// La contraseña corta falla aunque la actual sea correcta.
	err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", NewPassword: "pw1", CurrentPassword: "pw123456"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	err = svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", NewPassword: "pw999999", CurrentPassword: "wrongpass"})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", NewPassword: "pw999999", CurrentPassword: "pw123456"}); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	stored, _ = repo.GetByEmail(ctx, "ana@example.com")
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw999999")) != nil {
		t.Fatalf("expected new password to verify")
	}
	// La sesión activa no se revoca en el reset.
	if _, _, err := svc.Login(ctx, "ana@example.com", "pw999999"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAuthServiceResetPassword_WithToken(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender, nil)
	ctx := context.Background()

	registerAndVerify(t, svc, repo, "ana@example.com", "pw123456")
	if err := svc.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	raw := linkQueryParam(t, sender.resetLink, "token")

	err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", NewPassword: "pw999999", Token: "wrongtoken"})
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", NewPassword: "pw999999", Token: raw}); err != nil {
		t.Fatalf("reset with token: %v", err)
	}

	// Un solo uso: el mismo token ya no sirve.
	err = svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", NewPassword: "pw888888", Token: raw})
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected consumed reset token to be rejected, got %v", err)
	}
}

func TestAuthServiceEndToEnd(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Name: "A", Password: "pw123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	token := linkQueryParam(t, sender.verifyLink, "token")
	if err := svc.VerifyEmail(ctx, "a@x.com", token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	_, pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatalf("expected fresh pair")
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected original refresh token rejected after rotation, got %v", err)
	}
}
