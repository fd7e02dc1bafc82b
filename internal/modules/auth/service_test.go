package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/inkwell-app/inkwell-api/internal/config"
	"github.com/inkwell-app/inkwell-api/internal/notification"
	"github.com/inkwell-app/inkwell-api/internal/notification/templates"
	"github.com/inkwell-app/inkwell-api/internal/otp"
	"github.com/inkwell-app/inkwell-api/internal/ratelimit"
	"github.com/inkwell-app/inkwell-api/internal/session"
	"github.com/inkwell-app/inkwell-api/internal/token"
)

// --- Test doubles ---

// fakeRepository is an in-memory Repository. The auth service never touches
// it from a goroutine, so no locking is needed.
type fakeRepository struct {
	byID    map[string]*User
	byEmail map[string]*User

	sessionAudits map[string]*SessionAudit       // keyed by session token
	resetAudits   map[string]*PasswordResetAudit // keyed by reset token
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byID:          make(map[string]*User),
		byEmail:       make(map[string]*User),
		sessionAudits: make(map[string]*SessionAudit),
		resetAudits:   make(map[string]*PasswordResetAudit),
	}
}

func (r *fakeRepository) Create(_ context.Context, user *User) error {
	cp := *user
	r.byID[user.ID] = &cp
	r.byEmail[user.Email] = &cp
	return nil
}

func (r *fakeRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *fakeRepository) FindByID(_ context.Context, id string) (*User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *fakeRepository) UpdatePassword(_ context.Context, userID, newPasswordHash string) error {
	user, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = newPasswordHash
	return nil
}

func (r *fakeRepository) MarkEmailVerified(_ context.Context, userID string) error {
	user, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	user.EmailVerified = true
	return nil
}

func (r *fakeRepository) InsertSessionAudit(_ context.Context, audit *SessionAudit) error {
	cp := *audit
	r.sessionAudits[audit.SessionToken] = &cp
	return nil
}

func (r *fakeRepository) DeleteSessionAudit(_ context.Context, sessionToken string) error {
	delete(r.sessionAudits, sessionToken)
	return nil
}

func (r *fakeRepository) DeleteSessionAuditByUser(_ context.Context, userID string) error {
	for tok, audit := range r.sessionAudits {
		if audit.UserID == userID {
			delete(r.sessionAudits, tok)
		}
	}
	return nil
}

func (r *fakeRepository) InsertPasswordResetAudit(_ context.Context, audit *PasswordResetAudit) error {
	cp := *audit
	r.resetAudits[audit.Token] = &cp
	return nil
}

func (r *fakeRepository) MarkPasswordResetAuditUsed(_ context.Context, tok string) error {
	if audit, ok := r.resetAudits[tok]; ok {
		audit.Used = true
	}
	return nil
}

// captureNotifier records dispatched notifications on a channel so tests can
// wait for the fire-and-forget sends.
type captureNotifier struct {
	sent chan notification.Notification
}

func (n *captureNotifier) Send(_ context.Context, notif notification.Notification) error {
	select {
	case n.sent <- notif:
	default:
	}
	return nil
}

type serviceTest struct {
	service  Service
	repo     *fakeRepository
	sessions session.Provider
	mr       *miniredis.Miniredis
	sent     chan notification.Notification
}

func newServiceTest(t *testing.T) (*serviceTest, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test", BaseURL: "http://localhost:8080"},
		SMTP:   config.SMTPConfig{From: "support@example.com"},
		Auth: config.AuthConfig{
			SessionTTLSeconds:     3600,
			OTPTTLSeconds:         600,
			ResetTokenTTLSeconds:  900,
			LoginMaxAttempts:      3,
			LoginWindowSeconds:    60,
			RegisterMaxAttempts:   5,
			RegisterWindowSeconds: 60,
			ResetMaxAttempts:      3,
			ResetWindowSeconds:    60,
			ResendMaxAttempts:     2,
			ResendWindowSeconds:   60,
		},
	}

	repo := newFakeRepository()
	notifier := &captureNotifier{sent: make(chan notification.Notification, 16)}
	sessions := session.NewRedisProvider(rdb)

	svc := NewService(&Config{
		Repo:     repo,
		Sessions: sessions,
		Tokens:   token.NewManager(rdb),
		OTPs:     otp.NewManager(rdb),
		Limiter:  ratelimit.New(rdb),
		Notifier: notifier,
		Renderer: templates.NewEngine(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   cfg,
	})

	st := &serviceTest{service: svc, repo: repo, sessions: sessions, mr: mr, sent: notifier.sent}
	return st, func() {
		rdb.Close()
		mr.Close()
	}
}

// verificationCode reads the live email-verification code out of the store.
func (st *serviceTest) verificationCode(t *testing.T, email string) string {
	t.Helper()
	code, err := st.mr.Get("otp:email_verification:" + email)
	if err != nil {
		t.Fatalf("no verification code stored for %s: %v", email, err)
	}
	return code
}

// resetToken finds the single outstanding password-reset token in the store.
func (st *serviceTest) resetToken(t *testing.T) string {
	t.Helper()
	for _, key := range st.mr.Keys() {
		if tok, ok := strings.CutPrefix(key, "token:password_reset:"); ok {
			return tok
		}
	}
	t.Fatal("no password reset token stored")
	return ""
}

// registerVerified registers an account and walks it through verification.
func (st *serviceTest) registerVerified(t *testing.T, name, email, password string) *User {
	t.Helper()
	ctx := context.Background()
	user, err := st.service.Register(ctx, name, email, password)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := st.service.VerifyEmail(ctx, email, st.verificationCode(t, email)); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	return user
}

func waitForEmail(t *testing.T, sent chan notification.Notification) notification.Notification {
	t.Helper()
	select {
	case n := <-sent:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no notification dispatched")
		return notification.Notification{}
	}
}

// --- Registration & verification ---

func TestRegisterCreatesUnverifiedUserAndEmailsCode(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	user, err := st.service.Register(ctx, "Ada", "Ada@Example.com ", "sup3rsecret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email = %q, want normalized ada@example.com", user.Email)
	}
	if user.EmailVerified {
		t.Fatal("new account should start unverified")
	}

	code := st.verificationCode(t, "ada@example.com")
	if len(code) != 6 {
		t.Fatalf("code %q should be 6 digits", code)
	}

	notif := waitForEmail(t, st.sent)
	if notif.Recipient != "ada@example.com" {
		t.Fatalf("notification recipient = %q", notif.Recipient)
	}
	if !strings.Contains(notif.Content.EmailHTMLBody, code) {
		t.Fatal("verification email should contain the code")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	if _, err := st.service.Register(ctx, "Ada", "ada@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := st.service.Register(ctx, "Imposter", "ada@example.com", "otherpassword")
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate register = %v, want ErrEmailExists", err)
	}
}

func TestVerifyEmailConsumesCode(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	if _, err := st.service.Register(ctx, "Ada", "ada@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := st.verificationCode(t, "ada@example.com")

	if err := st.service.VerifyEmail(ctx, "ada@example.com", code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	user, err := st.repo.FindByEmail(ctx, "ada@example.com")
	if err != nil || !user.EmailVerified {
		t.Fatalf("user should be verified, got %+v err %v", user, err)
	}

	// Verified accounts short-circuit: even a stale code is an idempotent success.
	if err := st.service.VerifyEmail(ctx, "ada@example.com", code); err != nil {
		t.Fatalf("re-verify should be idempotent, got %v", err)
	}
}

func TestVerifyEmailWrongCode(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	if _, err := st.service.Register(ctx, "Ada", "ada@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := st.verificationCode(t, "ada@example.com")
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	if err := st.service.VerifyEmail(ctx, "ada@example.com", wrong); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("wrong code = %v, want ErrInvalidOTP", err)
	}
	// The real code still works after one miss.
	if err := st.service.VerifyEmail(ctx, "ada@example.com", code); err != nil {
		t.Fatalf("verify after miss: %v", err)
	}
}

func TestVerifyEmailAttemptBudget(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	if _, err := st.service.Register(ctx, "Ada", "ada@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := st.verificationCode(t, "ada@example.com")
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 5; i++ {
		if err := st.service.VerifyEmail(ctx, "ada@example.com", wrong); !errors.Is(err, ErrInvalidOTP) {
			t.Fatalf("attempt %d = %v, want ErrInvalidOTP", i+1, err)
		}
	}
	// Budget exhausted: even the real code is refused now.
	if err := st.service.VerifyEmail(ctx, "ada@example.com", code); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("after budget = %v, want ErrTooManyAttempts", err)
	}
}

func TestVerifyEmailUnknownAddress(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()

	err := st.service.VerifyEmail(context.Background(), "ghost@example.com", "123456")
	if !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("unknown email = %v, want ErrInvalidOTP (no enumeration)", err)
	}
}

func TestResendVerificationReplacesCode(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	if _, err := st.service.Register(ctx, "Ada", "ada@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	first := st.verificationCode(t, "ada@example.com")

	if err := st.service.ResendVerification(ctx, "ada@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second := st.verificationCode(t, "ada@example.com")

	if first != second {
		// The old code was replaced and must no longer verify.
		if err := st.service.VerifyEmail(ctx, "ada@example.com", first); !errors.Is(err, ErrInvalidOTP) {
			t.Fatalf("old code = %v, want ErrInvalidOTP", err)
		}
	}
	if err := st.service.VerifyEmail(ctx, "ada@example.com", second); err != nil {
		t.Fatalf("new code: %v", err)
	}
}

func TestResendVerificationHidesUnknownEmail(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()

	if err := st.service.ResendVerification(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("resend for unknown email = %v, want nil", err)
	}
}

func TestResendVerificationRateLimited(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	if _, err := st.service.Register(ctx, "Ada", "ada@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	// ResendMaxAttempts is 2 in the test config.
	for i := 0; i < 2; i++ {
		if err := st.service.ResendVerification(ctx, "ada@example.com"); err != nil {
			t.Fatalf("resend %d: %v", i+1, err)
		}
	}
	if err := st.service.ResendVerification(ctx, "ada@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("resend over budget = %v, want ErrRateLimited", err)
	}
}

// --- Login & sessions ---

func TestLoginIssuesResolvableSession(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	user := st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")

	got, tok, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "tests/1.0", "127.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned user %s, want %s", got.ID, user.ID)
	}

	sess, err := st.sessions.Get(ctx, tok)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if sess.UserID != user.ID || sess.Email != "ada@example.com" {
		t.Fatalf("session = %+v", sess)
	}

	audit, ok := st.repo.sessionAudits[tok]
	if !ok {
		t.Fatal("session audit row missing")
	}
	if audit.UserAgent != "tests/1.0" || audit.IPAddress != "127.0.0.1" {
		t.Fatalf("audit = %+v", audit)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()

	st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")

	_, _, err := st.service.Login(context.Background(), "ada@example.com", "wrongpassword", "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()

	_, _, err := st.service.Login(context.Background(), "ghost@example.com", "whatever123", "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email = %v, want ErrInvalidCredentials (no enumeration)", err)
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	if _, err := st.service.Register(ctx, "Ada", "ada@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, _, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "", "")
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("unverified login = %v, want ErrEmailNotVerified", err)
	}
}

func TestLoginRateLimitCountsEveryAttempt(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")

	// LoginMaxAttempts is 3; failures burn the budget too.
	for i := 0; i < 3; i++ {
		if _, _, err := st.service.Login(ctx, "ada@example.com", "wrongpassword", "", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d = %v, want ErrInvalidCredentials", i+1, err)
		}
	}
	// Correct credentials are refused once the window budget is spent.
	if _, _, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("over budget = %v, want ErrRateLimited", err)
	}

	// A fresh window restores access.
	st.mr.FastForward(61 * time.Second)
	if _, _, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "", ""); err != nil {
		t.Fatalf("login after window = %v", err)
	}
}

func TestLogoutRevokesSessionAndIsIdempotent(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")
	_, tok, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := st.service.Logout(ctx, tok); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := st.sessions.Get(ctx, tok); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session after logout = %v, want ErrNotFound", err)
	}
	if _, ok := st.repo.sessionAudits[tok]; ok {
		t.Fatal("session audit should be removed on logout")
	}

	// Logging out again is a success, not an error.
	if err := st.service.Logout(ctx, tok); err != nil {
		t.Fatalf("repeat logout = %v, want nil", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	user := st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")
	st.mr.FastForward(61 * time.Second) // fresh login rate-limit window per login below

	var tokens []string
	for i := 0; i < 3; i++ {
		_, tok, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "", "")
		if err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
		tokens = append(tokens, tok)
	}

	if err := st.service.LogoutAll(ctx, user.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	for _, tok := range tokens {
		if _, err := st.sessions.Get(ctx, tok); !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("session %s survived logout-all: %v", tok, err)
		}
	}
	if len(st.repo.sessionAudits) != 0 {
		t.Fatalf("expected no session audits, have %d", len(st.repo.sessionAudits))
	}
}

// --- Password reset ---

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()

	if err := st.service.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("request for unknown email = %v, want nil", err)
	}
	for _, key := range st.mr.Keys() {
		if strings.HasPrefix(key, "token:password_reset:") {
			t.Fatal("no reset token should be minted for an unknown email")
		}
	}
}

func TestPasswordResetFlow(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	user := st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")
	_, sessTok, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := st.service.RequestPasswordReset(ctx, "ada@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	resetTok := st.resetToken(t)
	if len(resetTok) != 64 {
		t.Fatalf("reset token %q should be 64 hex chars", resetTok)
	}
	if audit, ok := st.repo.resetAudits[resetTok]; !ok || audit.UserID != user.ID {
		t.Fatalf("reset audit = %+v, ok=%v", st.repo.resetAudits[resetTok], ok)
	}

	if err := st.service.ResetPassword(ctx, resetTok, "brandnewsecret"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// Old password dead, new one live.
	if _, _, err := st.service.Login(ctx, "ada@example.com", "sup3rsecret", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := st.service.Login(ctx, "ada@example.com", "brandnewsecret", "", ""); err != nil {
		t.Fatalf("new password: %v", err)
	}

	// Sessions from before the reset are revoked.
	if _, err := st.sessions.Get(ctx, sessTok); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("pre-reset session = %v, want ErrNotFound", err)
	}
	if audit := st.repo.resetAudits[resetTok]; audit == nil || !audit.Used {
		t.Fatalf("reset audit should be marked used, got %+v", audit)
	}
}

func TestResetPasswordReplayGetsUsedError(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")
	if err := st.service.RequestPasswordReset(ctx, "ada@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	resetTok := st.resetToken(t)

	if err := st.service.ResetPassword(ctx, resetTok, "brandnewsecret"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	// The token record still lives until its TTL, flagged used: a replay must
	// see "already used", not "not found".
	if err := st.service.ResetPassword(ctx, resetTok, "anothersecret"); !errors.Is(err, ErrResetTokenUsed) {
		t.Fatalf("replay = %v, want ErrResetTokenUsed", err)
	}
}

func TestResetPasswordBogusToken(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()

	err := st.service.ResetPassword(context.Background(), "deadbeef", "brandnewsecret")
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("bogus token = %v, want ErrInvalidResetToken", err)
	}
}

func TestRequestPasswordResetRateLimited(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")

	// ResetMaxAttempts is 3; unknown emails consume budget too.
	for i := 0; i < 3; i++ {
		if err := st.service.RequestPasswordReset(ctx, "ada@example.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := st.service.RequestPasswordReset(ctx, "ada@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("over budget = %v, want ErrRateLimited", err)
	}
}

// --- Profile ---

func TestProfile(t *testing.T) {
	st, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	user := st.registerVerified(t, "Ada", "ada@example.com", "sup3rsecret")

	got, err := st.service.Profile(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if got.Email != "ada@example.com" || !got.EmailVerified {
		t.Fatalf("profile = %+v", got)
	}

	if _, err := st.service.Profile(ctx, "no-such-user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user = %v, want ErrNotFound", err)
	}
}
