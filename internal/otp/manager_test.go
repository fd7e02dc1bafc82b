package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newManagerTest(t *testing.T) (*Manager, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewManager(rdb), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestCreateReturnsSixDigitCode(t *testing.T) {
	mgr, _, done := newManagerTest(t)
	defer done()

	code, err := mgr.Create(context.Background(), "a@x.com", PurposeEmailVerification, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q contains non-digit", code)
		}
	}
}

func TestVerifyRoundTripSingleUse(t *testing.T) {
	mgr, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	code, err := mgr.Create(ctx, "a@x.com", PurposeEmailVerification, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := mgr.Verify(ctx, "a@x.com", PurposeEmailVerification, code); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	// The code is consumed; a replay sees not-found, not invalid.
	err = mgr.Verify(ctx, "a@x.com", PurposeEmailVerification, code)
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("replay verify = %v, want ErrCodeNotFound", err)
	}
}

func TestVerifyWrongCodeKeepsRealCode(t *testing.T) {
	mgr, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	code, err := mgr.Create(ctx, "a@x.com", PurposeEmailVerification, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	if err := mgr.Verify(ctx, "a@x.com", PurposeEmailVerification, wrong); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("wrong verify = %v, want ErrInvalidCode", err)
	}

	// The real code still works afterward.
	if err := mgr.Verify(ctx, "a@x.com", PurposeEmailVerification, code); err != nil {
		t.Fatalf("verify after miss: %v", err)
	}
}

func TestVerifyAttemptCapBlocksEvenCorrectCode(t *testing.T) {
	mgr, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	code, err := mgr.Create(ctx, "a@x.com", PurposeLogin, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < maxVerifyAttempts; i++ {
		if err := mgr.Verify(ctx, "a@x.com", PurposeLogin, wrong); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d = %v, want ErrInvalidCode", i+1, err)
		}
	}

	// Attempts are exhausted; the correct code is rejected too.
	if err := mgr.Verify(ctx, "a@x.com", PurposeLogin, code); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("verify after cap = %v, want ErrTooManyAttempts", err)
	}
}

func TestCreateOverwritesAndResetsAttempts(t *testing.T) {
	mgr, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	first, err := mgr.Create(ctx, "a@x.com", PurposeEmailVerification, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Burn some attempts against the first code.
	wrong := "000000"
	if wrong == first {
		wrong = "000001"
	}
	for i := 0; i < maxVerifyAttempts; i++ {
		_ = mgr.Verify(ctx, "a@x.com", PurposeEmailVerification, wrong)
	}

	second, err := mgr.Create(ctx, "a@x.com", PurposeEmailVerification, 10*time.Minute)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}

	// Fresh code, fresh attempt budget; the first code is gone.
	if err := mgr.Verify(ctx, "a@x.com", PurposeEmailVerification, second); err != nil {
		t.Fatalf("verify new code: %v", err)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	mgr, mr, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	code, err := mgr.Create(ctx, "a@x.com", PurposeEmailVerification, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := mgr.Verify(ctx, "a@x.com", PurposeEmailVerification, code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expired verify = %v, want ErrCodeNotFound", err)
	}
}

func TestPurposesAreIsolated(t *testing.T) {
	mgr, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	code, err := mgr.Create(ctx, "a@x.com", PurposeEmailVerification, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := mgr.Verify(ctx, "a@x.com", PurposePasswordReset, code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("cross-purpose verify = %v, want ErrCodeNotFound", err)
	}
}
