package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vovakirdan/spellbound-server/internal/store"
	"github.com/vovakirdan/spellbound-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	for _, name := range []string{"ab", " ab ", "has space", "semi;colon", strings.Repeat("a", 33)} {
		if _, err := svc.Register(ctx, name, "password123"); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("%q: expected ErrInvalidUsername, got %v", name, err)
		}
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "abc", "12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := svc.Register(ctx, "abc", strings.Repeat("x", 73)); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, " alice ", "password123")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}

	identity, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity != "alice" {
		t.Fatalf("expected identity alice, got %q", identity)
	}

	if _, err := svc.Register(ctx, "alice", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "bob", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	token, err := svc.Login(ctx, "bob", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Username != "bob" || claims.Subject != "bob" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	svc := newTestAuthService(t)

	expired, err := GenerateToken(svc.jwtConfig, "alice", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	otherSecret := &JWTConfig{Secret: []byte("other"), Issuer: "test", Audience: "test", TTL: time.Hour}
	forged, err := GenerateToken(otherSecret, "alice", time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	wrongAudience := &JWTConfig{Secret: svc.jwtConfig.Secret, Issuer: "test", Audience: "elsewhere", TTL: time.Hour}
	misaddressed, err := GenerateToken(wrongAudience, "alice", time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"username": "alice"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"expired":        expired,
		"forged":         forged,
		"wrong audience": misaddressed,
		"unsigned":       unsigned,
	} {
		if _, err := svc.Authenticate(token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

// lateCollisionStore misses the user on lookup but loses the insert, as a
// store does when a concurrent registration commits in between.
type lateCollisionStore struct{}

func (lateCollisionStore) CreateUser(context.Context, string, string) (*store.User, error) {
	return nil, fmt.Errorf("user: %w", store.ErrAlreadyExists)
}

func (lateCollisionStore) GetUserByUsername(context.Context, string) (*store.User, error) {
	return nil, store.ErrNotFound
}

func TestRegister_InsertCollisionIsUserExists(t *testing.T) {
	svc := NewService(lateCollisionStore{}, &JWTConfig{Secret: []byte("s"), TTL: time.Hour})

	_, err := svc.Register(context.Background(), "alice", "password123")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "carol", "password123")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, ErrUserExists):
			t.Fatalf("expected ErrUserExists, got %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one registration, got %d", created)
	}
}
