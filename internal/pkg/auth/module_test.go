package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/polkiloo/storefront/internal/config"
)

func TestNewPasswordHasherUsesConfiguredCost(t *testing.T) {
	cases := []struct {
		name string
		cost int
		want int
	}{
		{name: "configured", cost: bcrypt.MinCost, want: bcrypt.MinCost},
		{name: "unset", cost: 0, want: bcrypt.DefaultCost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hasher := newPasswordHasher(authParams{Config: &config.Config{PasswordHashCost: tc.cost}})
			bcryptHasher, ok := hasher.(*BcryptHasher)
			if !ok {
				t.Fatalf("expected *BcryptHasher, got %T", hasher)
			}
			if bcryptHasher.cost != tc.want {
				t.Fatalf("expected cost %d, got %d", tc.want, bcryptHasher.cost)
			}
		})
	}
}

func TestNewTokenStrategy(t *testing.T) {
	strategy := newTokenStrategy(authParams{Config: &config.Config{JWTSecret: "storefront-secret", TokenTTL: 2 * time.Hour}})
	hmacStrategy, ok := strategy.(*HMACStrategy)
	if !ok {
		t.Fatalf("expected *HMACStrategy, got %T", strategy)
	}
	if string(hmacStrategy.secret) != "storefront-secret" {
		t.Fatalf("unexpected secret: %q", string(hmacStrategy.secret))
	}
	if hmacStrategy.ttl != 2*time.Hour {
		t.Fatalf("expected configured ttl, got %s", hmacStrategy.ttl)
	}

	fallback := newTokenStrategy(authParams{Config: &config.Config{JWTSecret: "s"}}).(*HMACStrategy)
	if fallback.ttl != 24*time.Hour {
		t.Fatalf("expected default ttl, got %s", fallback.ttl)
	}
}
