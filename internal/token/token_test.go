package token_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/token"
)

func TestIssueAndParse(t *testing.T) {
	m := token.NewManager("secret", 24*time.Hour)

	raw, err := m.Issue(token.Claims{
		FirstName:    "Alice",
		LastName:     "Rossi",
		Email:        "alice@example.org",
		HTML:         true,
		NewsletterID: 7,
	})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}

	if claims.Email != "alice@example.org" || claims.NewsletterID != 7 || !claims.HTML {
		t.Errorf("claims not preserved: %+v", claims)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil || claims.ID == "" {
		t.Errorf("expected issued-at, expiry and id, got %+v", claims)
	}
}

func TestParseExpiredToken(t *testing.T) {
	m := token.NewManager("secret", -time.Hour)

	raw, err := m.Issue(token.Claims{Email: "alice@example.org"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Parse(raw)
	if !errors.As(err, new(*appErrors.TokenExpiredError)) {
		t.Errorf("expected TokenExpiredError, got %v", err)
	}
}

func TestParseTamperedToken(t *testing.T) {
	m := token.NewManager("secret", 24*time.Hour)

	raw, err := m.Issue(token.Claims{Email: "alice@example.org"})
	if err != nil {
		t.Fatal(err)
	}

	// Flip a character in the signature.
	last := raw[len(raw)-1:]
	replacement := "A"
	if last == "A" {
		replacement = "B"
	}
	tampered := raw[:len(raw)-1] + replacement

	if _, err := m.Parse(tampered); err == nil {
		t.Error("expected an error for a tampered token")
	}
}

func TestParseWrongSecret(t *testing.T) {
	issuer := token.NewManager("secret", 24*time.Hour)
	verifier := token.NewManager("other-secret", 24*time.Hour)

	raw, err := issuer.Issue(token.Claims{Email: "alice@example.org"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier.Parse(raw); err == nil {
		t.Error("expected an error when verifying with the wrong secret")
	}
}

func TestIssueUniqueIDs(t *testing.T) {
	m := token.NewManager("secret", 24*time.Hour)

	first, _ := m.Issue(token.Claims{Email: "alice@example.org"})
	second, _ := m.Issue(token.Claims{Email: "alice@example.org"})

	a, err := m.Parse(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Parse(second)
	if err != nil {
		t.Fatal(err)
	}
	if strings.EqualFold(a.ID, b.ID) {
		t.Error("two issued tokens must carry distinct ids")
	}
}
