package opsauth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/support-assistant/internal/platform/apierr"
)

func TestIssueVerify(t *testing.T) {
	s := NewSigner("s3cret", "support-assistant")
	tok, err := s.Issue("alice", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != RoleOperator {
		t.Fatalf("claims=%+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	s := NewSigner("s3cret", "")
	expired, _ := s.Issue("bob", -time.Minute)
	if _, err := s.Verify(expired); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("expired err=%v", err)
	}

	other, _ := NewSigner("other", "").Issue("eve", time.Hour)
	if _, err := s.Verify(other); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("wrong secret err=%v", err)
	}

	viewer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "viewer"}).SignedString([]byte("s3cret"))
	if _, err := s.Verify(viewer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer err=%v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleOperator}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := s.Verify(none); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("alg none err=%v", err)
	}

	if _, err := NewSigner("", "").Verify("x"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled err=%v", err)
	}
}
