package mail

import (
	"strings"
	"testing"
)

func TestVerificationEmail(t *testing.T) {
	subject, body := VerificationEmail(Job{Email: "a@b.com", Username: "Ada", Token: "tok 123"}, "https://app.example.com/")
	if subject == "" {
		t.Fatalf("empty subject")
	}
	if !strings.Contains(body, "Ada") {
		t.Fatalf("body missing username: %s", body)
	}
	if !strings.Contains(body, "https://app.example.com/verify-email?token=tok+123") {
		t.Fatalf("body missing verification link: %s", body)
	}
}

func TestVerificationEmailEscapesUsername(t *testing.T) {
	_, body := VerificationEmail(Job{Username: "<script>"}, "https://app.example.com")
	if strings.Contains(body, "<script>") {
		t.Fatalf("username not escaped: %s", body)
	}
}

func TestVerificationEmailBlankUsername(t *testing.T) {
	_, body := VerificationEmail(Job{Token: "t"}, "https://app.example.com")
	if !strings.Contains(body, "Hi there,") {
		t.Fatalf("missing fallback greeting: %s", body)
	}
}
