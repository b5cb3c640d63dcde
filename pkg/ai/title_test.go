package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"short message", "Hello world", "Hello world"},
		{"first five words", "What is the capital of France, please tell me", "What is the capital of"},
		{"blank", "   ", "New Conversation"},
		{"collapses whitespace", "a  b\tc\nd e f", "a b c d e"},
		{"multibyte under limit", strings.TrimSpace(strings.Repeat("什么是吗 ", 5)), "什么是吗 什么是吗 什么是吗 什么是吗 什么是吗"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.in); got != tc.want {
				t.Fatalf("DeriveTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDeriveTitleTruncatesLongWords(t *testing.T) {
	long := strings.Repeat("a", 60)
	got := DeriveTitle(long)
	if len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("DeriveTitle long word = %q (len %d)", got, len(got))
	}
}

func TestDeriveTitleTruncatesOnRuneBoundaries(t *testing.T) {
	long := strings.Repeat("界", 60)
	got := DeriveTitle(long)
	if !utf8.ValidString(got) {
		t.Fatalf("DeriveTitle produced invalid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("DeriveTitle multibyte = %q (%d runes)", got, utf8.RuneCountInString(got))
	}
	if !strings.HasPrefix(got, strings.Repeat("界", 47)) {
		t.Fatalf("DeriveTitle multibyte cut at wrong rune: %q", got)
	}
}

type stubGenerator struct {
	reply string
	err   error
}

func (s *stubGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	return s.reply, s.err
}

func (s *stubGenerator) GenerateStream(ctx context.Context, messages []Message, emit func(string) error) error {
	return s.err
}

func TestLLMTitlerTrimsQuotes(t *testing.T) {
	titler := NewLLMTitler(&stubGenerator{reply: "  \"Capital Cities\"  "})
	got, err := titler.SuggestTitle(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got != "Capital Cities" {
		t.Fatalf("title = %q", got)
	}
}

func TestLLMTitlerFallsBackOnEmptyReply(t *testing.T) {
	titler := NewLLMTitler(&stubGenerator{reply: "  "})
	got, err := titler.SuggestTitle(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got != "What is the capital of" {
		t.Fatalf("title = %q", got)
	}
}

func TestLLMTitlerPropagatesError(t *testing.T) {
	titler := NewLLMTitler(&stubGenerator{err: errors.New("down")})
	if _, err := titler.SuggestTitle(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error")
	}
}
