package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Paris"}}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", "test-key", "test-model")
	got, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "capital of France?"}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "Paris" {
		t.Fatalf("reply = %q", got)
	}
}

func TestOpenAIClientGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", "", "test-model")
	if _, err := client.Generate(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestOpenAIClientGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", "", "test-model")
	_, err := client.Generate(context.Background(), nil)
	if err == nil || err.Error() != "openai api error: rate limited" {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenAIClientGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", "", "test-model")
	var chunks []string
	err := client.GenerateStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "Hel" || chunks[1] != "lo" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestOpenAIClientGenerateStreamEmitErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"c%d\"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	stop := errors.New("stop")
	client := NewOpenAIClient(srv.URL+"/v1", "", "test-model")
	count := 0
	err := client.GenerateStream(context.Background(), nil, func(chunk string) error {
		count++
		if count == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want emit error returned unchanged", err)
	}
	if count != 3 {
		t.Fatalf("emit called %d times", count)
	}
}

func TestOpenAIClientRequiresModel(t *testing.T) {
	client := NewOpenAIClient("http://localhost/v1", "", "")
	if _, err := client.Generate(context.Background(), nil); err == nil {
		t.Fatalf("expected error for missing model")
	}
}
