package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStreamChat(t *testing.T) {
	t.Run("sends request and opens stream", func(t *testing.T) {
		var gotReq ChatRequest
		var gotAuth, gotAccept string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/chat" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			gotAuth = r.Header.Get("Authorization")
			gotAccept = r.Header.Get("Accept")
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("decode request: %v", err)
			}
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, `{"type":"done"}`+"\n")
		}))
		t.Cleanup(srv.Close)

		client := NewClient(srv.URL, WithTokenSource(StaticToken("secret")))
		stream, err := client.StreamChat(context.Background(), ChatRequest{
			Prompt:  "price of AAPL",
			ModelID: "gpt-4o",
			Locale:  LocaleJA,
		})
		if err != nil {
			t.Fatalf("StreamChat: %v", err)
		}
		defer stream.Close()

		if gotAuth != "Bearer secret" {
			t.Errorf("authorization header: %q", gotAuth)
		}
		if gotAccept != "text/event-stream" {
			t.Errorf("accept header: %q", gotAccept)
		}
		if gotReq.Prompt != "price of AAPL" || gotReq.ModelID != "gpt-4o" || gotReq.Locale != LocaleJA {
			t.Errorf("request body: %+v", gotReq)
		}
		if stream.Degraded {
			t.Error("event-stream content type should not be degraded")
		}

		body, err := io.ReadAll(stream.Body)
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if !strings.Contains(string(body), `"done"`) {
			t.Errorf("unexpected stream body: %q", body)
		}
	})

	t.Run("tolerates wrong content type as degraded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"type":"done"}`+"\n")
		}))
		t.Cleanup(srv.Close)

		client := NewClient(srv.URL)
		stream, err := client.StreamChat(context.Background(), ChatRequest{Prompt: "q", ModelID: "gpt-4o"})
		if err != nil {
			t.Fatalf("StreamChat: %v", err)
		}
		defer stream.Close()
		if !stream.Degraded {
			t.Error("expected degraded stream for non event-stream content type")
		}
	})

	t.Run("classifies error statuses", func(t *testing.T) {
		tests := []struct {
			status int
			class  FailureClass
		}{
			{http.StatusBadRequest, FailureGeneric},
			{http.StatusUnauthorized, FailureAuth},
			{http.StatusInternalServerError, FailureGeneric},
			{http.StatusBadGateway, FailureNetwork},
			{http.StatusServiceUnavailable, FailureNetwork},
		}

		for _, tt := range tests {
			t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					http.Error(w, "nope", tt.status)
				}))
				t.Cleanup(srv.Close)

				// No token source: a 401 is terminal without a refresh.
				client := NewClient(srv.URL, WithRetryConfig(RetryConfig{MaxAttempts: 1}))
				_, err := client.StreamChat(context.Background(), ChatRequest{Prompt: "q", ModelID: "gpt-4o"})
				if err == nil {
					t.Fatal("expected error")
				}
				var failure *Failure
				if !errors.As(err, &failure) {
					t.Fatalf("expected *Failure, got %T", err)
				}
				if failure.Class != tt.class {
					t.Errorf("expected class %s, got %s", tt.class, failure.Class)
				}
			})
		}
	})
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","model":"gpt-4o"}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" || health.Model != "gpt-4o" {
		t.Errorf("unexpected health response: %+v", health)
	}
}

func TestRefreshingToken(t *testing.T) {
	t.Run("exchanges token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode refresh body: %v", err)
			}
			if body["token"] != "old" {
				t.Errorf("expected current token in refresh request, got %q", body["token"])
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"token":"new"}`)
		}))
		t.Cleanup(srv.Close)

		tokens := NewRefreshingToken("old", srv.URL, nil)
		if err := tokens.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if tokens.Token() != "new" {
			t.Errorf("token not replaced: %q", tokens.Token())
		}
	})

	t.Run("rejects empty replacement", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		t.Cleanup(srv.Close)

		tokens := NewRefreshingToken("old", srv.URL, nil)
		if err := tokens.Refresh(context.Background()); err == nil {
			t.Fatal("expected error for empty token")
		}
		if tokens.Token() != "old" {
			t.Errorf("token should be unchanged on failure: %q", tokens.Token())
		}
	})

	t.Run("static token refuses refresh", func(t *testing.T) {
		tokens := StaticToken("fixed")
		if err := tokens.Refresh(context.Background()); err == nil {
			t.Fatal("expected error from static token refresh")
		}
		if tokens.Token() != "fixed" {
			t.Errorf("unexpected token: %q", tokens.Token())
		}
	})
}
