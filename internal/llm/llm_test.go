package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmtonkinson/releasepilot/internal/config"
)

func TestBudget(t *testing.T) {
	b := NewBudget(2)
	if b.Remaining() != 2 {
		t.Fatalf("Remaining() = %d, want 2", b.Remaining())
	}
	if err := b.Acquire(); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if err := b.Acquire(); err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if err := b.Acquire(); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("third Acquire() error = %v, want ErrBudgetExhausted", err)
	}
	if b.Used() != 2 || b.Remaining() != 0 {
		t.Fatalf("Used()/Remaining() = %d/%d, want 2/0", b.Used(), b.Remaining())
	}
}

func TestBudgetZeroAllowsNothing(t *testing.T) {
	b := NewBudget(0)
	if err := b.Acquire(); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("Acquire() error = %v, want ErrBudgetExhausted", err)
	}
}

func TestChatClientComplete(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "OURS"}},
			},
		})
	}))
	defer server.Close()

	c := newChatClient("openai", server.URL, "sk-test", "gpt-4o-mini", 5*time.Second)
	got, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "user", Temperature: 0.1})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "OURS" {
		t.Fatalf("Complete() = %q, want OURS", got)
	}
	if captured.Model != "gpt-4o-mini" {
		t.Fatalf("request model = %q, want gpt-4o-mini", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v, want system then user", captured.Messages)
	}
}

func TestChatClientRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	c := newChatClient("generic", server.URL, "", "local-model", 5*time.Second)
	got, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("Complete() = %q, want ok", got)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestChatClientDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newChatClient("openai", server.URL, "bad-key", "gpt-4o-mini", 5*time.Second)
	if _, err := c.Complete(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Fatalf("Complete() = nil error, want failure")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on 401)", attempts)
	}
}

func TestNewProvider(t *testing.T) {
	t.Setenv("RP_TEST_KEY", "sk-test")

	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{
			name: "openai with key",
			cfg:  config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", APIKeyEnv: "RP_TEST_KEY", TimeoutSeconds: 10},
		},
		{
			name: "anthropic with key",
			cfg:  config.LLMConfig{Provider: config.ProviderAnthropic, Model: "claude-sonnet-4-5", APIKeyEnv: "RP_TEST_KEY", TimeoutSeconds: 10},
		},
		{
			name: "generic without endpoint",
			cfg:  config.LLMConfig{Provider: config.ProviderGeneric, Model: "llama3", APIKeyEnv: "RP_TEST_KEY"},
			wantErr: true,
		},
		{
			name: "generic with endpoint and no key",
			cfg:  config.LLMConfig{Provider: config.ProviderGeneric, Model: "llama3", APIKeyEnv: "RP_ABSENT_KEY", Endpoint: "http://localhost:11434/v1/chat/completions"},
		},
		{
			name:    "openai missing key",
			cfg:     config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", APIKeyEnv: "RP_ABSENT_KEY"},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     config.LLMConfig{Provider: "palm", APIKeyEnv: "RP_TEST_KEY"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewProvider(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NewProvider() = nil error, want failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if p.Name() != tc.cfg.Provider {
				t.Fatalf("Name() = %q, want %q", p.Name(), tc.cfg.Provider)
			}
		})
	}
}
