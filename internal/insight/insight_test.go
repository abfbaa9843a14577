package insight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func TestGeminiClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			t.Errorf("Missing API key header")
		}
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if body.Contents[0].Parts[0].Text == "fail" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
			return
		}
		if body.Contents[0].Parts[0].Text == "silent" {
			w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  "}]}}]}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":" Your payment "},{"text":"is final. "}]}}]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "key", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}

	text, err := client.Generate(context.Background(), "explain")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Your payment is final." {
		t.Errorf("Unexpected text %q", text)
	}

	if _, err := client.Generate(context.Background(), "fail"); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Expected quota error, got %v", err)
	}

	if _, err := client.Generate(context.Background(), "silent"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}

	if _, err := NewGeminiClient(GeminiConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestAdvisor(t *testing.T) {
	ctx := context.Background()

	t.Run("explain includes reference", func(t *testing.T) {
		gen := &stubGenerator{reply: "All good."}
		text, err := NewAdvisor(gen, nil).ExplainSettlement(ctx, "0xfeed")
		if err != nil || text != "All good." {
			t.Fatalf("ExplainSettlement = %q, %v", text, err)
		}
		if !strings.Contains(gen.prompts[0], "0xfeed") {
			t.Errorf("Prompt missing reference: %s", gen.prompts[0])
		}
	})

	t.Run("audit formats readings", func(t *testing.T) {
		gen := &stubGenerator{reply: "Normal for July."}
		samples := []UsageSample{
			{Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Value: 412.5, Unit: "gal", AccountType: "WATER"},
			{Date: time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), Value: 3.1, Unit: "therm"},
		}
		if _, err := NewAdvisor(gen, nil).AuditUsage(ctx, samples); err != nil {
			t.Fatalf("AuditUsage failed: %v", err)
		}
		for _, want := range []string{`"date": "2025-07-01"`, `"value": 412.5`, `"accountType": "unknown"`} {
			if !strings.Contains(gen.prompts[0], want) {
				t.Errorf("Prompt missing %s", want)
			}
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := NewAdvisor(&stubGenerator{}, nil).AuditUsage(ctx, nil); !errors.Is(err, ErrNoUsage) {
			t.Errorf("Expected ErrNoUsage, got %v", err)
		}
		if _, err := NewAdvisor(nil, nil).ExplainSettlement(ctx, "0x1"); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Expected ErrNotConfigured, got %v", err)
		}
		boom := errors.New("boom")
		if _, err := NewAdvisor(&stubGenerator{err: boom}, nil).ExplainSettlement(ctx, "0x1"); !errors.Is(err, boom) {
			t.Errorf("Expected generator error, got %v", err)
		}
	})
}
