package llm

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingProvider_RecordsEvents(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "llm.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	core, logs := observer.New(zap.DebugLevel)
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"score":1}`), Usage: Usage{InputTokens: 12, OutputTokens: 4}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("timeout")}},
	)
	p := WithLogging(mock, s.EventRepo(), logger.FromCore(core))

	ctx := WithPurpose(context.Background(), "grading")
	req := Request{System: "grade", Messages: []Message{{Role: RoleUser, Content: "answer"}}, ExpectJSON: true}
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := p.Generate(ctx, req); err == nil {
		t.Fatal("expected second call to fail")
	}

	events, err := s.EventRepo().QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	failed, ok := events[0], events[1]
	if failed.Success || failed.ErrorMessage == "" {
		t.Errorf("failed event = %+v", failed)
	}
	if !ok.Success || ok.Purpose != "grading" || ok.Provider != "mock" || ok.InputTokens != 12 {
		t.Errorf("ok event = %+v", ok)
	}
	if !strings.Contains(ok.RequestBody, "[expect: json]") || ok.ResponseBody != `{"score":1}` {
		t.Errorf("bodies = %q / %q", ok.RequestBody, ok.ResponseBody)
	}

	if logs.FilterMessage("llm request failed").Len() != 1 {
		t.Errorf("expected one failure warning, got %d", logs.FilterMessage("llm request failed").Len())
	}
}

func TestSerializeRequest(t *testing.T) {
	out := serializeRequest(Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
		Schema:   &Schema{Name: "quiz-questions", Definition: map[string]any{"type": "array"}},
	})
	for _, want := range []string{"[system]\nsys", "[user]\nhello", "[schema: quiz-questions]"} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized request missing %q:\n%s", want, out)
		}
	}
}
