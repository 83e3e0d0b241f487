package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/joonpak/stockradar/internal/llm"
)

func TestPredictIndustries_RemovesUnknownRefs(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"industries":[
				{"name":"반도체","impact_level":"high","related_article_ids":["a1","ghost"]},
				{"name":"조선","impact_level":"medium","related_article_ids":["phantom"]}
			]}`, nil
		},
	}

	industries, err := predictIndustries(context.Background(), chat, selected(2))
	if err != nil {
		t.Fatalf("predictIndustries: %v", err)
	}
	if len(industries) != 1 {
		t.Fatalf("got %d industries, want 1 (zero-reference industry dropped)", len(industries))
	}
	in := industries[0]
	if in.Name != "반도체" {
		t.Errorf("name = %q", in.Name)
	}
	if len(in.RelatedArticleIDs) != 1 || in.RelatedArticleIDs[0] != "a1" {
		t.Errorf("refs = %v, unknown id must be removed", in.RelatedArticleIDs)
	}
}

func TestPredictIndustries_AllDroppedIsError(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"industries":[{"name":"조선","related_article_ids":["ghost"]}]}`, nil
		},
	}
	if _, err := predictIndustries(context.Background(), chat, selected(2)); err == nil {
		t.Fatal("expected error when every industry loses its references")
	}
}

func TestPredictIndustries_MarkdownFence(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return "```json\n" + industriesJSON + "\n```", nil
		},
	}
	industries, err := predictIndustries(context.Background(), chat, selected(2))
	if err != nil {
		t.Fatalf("predictIndustries: %v", err)
	}
	if len(industries) != 1 {
		t.Errorf("got %d industries", len(industries))
	}
}

func TestPredictIndustries_ChatError(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return "", errors.New("model overloaded")
		},
	}
	if _, err := predictIndustries(context.Background(), chat, selected(2)); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeImpact(t *testing.T) {
	tests := []struct{ in, want string }{
		{"high", "high"},
		{"HIGH", "high"},
		{"높음", "high"},
		{"low", "low"},
		{"낮음", "low"},
		{"medium", "medium"},
		{"보통", "medium"},
		{"", "medium"},
	}
	for _, tt := range tests {
		if got := normalizeImpact(tt.in); got != tt.want {
			t.Errorf("normalizeImpact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
