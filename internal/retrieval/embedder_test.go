package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

// mockEmbedClient returns a vector derived from the text so tests can verify
// that results line up with inputs.
type mockEmbedClient struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	calls   atomic.Int32
}

func (m *mockEmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{float32(len(text)), 0.5}, nil
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	client := &mockEmbedClient{}
	e := NewEmbedder(client)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
	got, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(got), len(texts))
	}
	for i, text := range texts {
		if got[i][0] != float32(len(text)) {
			t.Errorf("got[%d][0] = %g, want %d (order not preserved)", i, got[i][0], len(text))
		}
	}
	if n := client.calls.Load(); n != int32(len(texts)) {
		t.Errorf("client called %d times, want %d", n, len(texts))
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := NewEmbedder(&mockEmbedClient{})
	got, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil for empty input", got)
	}
}

func TestEmbedBatch_ErrorPropagates(t *testing.T) {
	client := &mockEmbedClient{
		embedFn: func(ctx context.Context, text string) ([]float32, error) {
			if text == "bad" {
				return nil, fmt.Errorf("upstream failure")
			}
			return []float32{1}, nil
		},
	}
	e := NewEmbedder(client)

	_, err := e.EmbedBatch(context.Background(), []string{"ok", "bad", "ok"})
	if err == nil {
		t.Fatal("expected error when one embedding fails")
	}
	if !strings.Contains(err.Error(), "upstream failure") {
		t.Errorf("error = %q, want wrapped upstream failure", err)
	}
}
