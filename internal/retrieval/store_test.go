package retrieval

import (
	"fmt"
	"testing"
	"time"

	"github.com/joonpak/stockradar/internal/storage"
)

func openVectorStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewSQLiteStore(st.DB())
}

// makeTestVector builds a deterministic unit-ish vector whose direction
// depends on seed, so similarity ordering in tests is predictable.
func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.01
	}
	return v
}

func makeRecord(id string, published time.Time, embedding []float32) Record {
	return Record{
		ID:           "v-" + id,
		ArticleID:    id,
		CanonicalURL: "https://news.example.com/" + id,
		PublishedAt:  published,
		Embedding:    embedding,
	}
}

func TestInsertAndCount(t *testing.T) {
	s := openVectorStore(t)
	published := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	records := []Record{
		makeRecord("a1", published, makeTestVector(8, 0.1)),
		makeRecord("a2", published, makeTestVector(8, 0.5)),
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestSearchOrdersByScore(t *testing.T) {
	s := openVectorStore(t)
	published := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	query := []float32{1, 0, 0, 0}
	records := []Record{
		makeRecord("far", published, []float32{0, 1, 0, 0}),
		makeRecord("near", published, []float32{1, 0.1, 0, 0}),
		makeRecord("mid", published, []float32{1, 1, 0, 0}),
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Search(query, 2, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].ArticleID != "near" {
		t.Errorf("top result = %q, want near", got[0].ArticleID)
	}
	if got[1].ArticleID != "mid" {
		t.Errorf("second result = %q, want mid", got[1].ArticleID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %g, %g", got[0].Score, got[1].Score)
	}
	// Results must carry citation metadata without a join.
	if got[0].CanonicalURL != "https://news.example.com/near" {
		t.Errorf("canonical_url = %q", got[0].CanonicalURL)
	}
	if !got[0].PublishedAt.Equal(published) {
		t.Errorf("published_at = %v, want %v", got[0].PublishedAt, published)
	}
}

func TestSearchWindowFilter(t *testing.T) {
	s := openVectorStore(t)
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	vec := []float32{1, 0, 0, 0}

	records := []Record{
		makeRecord("old", base.Add(-72*time.Hour), vec),
		makeRecord("inside", base.Add(-6*time.Hour), vec),
		makeRecord("future", base.Add(24*time.Hour), vec),
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Search(vec, 10, base.Add(-24*time.Hour), base)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1 inside window", len(got))
	}
	if got[0].ArticleID != "inside" {
		t.Errorf("result = %q, want inside", got[0].ArticleID)
	}

	// Zero window searches everything.
	got, err = s.Search(vec, 10, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d results without window, want 3", len(got))
	}
}

func TestSearchZeroQueryVector(t *testing.T) {
	s := openVectorStore(t)
	published := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	if err := s.Insert([]Record{makeRecord("a1", published, []float32{1, 0})}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Search([]float32{0, 0}, 5, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != nil {
		t.Errorf("got %d results for zero vector, want nil", len(got))
	}
}

func TestDeleteByArticleID(t *testing.T) {
	s := openVectorStore(t)
	published := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	if err := s.Insert([]Record{
		makeRecord("a1", published, []float32{1, 0}),
		makeRecord("a2", published, []float32{0, 1}),
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := s.DeleteByArticleID("a1"); err != nil {
		t.Fatalf("DeleteByArticleID: %v", err)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1 after delete", n)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	vec := makeTestVector(64, 0.3)
	decoded, err := decodeFloat32s(encodeFloat32s(vec))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("got %d floats, want %d", len(decoded), len(vec))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Fatalf("decoded[%d] = %g, want %g", i, decoded[i], vec[i])
		}
	}
}

func TestDecodeFloat32s_Corrupt(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for length not a multiple of 4")
	}
}

func TestSearchLargeCorpusTopK(t *testing.T) {
	s := openVectorStore(t)
	published := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	var records []Record
	for i := 0; i < 200; i++ {
		// Increasing similarity to the query with i.
		records = append(records, makeRecord(fmt.Sprintf("a%03d", i), published,
			[]float32{1, float32(200-i) * 0.01, 0, 0}))
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Search([]float32{1, 0, 0, 0}, 5, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d results, want 5", len(got))
	}
	if got[0].ArticleID != "a199" {
		t.Errorf("top result = %q, want a199 (most aligned)", got[0].ArticleID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at %d: %g > %g", i, got[i].Score, got[i-1].Score)
		}
	}
}
