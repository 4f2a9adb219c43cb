// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/resilience"
)

const corpus = `A Padaria Sabiá fica na Rua das Laranjeiras, número 42, no centro de Curitiba.
O horário de funcionamento da loja é de segunda a sexta, das 7h às 19h, e aos sábados das 8h às 13h.
O pão de queijo é a especialidade da casa e sai do forno a cada trinta minutos.
Entregas são feitas apenas em bairros vizinhos, com pedido mínimo de cinquenta reais.`

type countingEmbedder struct {
	inner Embedder
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Model() string { return "counting" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Embed(ctx, text)
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	store, err := NewChromemStore("")
	if err != nil {
		t.Fatal(err)
	}
	ix := NewIndex(store, NewHashEmbedder(0), "test",
		WithSplitter(NewSplitter(16, 6)),
		WithScoreThreshold(0.3),
	)
	if _, err := ix.Build(context.Background(), "padaria.txt", corpus); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return ix
}

func TestSplitter(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"empty", "   ", 3, 1, nil},
		{"single chunk", "um dois três", 5, 1, []string{"um dois três"}},
		{
			"overlapping",
			"um, dois; três quatro cinco",
			3, 1,
			[]string{"um, dois; três", "três quatro cinco"},
		},
		{"accents stay whole", "ação rápida", 1, 0, []string{"ação", "rápida"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := NewSplitter(tt.size, tt.overlap).Split(tt.text)
			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks %+v, want %d", len(chunks), chunks, len(tt.want))
			}
			for i, c := range chunks {
				if c.Text != tt.want[i] || c.Seq != i {
					t.Errorf("chunk %d = %+v, want %q", i, c, tt.want[i])
				}
			}
		})
	}
}

func TestSplitterCorrectsInvalidOptions(t *testing.T) {
	s := NewSplitter(0, 500)
	if s.Size != 200 || s.Overlap != 40 {
		t.Errorf("unexpected defaults %+v", s)
	}
}

func TestWords(t *testing.T) {
	got := Words("Olá, MUNDO! 42 VEZES em SÃO Paulo.")
	want := []string{"olá", "mundo", "42", "vezes", "em", "são", "paulo"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Words() = %v, want %v", got, want)
	}
	if CountWords("  ...  ") != 0 {
		t.Errorf("punctuation must not count as words")
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "Pão de queijo")
	b, _ := e.Embed(ctx, "pão DE queijo!")
	if len(a) != 64 {
		t.Fatalf("dims = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding must ignore case and punctuation")
		}
	}
	var norm float32
	for _, v := range a {
		norm += v * v
	}
	if norm < 0.999 || norm > 1.001 {
		t.Errorf("expected unit vector, norm^2 = %f", norm)
	}

	zero, _ := e.Embed(ctx, "?!")
	if !isZero(zero) {
		t.Error("text without words must embed to zero")
	}
}

func TestCachedEmbedder(t *testing.T) {
	db, err := OpenEmbeddingCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	inner := &countingEmbedder{inner: NewHashEmbedder(32)}
	c, err := NewCachedEmbedder(inner, ModelOf(inner, "x"), db)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first, err := c.Embed(ctx, "pão de queijo")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Embed(ctx, "pão de queijo")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("expected one upstream call, got %d", inner.calls.Load())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached vector differs")
		}
	}

	other, err := NewCachedEmbedder(inner, "another-model", db)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Embed(ctx, "pão de queijo"); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("cache must be keyed by model, calls = %d", inner.calls.Load())
	}
}

func TestIndexQuerySeededCorpus(t *testing.T) {
	ix := newTestIndex(t)

	chunks, err := ix.Query(context.Background(), "Qual é o horário de funcionamento da loja?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected a match")
	}
	if !strings.Contains(strings.Join(chunks, "\n"), "horário de funcionamento da loja") {
		t.Errorf("expected seeded chunk verbatim, got %q", chunks)
	}
	for _, c := range chunks {
		if !strings.Contains(corpus, c) {
			t.Errorf("chunk %q is not a verbatim corpus slice", c)
		}
	}
}

func TestIndexQueryIrrelevant(t *testing.T) {
	ix := newTestIndex(t)

	chunks, err := ix.Query(context.Background(), "quantum chromodynamics lattice gauge", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no match, got %q", chunks)
	}
}

func TestIndexRebuildIsIdempotent(t *testing.T) {
	store, _ := NewChromemStore("")
	ix := NewIndex(store, NewHashEmbedder(0), "c", WithSplitter(NewSplitter(16, 6)))
	ctx := context.Background()

	first, err := ix.Build(ctx, "a.txt", corpus)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Build(ctx, "a.txt", corpus); err != nil {
		t.Fatal(err)
	}
	col, _ := store.collection("c")
	if col.Count() != first.Chunks {
		t.Errorf("rebuild duplicated points: count = %d, chunks = %d", col.Count(), first.Chunks)
	}
}

func TestIndexBuildErrors(t *testing.T) {
	store, _ := NewChromemStore("")
	ctx := context.Background()

	empty := NewIndex(store, NewHashEmbedder(0), "c")
	if _, err := empty.Build(ctx, "empty.txt", " \n "); err == nil {
		t.Error("expected error for empty corpus")
	}

	failing := &countingEmbedder{err: stderrors.New("embedder down")}
	ix := NewIndex(store, failing, "c", WithRetry(resilience.DefaultRetryConfig().WithMaxAttempts(2).WithInitialDelay(0)))
	if _, err := ix.Build(ctx, "a.txt", corpus); err == nil {
		t.Fatal("expected embed error")
	}
	if failing.calls.Load() != 2 {
		t.Errorf("expected retry, calls = %d", failing.calls.Load())
	}
}

func TestCapabilityInvoke(t *testing.T) {
	c := NewCapability(newTestIndex(t), 3)
	ctx := context.Background()

	got, err := c.Invoke(ctx, "especialidade da casa pão de queijo")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "pão de queijo") {
		t.Errorf("Invoke() = %q", got)
	}

	for _, q := range []string{"", "quantum chromodynamics lattice gauge"} {
		got, err := c.Invoke(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		if got != NoInformation {
			t.Errorf("Invoke(%q) = %q, want %q", q, got, NoInformation)
		}
	}
}

func TestCapabilityInvokeFailure(t *testing.T) {
	store, _ := NewChromemStore("")
	ix := NewIndex(store, &countingEmbedder{err: stderrors.New("boom")}, "c")
	_, err := NewCapability(ix, 3).Invoke(context.Background(), "x")
	if errors.CodeOf(err) != errors.CodeToolFailure {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeToolFailure)
	}
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meus_dados.txt")
	if err := os.WriteFile(path, []byte(corpus), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.KnowledgeConfig{
		Enabled:        true,
		CorpusPath:     path,
		Collection:     "sabia",
		ChunkSize:      16,
		ChunkOverlap:   6,
		TopK:           3,
		ScoreThreshold: 0.3,
	}
	store, _ := NewChromemStore("")

	c, err := Factory(cfg, store, NewHashEmbedder(0), nil)(context.Background())
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	if c.Name() != Name {
		t.Errorf("Name() = %q", c.Name())
	}

	cfg.CorpusPath = filepath.Join(dir, "missing.txt")
	if _, err := Factory(cfg, store, NewHashEmbedder(0), nil)(context.Background()); err == nil {
		t.Error("expected missing corpus to fail construction")
	}

	cfg.Enabled = false
	if _, err := Factory(cfg, store, NewHashEmbedder(0), nil)(context.Background()); err == nil {
		t.Error("expected disabled knowledge to fail construction")
	}
}
