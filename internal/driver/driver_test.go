package driver

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestPromptStack(t *testing.T) {
	var s PromptStack
	s.AddSystem("rules")
	s.AddUser("one")
	s.AddAssistant("two")
	s.AddSystem("more rules")
	s.AddUser("three")

	if got := s.System(); got != "rules\n\nmore rules" {
		t.Errorf("System() = %q", got)
	}
	if got := s.LastUser(); got != "three" {
		t.Errorf("LastUser() = %q", got)
	}
	want := "User: one\n\nAssistant: two\n\nUser: three"
	if got := s.Transcript(); got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}

	var single PromptStack
	single.AddSystem("rules")
	single.AddUser("only")
	if got := single.Transcript(); got != "only" {
		t.Errorf("single Transcript() = %q", got)
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad")
	err := Permanent(base)
	if !IsPermanent(err) {
		t.Error("expected permanent")
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(base) {
		t.Error("plain error should not be permanent")
	}
}

func TestEchoPromptDriver(t *testing.T) {
	d := NewEchoPromptDriver()
	var s PromptStack
	s.AddUser("hello there world")

	out, err := d.Run(context.Background(), s)
	if err != nil || out.Value != "hello there world" {
		t.Fatalf("Run = %v, %v", out, err)
	}

	var chunks []string
	out, err = d.Stream(context.Background(), s, func(c string) { chunks = append(chunks, c) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if strings.Join(chunks, "") != out.Value || len(chunks) != 3 {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestHashEmbeddingDriver(t *testing.T) {
	d := NewHashEmbeddingDriver(0)
	ctx := context.Background()

	a, _ := d.EmbedChunk(ctx, "The quick brown fox")
	b, _ := d.EmbedChunk(ctx, "the QUICK brown fox!")
	c, _ := d.EmbedChunk(ctx, "")

	if len(a) != defaultHashDimensions {
		t.Fatalf("expected %d dims, got %d", defaultHashDimensions, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected case and punctuation insensitivity, differ at %d", i)
		}
	}
	var norm float64
	for _, v := range a {
		norm += v * v
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Errorf("expected unit vector, got norm %f", norm)
	}
	for _, v := range c {
		if v != 0 {
			t.Fatalf("expected zero vector for empty text, got %v", c)
		}
	}
}

func TestNewFactories(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{typ: "", want: "echo"},
		{typ: "echo", want: "echo"},
		{typ: "cloud", want: "auto"},
		{typ: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run("prompt/"+tt.typ, func(t *testing.T) {
			d, err := New(ctx, Config{Type: tt.typ}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if d.Model() != tt.want {
				t.Errorf("Model() = %q, want %q", d.Model(), tt.want)
			}
		})
	}

	emb, err := NewEmbedding(ctx, Config{Type: "hash"})
	if err != nil || emb.Model() != "hash" {
		t.Errorf("NewEmbedding(hash) = %v, %v", emb, err)
	}
	if _, err := NewEmbedding(ctx, Config{Type: "command"}); err == nil {
		t.Error("expected error for command embedding driver")
	}
}
