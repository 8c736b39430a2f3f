package session

import (
	"context"
	"sync"
	"testing"

	"tmphost/internal/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("GetReturnsZeroValueForUnknownIdentity", func(t *testing.T) {
		s := NewMemory()

		st, err := s.Get(ctx, "@alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st != (State{}) {
			t.Errorf("expected zero state, got %+v", st)
		}
	})

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		s := NewMemory()

		want := State{AccumulatedText: "chunk", AwaitingContinuation: true, UnrecognizedStreak: 2}
		if err := s.Set(ctx, "@alice", want); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := s.Get(ctx, "@alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("Get() = %+v, want %+v", got, want)
		}
	})

	t.Run("SessionsAreIndependentPerIdentity", func(t *testing.T) {
		s := NewMemory()

		if err := s.Set(ctx, "@alice", State{AccumulatedText: "a"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		st, err := s.Get(ctx, "@bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.AccumulatedText != "" {
			t.Errorf("@bob should not see @alice's state, got %+v", st)
		}
	})

	t.Run("OverrideIsConsumedExactlyOnce", func(t *testing.T) {
		s := NewMemory()

		if err := s.SetOverride(ctx, "@bob", "md"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ext, ok, err := s.ConsumeOverride(ctx, "@bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok || ext != "md" {
			t.Fatalf("ConsumeOverride() = %q, %v; want \"md\", true", ext, ok)
		}

		_, ok, err = s.ConsumeOverride(ctx, "@bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatal("override should be gone after first consume")
		}
	})

	t.Run("SecondOverrideReplacesFirst", func(t *testing.T) {
		s := NewMemory()

		if err := s.SetOverride(ctx, "@bob", "md"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.SetOverride(ctx, "@bob", "rst"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ext, ok, _ := s.ConsumeOverride(ctx, "@bob")
		if !ok || ext != "rst" {
			t.Errorf("ConsumeOverride() = %q, %v; want \"rst\", true", ext, ok)
		}
	})

	t.Run("ConcurrentAccessIsSafe", func(t *testing.T) {
		s := NewMemory()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				id := core.Identity(rune('a' + n%4))
				_ = s.Set(ctx, id, State{UnrecognizedStreak: n})
				_, _ = s.Get(ctx, id)
				_ = s.SetOverride(ctx, id, "txt")
				_, _, _ = s.ConsumeOverride(ctx, id)
			}(i)
		}
		wg.Wait()
	})
}
