package purge

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"tmphost/internal/journal"
	"tmphost/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]bool
	// failPaths cannot be removed.
	failPaths map[string]bool
	listErr   error
}

func newFakeStore(paths ...string) *fakeStore {
	s := &fakeStore{objects: make(map[string]bool), failPaths: make(map[string]bool)}
	for name := range store.ProtectedNames {
		s.objects["/"+name] = true
	}
	for _, p := range paths {
		s.objects[p] = true
	}
	return s
}

func (s *fakeStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[path], nil
}

func (s *fakeStore) Put(context.Context, string, io.Reader) (int64, error) {
	return 0, fmt.Errorf("not used")
}

func (s *fakeStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var paths []string
	for path := range s.objects {
		if store.ProtectedNames[strings.TrimPrefix(path, "/")] {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *fakeStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPaths[path] {
		return fmt.Errorf("permission denied: %s", path)
	}
	delete(s.objects, path)
	return nil
}

func (s *fakeStore) URL(path string) string { return "https://paste.test" + path }
func (s *fakeStore) Close() error           { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type captureReplier struct {
	messages []string
}

func (r *captureReplier) Reply(_ context.Context, text string) error {
	r.messages = append(r.messages, text)
	return nil
}

func TestRequest(t *testing.T) {
	ctx := context.Background()
	protected := len(store.ProtectedNames)

	t.Run("DisabledWithoutPassword", func(t *testing.T) {
		st := newFakeStore("/a.txt")
		p := New(st, journal.NoopRecorder{}, nil, "", "@admin")
		reply := &captureReplier{}

		outcome, err := p.Request(ctx, "t1", "@admin", "anything", reply)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeDisabled {
			t.Errorf("outcome = %s, want disabled", outcome)
		}
		if st.count() != protected+1 {
			t.Error("disabled workflow must not remove anything")
		}
	})

	t.Run("UnauthorizedIdentity", func(t *testing.T) {
		st := newFakeStore("/a.txt")
		p := New(st, journal.NoopRecorder{}, nil, "secret", "@admin")
		reply := &captureReplier{}

		outcome, err := p.Request(ctx, "t2", "@mallory", "secret", reply)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeUnauthorized {
			t.Errorf("outcome = %s, want unauthorized", outcome)
		}
		if st.count() != protected+1 {
			t.Error("a non-super-user must not remove anything")
		}
		if len(reply.messages) != 1 || !strings.Contains(reply.messages[0], "not allowed") {
			t.Errorf("expected one unauthorized notice, got %v", reply.messages)
		}
	})

	t.Run("WrongPasswordRefusedSilently", func(t *testing.T) {
		st := newFakeStore("/a.txt")
		p := New(st, journal.NoopRecorder{}, nil, "secret", "@admin")
		reply := &captureReplier{}

		outcome, err := p.Request(ctx, "t3", "@admin", "guess", reply)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeRefused {
			t.Errorf("outcome = %s, want refused", outcome)
		}
		if st.count() != protected+1 {
			t.Error("a wrong password must not remove anything")
		}
		if len(reply.messages) != 0 {
			t.Errorf("a wrong password must produce no reply, got %v", reply.messages)
		}
	})

	t.Run("RemovesAllButProtected", func(t *testing.T) {
		st := newFakeStore("/a.txt", "/b.jpg", "/c.bin")
		p := New(st, journal.NoopRecorder{}, nil, "secret", "@admin")
		reply := &captureReplier{}

		outcome, err := p.Request(ctx, "t4", "@admin", "secret", reply)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeCompleted {
			t.Errorf("outcome = %s, want completed", outcome)
		}
		if st.count() != protected {
			t.Errorf("expected only the protected files to remain, %d objects left", st.count())
		}
		for name := range store.ProtectedNames {
			if exists, _ := st.Exists(ctx, "/"+name); !exists {
				t.Errorf("protected file %s was deleted", name)
			}
		}

		var summary string
		if n := len(reply.messages); n > 0 {
			summary = reply.messages[n-1]
		}
		if !strings.Contains(summary, "deleted 3 objects (0 failed)") {
			t.Errorf("unexpected summary: %q", summary)
		}
	})

	t.Run("PartialFailureContinues", func(t *testing.T) {
		st := newFakeStore("/a.txt", "/b.jpg", "/c.bin")
		st.failPaths["/b.jpg"] = true
		p := New(st, journal.NoopRecorder{}, nil, "secret", "@admin")
		reply := &captureReplier{}

		outcome, err := p.Request(ctx, "t5", "@admin", "secret", reply)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeCompleted {
			t.Errorf("outcome = %s, want completed", outcome)
		}
		if exists, _ := st.Exists(ctx, "/a.txt"); exists {
			t.Error("/a.txt should have been removed despite the /b.jpg failure")
		}
		if exists, _ := st.Exists(ctx, "/b.jpg"); !exists {
			t.Error("/b.jpg removal failed and the object should remain")
		}

		var summary string
		if n := len(reply.messages); n > 0 {
			summary = reply.messages[n-1]
		}
		if !strings.Contains(summary, "deleted 2 objects (1 failed)") {
			t.Errorf("unexpected summary: %q", summary)
		}
	})

	t.Run("ListFailureReportsFailedOutcome", func(t *testing.T) {
		st := newFakeStore("/a.txt")
		st.listErr = fmt.Errorf("bucket unreachable")
		p := New(st, journal.NoopRecorder{}, nil, "secret", "@admin")
		reply := &captureReplier{}

		outcome, err := p.Request(ctx, "t6", "@admin", "secret", reply)
		if err == nil {
			t.Fatal("expected an error when the store cannot be listed")
		}
		if outcome != OutcomeFailed {
			t.Errorf("outcome = %s, want failed", outcome)
		}
		if st.count() != protected+1 {
			t.Error("a failed enumeration must not remove anything")
		}
	})
}
