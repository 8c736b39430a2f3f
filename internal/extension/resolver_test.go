package extension

import (
	"context"
	"testing"

	"tmphost/internal/session"
)

func resolve(t *testing.T, req Request) (string, []string) {
	t.Helper()
	var advisories []string
	r := New(session.NewMemory())
	ext, err := r.Resolve(context.Background(), req, func(msg string) {
		advisories = append(advisories, msg)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ext, advisories
}

func TestResolveCaption(t *testing.T) {
	tests := []struct {
		name     string
		caption  string
		want     string
		advised  bool
	}{
		{"valid caption wins", ".md", "md", false},
		{"caption with underscore and dash", ".tar_gz-1", "tar_gz-1", false},
		{"caption without leading dot advises", "md", "bin", true},
		{"caption with bad chars advises", ".m d", "bin", true},
		{"bare dot advises", ".", "bin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, advisories := resolve(t, Request{
				Identity: "@alice",
				Default:  "bin",
				Caption:  tt.caption,
			})
			if ext != tt.want {
				t.Errorf("Resolve() = %q, want %q", ext, tt.want)
			}
			if tt.advised && len(advisories) != 1 {
				t.Errorf("expected exactly one advisory, got %v", advisories)
			}
			if !tt.advised && len(advisories) != 0 {
				t.Errorf("expected no advisory, got %v", advisories)
			}
		})
	}
}

func TestResolveCaptionBeatsMIME(t *testing.T) {
	ext, _ := resolve(t, Request{
		Identity: "@alice",
		Default:  "bin",
		Caption:  ".md",
		MIME:     "image/jpeg",
	})
	if ext != "md" {
		t.Errorf("caption should override MIME, got %q", ext)
	}
}

func TestResolveMIME(t *testing.T) {
	tests := []struct {
		name    string
		mime    string
		want    string
		advised bool
	}{
		{"jpeg maps to jpg not jpe", "image/jpeg", "jpg", false},
		{"png", "image/png", "png", false},
		{"plain text", "text/plain", "txt", false},
		{"unknown type advises and falls through", "application/x-never-heard-of-it", "bin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, advisories := resolve(t, Request{
				Identity: "@alice",
				Default:  "bin",
				MIME:     tt.mime,
			})
			if ext != tt.want {
				t.Errorf("Resolve() = %q, want %q", ext, tt.want)
			}
			if tt.advised != (len(advisories) == 1) {
				t.Errorf("advisories = %v, advised wanted %v", advisories, tt.advised)
			}
		})
	}
}

func TestResolveDefault(t *testing.T) {
	ext, advisories := resolve(t, Request{Identity: "@alice", Default: "voice"})
	if ext != "voice" {
		t.Errorf("Resolve() = %q, want %q", ext, "voice")
	}
	if len(advisories) != 0 {
		t.Errorf("expected no advisory, got %v", advisories)
	}
}

func TestResolveQuietSuppressesAdvisories(t *testing.T) {
	ext, advisories := resolve(t, Request{
		Identity: "@alice",
		Default:  "jpg",
		Caption:  "not-an-extension",
		Quiet:    true,
	})
	if ext != "jpg" {
		t.Errorf("Resolve() = %q, want %q", ext, "jpg")
	}
	if len(advisories) != 0 {
		t.Errorf("quiet mode must suppress advisories, got %v", advisories)
	}
}

func TestResolveOverride(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemory()
	r := New(sessions)

	if err := sessions.SetOverride(ctx, "@bob", "md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First resolution consumes the override, beating the MIME hint.
	ext, err := r.Resolve(ctx, Request{
		Identity:      "@bob",
		Default:       "bin",
		MIME:          "application/pdf",
		AllowOverride: true,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext != "md" {
		t.Errorf("Resolve() = %q, want %q", ext, "md")
	}

	// Second resolution falls back to the MIME hint.
	ext, err = r.Resolve(ctx, Request{
		Identity:      "@bob",
		Default:       "bin",
		MIME:          "application/pdf",
		AllowOverride: true,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext != "pdf" {
		t.Errorf("Resolve() = %q, want %q", ext, "pdf")
	}
}

func TestResolveOverrideIgnoredWhenNotAllowed(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemory()
	r := New(sessions)

	if err := sessions.SetOverride(ctx, "@bob", "md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ext, err := r.Resolve(ctx, Request{Identity: "@bob", Default: "bin"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext != "bin" {
		t.Errorf("Resolve() = %q, want %q", ext, "bin")
	}

	// The override must still be pending.
	pending, ok, _ := sessions.ConsumeOverride(ctx, "@bob")
	if !ok || pending != "md" {
		t.Errorf("override should remain pending, got %q, %v", pending, ok)
	}
}

func TestPhpIsForcedToTxt(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"via caption", Request{Identity: "@alice", Default: "bin", Caption: ".php"}},
		{"via default", Request{Identity: "@alice", Default: "php"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, _ := resolve(t, tt.req)
			if ext != "txt" {
				t.Errorf("Resolve() = %q, want %q", ext, "txt")
			}
		})
	}

	t.Run("via override", func(t *testing.T) {
		ctx := context.Background()
		sessions := session.NewMemory()
		r := New(sessions)
		_ = sessions.SetOverride(ctx, "@alice", "php")

		ext, err := r.Resolve(ctx, Request{Identity: "@alice", Default: "bin", AllowOverride: true}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ext != "txt" {
			t.Errorf("Resolve() = %q, want %q", ext, "txt")
		}
	})
}

func TestParseDotted(t *testing.T) {
	if ext, err := ParseDotted(".md"); err != nil || ext != "md" {
		t.Errorf("ParseDotted(.md) = %q, %v", ext, err)
	}
	for _, bad := range []string{"md", ".", ".a b", ".a/b", ""} {
		if _, err := ParseDotted(bad); err == nil {
			t.Errorf("ParseDotted(%q) should fail", bad)
		}
	}
}
