package gateway

import (
	"context"
	"io"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tmphost/internal/core"
)

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "@alice"},
		{"@alice", "@alice"},
		{" alice ", "@alice"},
		{"123456789", "123456789"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeIdentity(tt.in); got != tt.want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentityFor(t *testing.T) {
	t.Run("PrefersHandle", func(t *testing.T) {
		user := &tgbotapi.User{ID: 42, UserName: "alice"}
		if got := identityFor(user); got != core.Identity("@alice") {
			t.Errorf("identityFor = %q, want @alice", got)
		}
	})

	t.Run("FallsBackToNumericID", func(t *testing.T) {
		user := &tgbotapi.User{ID: 42}
		if got := identityFor(user); got != core.Identity("42") {
			t.Errorf("identityFor = %q, want 42", got)
		}
	})
}

func TestBestPhoto(t *testing.T) {
	photos := []tgbotapi.PhotoSize{
		{FileID: "small", FileSize: 100},
		{FileID: "large", FileSize: 90000},
		{FileID: "medium", FileSize: 5000},
	}
	if got := bestPhoto(photos); got.FileID != "large" {
		t.Errorf("bestPhoto picked %q, want the largest variant", got.FileID)
	}
}

func TestRenderVCard(t *testing.T) {
	t.Run("PassesThroughOriginal", func(t *testing.T) {
		contact := &tgbotapi.Contact{VCard: "BEGIN:VCARD\r\nEND:VCARD\r\n"}
		if got := renderVCard(contact); got != contact.VCard {
			t.Errorf("renderVCard should keep the attached vCard, got %q", got)
		}
	})

	t.Run("SynthesizesMinimalCard", func(t *testing.T) {
		contact := &tgbotapi.Contact{
			FirstName:   "Ada",
			LastName:    "Lovelace",
			PhoneNumber: "+4312345",
		}
		got := renderVCard(contact)
		for _, want := range []string{"BEGIN:VCARD", "FN:Ada Lovelace", "TEL;TYPE=CELL:+4312345", "END:VCARD"} {
			if !strings.Contains(got, want) {
				t.Errorf("vCard missing %q:\n%s", want, got)
			}
		}
	})
}

func TestSubmissionFrom(t *testing.T) {
	g := &Telegram{}

	t.Run("Text", func(t *testing.T) {
		msg := &tgbotapi.Message{Text: "/text\nhello"}
		sub, ok := g.submissionFrom(msg)
		if !ok || sub.Kind != core.KindText || sub.Text != "/text\nhello" {
			t.Errorf("unexpected submission: %+v ok=%v", sub, ok)
		}
	})

	t.Run("Contact", func(t *testing.T) {
		msg := &tgbotapi.Message{Contact: &tgbotapi.Contact{FirstName: "Ada"}}
		sub, ok := g.submissionFrom(msg)
		if !ok || sub.Kind != core.KindContact {
			t.Fatalf("unexpected submission: %+v ok=%v", sub, ok)
		}
		rc, err := sub.Open(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if !strings.Contains(string(data), "BEGIN:VCARD") {
			t.Errorf("contact payload should be a vCard, got %q", data)
		}
	})

	t.Run("EmptyMessageIsSkipped", func(t *testing.T) {
		if _, ok := g.submissionFrom(&tgbotapi.Message{}); ok {
			t.Error("a message with no payload should be skipped")
		}
	})
}
