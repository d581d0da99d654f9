package share

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLink_Unsigned(t *testing.T) {
	l := New("https://basket.example.com/", "")

	link, err := l.Link("family-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != "https://basket.example.com/?family=family-42" {
		t.Errorf("unexpected link %s", link)
	}

	family, invite, ok := ParseLink(link)
	if !ok || family != "family-42" || invite != "" {
		t.Errorf("ParseLink = %q %q %v", family, invite, ok)
	}
	if err := l.VerifyInvite("family-42", ""); err != nil {
		t.Errorf("unsigned links accept any join, got %v", err)
	}
	if _, err := l.Link("  "); err == nil {
		t.Error("expected error for empty family id")
	}
}

func TestLink_SignedRoundTrip(t *testing.T) {
	l := New("https://basket.example.com/?lang=he", "s3cret")

	link, err := l.Link("fam")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(link, "lang=he") {
		t.Errorf("existing query must be preserved: %s", link)
	}

	family, invite, ok := ParseLink(link)
	if !ok || invite == "" {
		t.Fatalf("expected family and invite in %s", link)
	}
	if err := l.VerifyInvite(family, invite); err != nil {
		t.Fatalf("expected valid invite, got %v", err)
	}
}

func TestVerifyInvite_Rejections(t *testing.T) {
	l := New("https://x/", "s3cret")
	token, err := l.Invite("fam")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Missing", func(t *testing.T) {
		if err := l.VerifyInvite("fam", ""); !errors.Is(err, ErrInviteRequired) {
			t.Errorf("expected ErrInviteRequired, got %v", err)
		}
	})

	t.Run("OtherFamily", func(t *testing.T) {
		if err := l.VerifyInvite("other", token); !errors.Is(err, ErrInviteInvalid) {
			t.Errorf("expected ErrInviteInvalid, got %v", err)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		if err := New("https://x/", "other").VerifyInvite("fam", token); !errors.Is(err, ErrInviteInvalid) {
			t.Errorf("expected ErrInviteInvalid, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		expired := New("https://x/", "s3cret")
		expired.now = func() time.Time { return time.Now().Add(DefaultInviteTTL + time.Hour) }
		if err := expired.VerifyInvite("fam", token); !errors.Is(err, ErrInviteInvalid) {
			t.Errorf("expected expired invite to be rejected, got %v", err)
		}
	})
}
