package chat

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		if got := truncate("feed unavailable", 50); got != "feed unavailable" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("long strings get an ellipsis", func(t *testing.T) {
		got := truncate(strings.Repeat("x", 100), 50)
		if len(got) != 50 {
			t.Errorf("expected 50 chars, got %d", len(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})

	t.Run("multibyte strings cut on a rune boundary", func(t *testing.T) {
		got := truncate(strings.Repeat("市場データが取得できません", 10), 50)
		if !utf8.ValidString(got) {
			t.Fatalf("truncation produced invalid UTF-8: %q", got)
		}
		if utf8.RuneCountInString(got) != 50 {
			t.Errorf("expected 50 runes, got %d", utf8.RuneCountInString(got))
		}
	})
}

func TestDisplayToolName(t *testing.T) {
	if got := displayToolName("stock_quote"); got != "stock quote" {
		t.Errorf("got %q", got)
	}
}
