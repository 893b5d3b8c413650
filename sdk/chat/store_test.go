package chat

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func testMessage(convID, role, content string, at time.Time) FinalMessage {
	return FinalMessage{
		ID:             "id-" + role + "-" + content[:min(4, len(content))],
		ConversationID: convID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestStoreMessages(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []FinalMessage{
		testMessage("conv-1", "user", "what is AAPL trading at", base),
		testMessage("conv-1", "assistant", "AAPL is trading at $233.10", base.Add(time.Second)),
		testMessage("conv-1", "user", "and MSFT", base.Add(2*time.Second)),
	}
	for _, msg := range msgs {
		if err := store.SaveMessage(msg); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	got, err := store.Messages("conv-1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i := range msgs {
		if got[i].Content != msgs[i].Content {
			t.Errorf("message %d out of order: %q", i, got[i].Content)
		}
	}

	t.Run("unknown conversation is empty", func(t *testing.T) {
		got, err := store.Messages("nope")
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no messages, got %d", len(got))
		}
	})

	t.Run("missing conversation id rejected", func(t *testing.T) {
		if err := store.SaveMessage(FinalMessage{Role: "user", Content: "x"}); err == nil {
			t.Fatal("expected error for message without conversation id")
		}
	})
}

func TestStoreSummaries(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveMessage(testMessage("conv-old", "user", "old question", base)); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := store.SaveMessage(testMessage("conv-new", "user", "new question", base.Add(time.Hour))); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := store.SaveMessage(testMessage("conv-new", "assistant", "new answer", base.Add(time.Hour+time.Second))); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	summaries, err := store.Summaries()
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != "conv-new" {
		t.Errorf("expected most recently updated first, got %s", summaries[0].ID)
	}
	if summaries[0].MessageCount != 2 {
		t.Errorf("expected count 2, got %d", summaries[0].MessageCount)
	}
	if summaries[0].Preview != "new answer" {
		t.Errorf("preview should track the latest message, got %q", summaries[0].Preview)
	}

	t.Run("title sticks to the first message", func(t *testing.T) {
		if err := store.SaveMessage(testMessage("conv-new", "user", "followup", base.Add(2*time.Hour))); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}

		summaries, err := store.Summaries()
		if err != nil {
			t.Fatalf("Summaries: %v", err)
		}
		if summaries[0].Title != "new question" {
			t.Errorf("title changed on append: %q", summaries[0].Title)
		}
		if summaries[0].Preview != "followup" {
			t.Errorf("preview should track the latest message, got %q", summaries[0].Preview)
		}
	})
}

func TestStoreDeleteConversation(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	base := time.Now().UTC()
	if err := store.SaveMessage(testMessage("conv-1", "user", "hello", base)); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := store.SaveMessage(testMessage("conv-2", "user", "other", base)); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	if err := store.DeleteConversation("conv-1"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}

	msgs, err := store.Messages("conv-1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected conversation gone, got %d messages", len(msgs))
	}

	summaries, err := store.Summaries()
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "conv-2" {
		t.Errorf("unrelated conversation affected: %+v", summaries)
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := kv.Set("a/1", []byte("one")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set("a/2", []byte("two")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set("b/1", []byte("three")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := kv.Get("a/1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(v) != "one" {
		t.Errorf("got %q", v)
	}

	// The returned slice is a copy; mutating it must not corrupt the store.
	v[0] = 'X'
	v2, _, _ := kv.Get("a/1")
	if string(v2) != "one" {
		t.Errorf("stored value mutated through returned slice: %q", v2)
	}

	keys, err := kv.Keys("a/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a/1" || keys[1] != "a/2" {
		t.Errorf("unexpected keys: %v", keys)
	}

	if err := kv.Delete("a/1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get("a/1"); ok {
		t.Error("key survived delete")
	}
	if err := kv.Delete("a/1"); err != nil {
		t.Errorf("deleting a missing key should not error: %v", err)
	}
}

func TestPreview(t *testing.T) {
	t.Run("collapses newlines", func(t *testing.T) {
		if got := preview("line one\nline two"); got != "line one line two" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("truncates long content", func(t *testing.T) {
		got := preview(strings.Repeat("x", 200))
		if len(got) != 80 {
			t.Errorf("expected 80 chars, got %d", len(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})

	t.Run("truncates multibyte content on a rune boundary", func(t *testing.T) {
		got := preview(strings.Repeat("株価", 100))
		if !utf8.ValidString(got) {
			t.Fatalf("truncation produced invalid UTF-8: %q", got)
		}
		if utf8.RuneCountInString(got) != 80 {
			t.Errorf("expected 80 runes, got %d", utf8.RuneCountInString(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})
}
