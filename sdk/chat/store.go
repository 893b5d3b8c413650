package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// KV is the pluggable key-value persistence the controller writes at session
// boundaries. The browser original used local storage; here any backend that
// can get/set/delete by key works (embedded database, file, memory).
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys returns all keys with the given prefix, sorted.
	Keys(prefix string) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// MemoryKV is an in-memory KV backend, used in tests and as a no-setup
// default.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns the value for key and whether it exists.
func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

// Set stores value under key.
func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

// Delete removes key.
func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns all keys with the given prefix, sorted.
func (m *MemoryKV) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryKV) Close() error { return nil }

// Store layers the conversation schema over a KV backend:
//
//	summary/<conversationID>        ConversationSummary
//	msg/<conversationID>/<seq>      FinalMessage
//
// Values are whole JSON documents, rewritten on update. The controller only
// writes at finalize/cancel boundaries, never mid-stream.
type Store struct {
	kv KV
}

// NewStore wraps a KV backend.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// NewMemoryStore creates a store over an in-memory backend.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryKV())
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

func summaryKey(conversationID string) string {
	return "summary/" + conversationID
}

func messagePrefix(conversationID string) string {
	return "msg/" + conversationID + "/"
}

// SaveMessage appends msg to its conversation and refreshes the summary.
func (s *Store) SaveMessage(msg FinalMessage) error {
	if msg.ConversationID == "" {
		return fmt.Errorf("message has no conversation id")
	}

	keys, err := s.kv.Keys(messagePrefix(msg.ConversationID))
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	seq := len(keys)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := fmt.Sprintf("%s%06d", messagePrefix(msg.ConversationID), seq)
	if err := s.kv.Set(key, data); err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	return s.refreshSummary(msg, seq+1)
}

// refreshSummary rewrites the conversation summary after a message append.
func (s *Store) refreshSummary(msg FinalMessage, count int) error {
	summary := ConversationSummary{
		ID:           msg.ConversationID,
		Preview:      preview(msg.Content),
		MessageCount: count,
		UpdatedAt:    msg.CreatedAt,
	}

	if data, ok, err := s.kv.Get(summaryKey(msg.ConversationID)); err != nil {
		return fmt.Errorf("load summary: %w", err)
	} else if ok {
		var existing ConversationSummary
		if err := json.Unmarshal(data, &existing); err == nil {
			summary.Title = existing.Title
		}
	}
	if summary.Title == "" {
		summary.Title = preview(msg.Content)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.kv.Set(summaryKey(msg.ConversationID), data); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

// Messages returns a conversation's messages in append order.
func (s *Store) Messages(conversationID string) ([]FinalMessage, error) {
	keys, err := s.kv.Keys(messagePrefix(conversationID))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]FinalMessage, 0, len(keys))
	for _, key := range keys {
		data, ok, err := s.kv.Get(key)
		if err != nil {
			return nil, fmt.Errorf("load message %s: %w", key, err)
		}
		if !ok {
			continue
		}
		var msg FinalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", key, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Summaries returns all conversation summaries, most recently updated first.
func (s *Store) Summaries() ([]ConversationSummary, error) {
	keys, err := s.kv.Keys("summary/")
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(keys))
	for _, key := range keys {
		data, ok, err := s.kv.Get(key)
		if err != nil {
			return nil, fmt.Errorf("load summary %s: %w", key, err)
		}
		if !ok {
			continue
		}
		var summary ConversationSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			return nil, fmt.Errorf("decode summary %s: %w", key, err)
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// DeleteConversation removes a conversation's summary and messages.
func (s *Store) DeleteConversation(conversationID string) error {
	keys, err := s.kv.Keys(messagePrefix(conversationID))
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	for _, key := range keys {
		if err := s.kv.Delete(key); err != nil {
			return fmt.Errorf("delete message %s: %w", key, err)
		}
	}
	if err := s.kv.Delete(summaryKey(conversationID)); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

// preview returns a single-line truncated preview of content. Truncation is
// by rune so multibyte answers stay valid UTF-8.
func preview(content string) string {
	const max = 80
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.TrimSpace(content)
	if runes := []rune(content); len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return content
}
