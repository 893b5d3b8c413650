package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Default preference values
const (
	DefaultServerURL = "http://localhost:8000"
	DefaultModelID   = "gpt-4o"
	DefaultLocale    = "en"

	// Conversations older than this are not offered for resume on startup.
	MaxConversationAge = 7 * 24 * time.Hour
)

// LastConversationInfo contains information about the most recent conversation
type LastConversationInfo struct {
	ConversationID string    `json:"conversationId"`
	Title          string    `json:"title"`
	LastActive     time.Time `json:"lastActive"`
	MessageCount   int       `json:"messageCount"`
	LastMessage    string    `json:"lastMessage"` // Truncated preview
}

// Preferences stores user preferences for the TUI
type Preferences struct {
	ServerURL        string                `json:"serverUrl,omitempty"`
	ModelID          string                `json:"modelId,omitempty"`
	Locale           string                `json:"locale,omitempty"`
	LastConversation *LastConversationInfo `json:"lastConversation,omitempty"`
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "stocktool"), nil
}

// getPreferencesPath returns the path to the preferences file
func getPreferencesPath() (string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "preferences.json"), nil
}

// DataDir returns the directory for the local conversation database.
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "share", "stocktool"), nil
}

// LoadPreferences loads preferences from disk
func LoadPreferences() (*Preferences, error) {
	prefPath, err := getPreferencesPath()
	if err != nil {
		return nil, err
	}

	// If file doesn't exist, return defaults
	if _, err := os.Stat(prefPath); os.IsNotExist(err) {
		return defaultPreferences(), nil
	}

	data, err := os.ReadFile(prefPath)
	if err != nil {
		return nil, err
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, err
	}

	// Fill gaps left by older preference files
	if prefs.ServerURL == "" {
		prefs.ServerURL = DefaultServerURL
	}
	if prefs.ModelID == "" {
		prefs.ModelID = DefaultModelID
	}
	if prefs.Locale == "" {
		prefs.Locale = DefaultLocale
	}

	return &prefs, nil
}

func defaultPreferences() *Preferences {
	return &Preferences{
		ServerURL: DefaultServerURL,
		ModelID:   DefaultModelID,
		Locale:    DefaultLocale,
	}
}

// SavePreferences saves preferences to disk
func SavePreferences(prefs *Preferences) error {
	configDir, err := getConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	prefPath, err := getPreferencesPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(prefPath, data, 0644)
}

// SaveLastConversation records the most recent conversation for resume
func SaveLastConversation(conversationID, title string, messageCount int, lastMessage string) error {
	prefs, err := LoadPreferences()
	if err != nil {
		prefs = defaultPreferences()
	}

	// Truncate last message to 200 characters for preview, by rune so
	// multibyte text is not cut mid-character
	const maxMessageLen = 200
	if runes := []rune(lastMessage); len(runes) > maxMessageLen {
		lastMessage = string(runes[:maxMessageLen]) + "..."
	}

	prefs.LastConversation = &LastConversationInfo{
		ConversationID: conversationID,
		Title:          title,
		LastActive:     time.Now(),
		MessageCount:   messageCount,
		LastMessage:    lastMessage,
	}

	return SavePreferences(prefs)
}

// GetLastConversation retrieves the last conversation, or nil if too old or missing
func GetLastConversation() (*LastConversationInfo, error) {
	prefs, err := LoadPreferences()
	if err != nil {
		return nil, err
	}

	if prefs.LastConversation == nil {
		return nil, nil
	}

	if time.Since(prefs.LastConversation.LastActive) > MaxConversationAge {
		return nil, nil
	}

	return prefs.LastConversation, nil
}

// ClearLastConversation clears the saved conversation info
func ClearLastConversation() error {
	prefs, err := LoadPreferences()
	if err != nil {
		return err
	}
	prefs.LastConversation = nil
	return SavePreferences(prefs)
}
