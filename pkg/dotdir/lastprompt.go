package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// LastPrompt is the most recent prompt produced by "formu prompt".
type LastPrompt struct {
	// Prompt is the generated image prompt.
	Prompt string `json:"prompt"`

	// Analysis is the image analysis text streamed before the prompt.
	Analysis string `json:"analysis,omitempty"`

	// Source is the image path or URL the prompt was generated from.
	Source string `json:"source"`

	// Style is the prompt style that was requested.
	Style string `json:"style,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LoadLastPrompt loads the last prompt from a target .formu/last_prompt.json.
// Returns nil, nil if no prompt has been saved yet.
func (m *Manager) LoadLastPrompt(overrideDir string) (*LastPrompt, error) {
	path, err := m.File(overrideDir, LastPromptFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last prompt: %w", err)
	}

	last := &LastPrompt{}
	if err := json.Unmarshal(data, last); err != nil {
		return nil, fmt.Errorf("parsing last prompt: %w", err)
	}

	return last, nil
}

// SaveLastPrompt persists the prompt to a target .formu/last_prompt.json.
func (m *Manager) SaveLastPrompt(last *LastPrompt, overrideDir string) error {
	if last == nil {
		return errors.New("cannot save nil prompt")
	}

	path, err := m.File(overrideDir, LastPromptFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last prompt: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing last prompt: %w", err)
	}

	return nil
}

// ClearLastPrompt removes the saved prompt. Returns nil if nothing was saved.
func (m *Manager) ClearLastPrompt(overrideDir string) error {
	path, err := m.File(overrideDir, LastPromptFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing last prompt: %w", err)
	}

	return nil
}
