package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxAssistantName = 100

// Assistant is a reusable persona: a named role with a base prompt.
type Assistant struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	RoleDescription string    `json:"role_description"`
	BasePrompt      string    `json:"base_prompt"`
	CreatedAt       time.Time `json:"created_at"`
}

// UnmarshalJSON accepts numeric or string ids and naive timestamps.
func (a *Assistant) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              json.RawMessage `json:"id"`
		UserID          json.RawMessage `json:"user_id"`
		Name            string          `json:"name"`
		RoleDescription string          `json:"role_description"`
		BasePrompt      string          `json:"base_prompt"`
		CreatedAt       string          `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return fmt.Errorf("decoding assistant id: %w", err)
	}
	userID, err := decodeID(raw.UserID)
	if err != nil {
		return fmt.Errorf("decoding assistant user_id: %w", err)
	}

	*a = Assistant{
		ID:              id,
		UserID:          userID,
		Name:            raw.Name,
		RoleDescription: raw.RoleDescription,
		BasePrompt:      raw.BasePrompt,
		CreatedAt:       parseCreatedAt(raw.CreatedAt),
	}
	return nil
}

// NewAssistant is the create payload for an assistant.
type NewAssistant struct {
	Name            string      `json:"name"`
	RoleDescription string      `json:"role_description"`
	BasePrompt      string      `json:"base_prompt"`
	UserID          json.Number `json:"user_id"`
}

// Validate mirrors the backend's create schema
func (n NewAssistant) Validate() error {
	name := strings.TrimSpace(n.Name)
	switch {
	case name == "":
		return errors.New("name is required")
	case utf8.RuneCountInString(name) > maxAssistantName:
		return fmt.Errorf("name must be at most %d characters", maxAssistantName)
	case strings.TrimSpace(n.RoleDescription) == "":
		return errors.New("role description is required")
	case strings.TrimSpace(n.BasePrompt) == "":
		return errors.New("base prompt is required")
	}
	if _, err := n.UserID.Int64(); err != nil {
		return fmt.Errorf("user id %q is not a number", n.UserID)
	}
	return nil
}
