// Package model contains the data-transfer shapes exchanged with the voiceprint API.
package model

import (
	"errors"
	"strings"
)

// Sentinel kinds for payload validation.
var (
	ErrMissingID         = errors.New("missing id")
	ErrMissingAgentID    = errors.New("missing agentId")
	ErrMissingAudioID    = errors.New("missing audioId")
	ErrMissingSourceName = errors.New("missing sourceName")
)

// VoicePrint is one registered speaker of an agent. Dates are kept as the
// server sends them.
type VoicePrint struct {
	ID         string `json:"id"`
	AgentID    string `json:"agentId,omitempty"`
	AudioID    string `json:"audioId"`
	SourceName string `json:"sourceName"`
	Introduce  string `json:"introduce"`
	CreateDate string `json:"createDate,omitempty"`
}

// Validate checks the fields an update is keyed by.
func (v VoicePrint) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return ErrMissingID
	}
	return nil
}

// ChatHistory is one past user utterance that can serve as an enrollment sample.
type ChatHistory struct {
	CreatedAt string `json:"createdAt"`
	AgentID   string `json:"agentId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ChatType  int    `json:"chatType,omitempty"`
	Content   string `json:"content"`
	AudioID   string `json:"audioId"`
}

// CreateSpeakerData registers a new speaker. The server assigns the id.
type CreateSpeakerData struct {
	AgentID    string `json:"agentId"`
	AudioID    string `json:"audioId"`
	SourceName string `json:"sourceName"`
	Introduce  string `json:"introduce"`
}

// Validate mirrors the server's required-field checks.
func (c CreateSpeakerData) Validate() error {
	switch {
	case strings.TrimSpace(c.AgentID) == "":
		return ErrMissingAgentID
	case strings.TrimSpace(c.AudioID) == "":
		return ErrMissingAudioID
	case strings.TrimSpace(c.SourceName) == "":
		return ErrMissingSourceName
	}
	return nil
}
