// Package repository defines the voiceprint store interface and an in-memory
// implementation backing the stub server.
package repository

import (
	"context"

	"github.com/okian/voiceprint/internal/domain/model"
)

// DateLayout is the server's date format.
const DateLayout = "2006-01-02 15:04:05"

// Audio is an uploaded enrollment sample.
type Audio struct {
	ID          string
	AgentID     string
	ContentType string
	Size        int64
}

// ChatRecord is a stored chat line; only user-side lines are exposed.
type ChatRecord struct {
	model.ChatHistory
	FromUser bool
}

// Store provides read/write access to voiceprint registrations.
type Store interface {
	// List returns the agent's voiceprints ordered by creation, oldest first.
	List(ctx context.Context, agentID string) ([]model.VoicePrint, error)

	// Get returns a voiceprint by id or ErrNotFound.
	Get(ctx context.Context, id string) (model.VoicePrint, error)

	// Create registers a speaker. The audio must have been uploaded for the same
	// agent and the name must be unused within the agent.
	Create(ctx context.Context, data model.CreateSpeakerData) (model.VoicePrint, error)

	// Update replaces the mutable fields of an existing voiceprint.
	Update(ctx context.Context, vp model.VoicePrint) error

	// Delete removes a voiceprint. Returns ErrNotFound if it is unknown.
	Delete(ctx context.Context, id string) error

	// SaveAudio records an uploaded sample and returns its id.
	SaveAudio(ctx context.Context, agentID, contentType string, size int64) (string, error)

	// ChatHistory returns the agent's user-side chat lines, oldest first.
	ChatHistory(ctx context.Context, agentID string) ([]model.ChatHistory, error)

	// Count returns the number of stored voiceprints.
	Count(ctx context.Context) int
}
