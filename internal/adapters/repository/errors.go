package repository

import "errors"

// Sentinel kinds for voiceprint store errors.
var (
	ErrNotFound      = errors.New("voiceprint not found")
	ErrAudioNotFound = errors.New("audio not found")
	ErrDuplicateName = errors.New("speaker name already registered for agent")
	ErrForbidden     = errors.New("voiceprint belongs to another agent")
)
