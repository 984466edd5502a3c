package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/voiceprint/pkg/logger"
)

// Upload form fields.
const (
	fieldAgentID   = "agentId"
	fieldAudioFile = "audioFile"
)

// multipartOverhead leaves room for form fields and part headers beyond the file.
const multipartOverhead = 1 << 20

var (
	errAudioEmpty    = errors.New("audio file is empty")
	errNotAudio      = errors.New("file is not an audio file")
	errMissingAgent  = errors.New("missing agentId")
	errAudioTooLarge = errors.New("audio file exceeds size limit")
)

// HandleUploadAudio handles POST /agent/voice-print/upload-audio. It accepts a
// multipart form with agentId and audioFile and answers with the new audio id.
func (s *Server) HandleUploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, codeAudioTooLarge, errAudioTooLarge)
			return
		}
		s.fail(w, r, codeBadRequest, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	agentID := strings.TrimSpace(r.FormValue(fieldAgentID))
	if agentID == "" {
		s.fail(w, r, codeBadRequest, errMissingAgent)
		return
	}

	file, header, err := r.FormFile(fieldAudioFile)
	if err != nil {
		s.fail(w, r, codeAudioEmpty, errAudioEmpty)
		return
	}
	defer file.Close()

	if header.Size == 0 {
		s.fail(w, r, codeAudioEmpty, errAudioEmpty)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		s.fail(w, r, codeNotAudioFile, errNotAudio)
		return
	}
	if header.Size > s.maxUploadBytes {
		s.fail(w, r, codeAudioTooLarge, errAudioTooLarge)
		return
	}

	// The stub keeps only metadata; drain the part so the size is verified.
	n, err := io.Copy(io.Discard, file)
	if err != nil {
		s.fail(w, r, codeAudioUploadFailed, err)
		return
	}

	audioID, err := s.store.SaveAudio(r.Context(), agentID, contentType, n)
	if err != nil {
		s.fail(w, r, codeAudioUploadFailed, err)
		return
	}
	s.logger.Info(r.Context(), "voiceprint audio stored",
		logger.String("agent_id", agentID),
		logger.String("audio_id", audioID),
		logger.Int("bytes", int(n)),
	)
	ok(w, audioID)
}
