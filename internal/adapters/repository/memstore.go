package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/voiceprint/internal/domain/model"
	"github.com/okian/voiceprint/pkg/metrics"
)

type record struct {
	vp  model.VoicePrint
	seq uint64
}

// MemStore is a mutex-guarded, in-memory Store.
type MemStore struct {
	mu    sync.RWMutex
	byID  map[string]record
	audio map[string]Audio
	chats []ChatRecord
	seq   uint64
	now   func() time.Time
	newID func() string
}

// NewMemStore constructs an empty store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		byID:  make(map[string]record),
		audio: make(map[string]Audio),
		now:   time.Now,
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateStoredVoicePrints(0)
	return s
}

// List implements Store.List.
func (s *MemStore) List(_ context.Context, agentID string) ([]model.VoicePrint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]record, 0)
	for _, r := range s.byID {
		if r.vp.AgentID == agentID {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]model.VoicePrint, len(recs))
	for i, r := range recs {
		out[i] = r.vp
	}
	return out, nil
}

// Get implements Store.Get.
func (s *MemStore) Get(_ context.Context, id string) (model.VoicePrint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return model.VoicePrint{}, ErrNotFound
	}
	return r.vp, nil
}

// Create implements Store.Create.
func (s *MemStore) Create(_ context.Context, data model.CreateSpeakerData) (model.VoicePrint, error) {
	if err := data.Validate(); err != nil {
		return model.VoicePrint{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAudioLocked(data.AgentID, data.AudioID); err != nil {
		return model.VoicePrint{}, err
	}
	if s.nameTakenLocked(data.AgentID, data.SourceName, "") {
		return model.VoicePrint{}, ErrDuplicateName
	}

	s.seq++
	vp := model.VoicePrint{
		ID:         s.newID(),
		AgentID:    data.AgentID,
		AudioID:    data.AudioID,
		SourceName: strings.TrimSpace(data.SourceName),
		Introduce:  data.Introduce,
		CreateDate: s.now().Format(DateLayout),
	}
	s.byID[vp.ID] = record{vp: vp, seq: s.seq}
	metrics.UpdateStoredVoicePrints(len(s.byID))
	return vp, nil
}

// Update implements Store.Update. Empty fields keep their stored value.
func (s *MemStore) Update(_ context.Context, vp model.VoicePrint) error {
	if err := vp.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[vp.ID]
	if !ok {
		return ErrNotFound
	}
	if vp.AgentID != "" && vp.AgentID != r.vp.AgentID {
		return ErrForbidden
	}
	if vp.AudioID != "" && vp.AudioID != r.vp.AudioID {
		if err := s.checkAudioLocked(r.vp.AgentID, vp.AudioID); err != nil {
			return err
		}
		r.vp.AudioID = vp.AudioID
	}
	if name := strings.TrimSpace(vp.SourceName); name != "" && name != r.vp.SourceName {
		if s.nameTakenLocked(r.vp.AgentID, name, r.vp.ID) {
			return ErrDuplicateName
		}
		r.vp.SourceName = name
	}
	r.vp.Introduce = vp.Introduce
	s.byID[vp.ID] = r
	return nil
}

// Delete implements Store.Delete.
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	metrics.UpdateStoredVoicePrints(len(s.byID))
	return nil
}

// SaveAudio implements Store.SaveAudio.
func (s *MemStore) SaveAudio(_ context.Context, agentID, contentType string, size int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := Audio{ID: s.newID(), AgentID: agentID, ContentType: contentType, Size: size}
	s.audio[a.ID] = a
	return a.ID, nil
}

// Audio returns an uploaded sample by id.
func (s *MemStore) Audio(_ context.Context, id string) (Audio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.audio[id]
	if !ok {
		return Audio{}, ErrAudioNotFound
	}
	return a, nil
}

// ChatHistory implements Store.ChatHistory.
func (s *MemStore) ChatHistory(_ context.Context, agentID string) ([]model.ChatHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChatHistory, 0)
	for _, c := range s.chats {
		if c.FromUser && c.AgentID == agentID {
			out = append(out, c.ChatHistory)
		}
	}
	return out, nil
}

// AppendChat stores a chat line.
func (s *MemStore) AppendChat(_ context.Context, c ChatRecord) {
	s.mu.Lock()
	s.chats = append(s.chats, c)
	s.mu.Unlock()
}

// Count implements Store.Count.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemStore) checkAudioLocked(agentID, audioID string) error {
	a, ok := s.audio[audioID]
	if !ok || a.AgentID != agentID {
		return ErrAudioNotFound
	}
	return nil
}

func (s *MemStore) nameTakenLocked(agentID, name, exceptID string) bool {
	name = strings.TrimSpace(name)
	for id, r := range s.byID {
		if id != exceptID && r.vp.AgentID == agentID && strings.EqualFold(r.vp.SourceName, name) {
			return true
		}
	}
	return false
}

var _ Store = (*MemStore)(nil)
