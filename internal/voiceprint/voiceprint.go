// Package voiceprint exposes the agent voiceprint endpoints: list, chat history,
// create, delete, update and audio upload. Each method is one HTTP request.
package voiceprint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/voiceprint/internal/adapters/credentials"
	"github.com/okian/voiceprint/internal/adapters/transport"
	"github.com/okian/voiceprint/internal/adapters/upload"
	"github.com/okian/voiceprint/internal/domain/apierr"
	"github.com/okian/voiceprint/internal/domain/model"
	"github.com/okian/voiceprint/pkg/logger"
	"github.com/okian/voiceprint/pkg/metrics"
)

// Operation names, used as log and metric labels.
const (
	OpListVoicePrints  = "list_voiceprints"
	OpListChatHistory  = "list_chat_history"
	OpCreateVoicePrint = "create_voiceprint"
	OpDeleteVoicePrint = "delete_voiceprint"
	OpUpdateVoicePrint = "update_voiceprint"
	OpUploadAudio      = "upload_audio"
)

// Endpoint paths relative to the base URL.
const (
	PathVoicePrint  = "/agent/voice-print"
	PathUploadAudio = "/agent/voice-print/upload-audio"
)

// Upload form fields.
const (
	FieldAudioFile = "audioFile"
	FieldAgentID   = "agentId"
)

var (
	queryMeta  = transport.Meta{IgnoreAuth: false, Toast: false}
	mutateMeta = transport.Meta{IgnoreAuth: false, Toast: true}
	noCache    = transport.CacheFor{Expire: 0}
)

// API is the voiceprint facade. It holds no mutable state and is safe for
// concurrent use.
type API struct {
	client      *transport.Client
	uploader    upload.Uploader
	resolver    transport.Resolver
	credentials credentials.Provider
	logger      logger.Logger
}

// New creates the facade. Without WithTransport/WithUploader it builds defaults
// around the credentials passed in; with a transport and no credentials the
// upload reuses the transport's token source.
func New(opts ...Option) *API {
	a := &API{logger: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = transport.New(transport.WithCredentials(a.credentials), transport.WithLogger(a.logger))
	}
	if a.uploader == nil {
		a.uploader = upload.NewHTTPUploader(upload.WithLogger(a.logger))
	}
	if a.resolver == nil {
		a.resolver = a.client
	}
	if a.credentials == nil {
		a.credentials = a.client.Credentials()
	}
	return a
}

// ListVoicePrints returns the voiceprints registered for an agent, in server order.
func (a *API) ListVoicePrints(ctx context.Context, agentID string) ([]model.VoicePrint, error) {
	if err := requireSegment(OpListVoicePrints, "agentId", agentID); err != nil {
		return nil, err
	}
	path := PathVoicePrint + "/list/" + url.PathEscape(agentID)
	return transport.Get[[]model.VoicePrint](ctx, a.client, OpListVoicePrints, path, queryMeta, noCache)
}

// ListChatHistory returns the agent's user-side chat records, used to pick an
// enrollment sample.
func (a *API) ListChatHistory(ctx context.Context, agentID string) ([]model.ChatHistory, error) {
	if err := requireSegment(OpListChatHistory, "agentId", agentID); err != nil {
		return nil, err
	}
	path := "/agent/" + url.PathEscape(agentID) + "/chat-history/user"
	return transport.Get[[]model.ChatHistory](ctx, a.client, OpListChatHistory, path, queryMeta, noCache)
}

// CreateVoicePrint registers a new speaker.
func (a *API) CreateVoicePrint(ctx context.Context, data model.CreateSpeakerData) error {
	if err := data.Validate(); err != nil {
		return apierr.Wrap(OpCreateVoicePrint, apierr.KindInvalid, err.Error(), err)
	}
	_, err := transport.Post[json.RawMessage](ctx, a.client, OpCreateVoicePrint, PathVoicePrint, data, mutateMeta)
	return err
}

// DeleteVoicePrint removes a registration by id.
func (a *API) DeleteVoicePrint(ctx context.Context, id string) error {
	if err := requireSegment(OpDeleteVoicePrint, "id", id); err != nil {
		return err
	}
	_, err := transport.Delete[json.RawMessage](ctx, a.client, OpDeleteVoicePrint, PathVoicePrint+"/"+url.PathEscape(id), mutateMeta)
	return err
}

// UpdateVoicePrint replaces a registration; the object's id selects it.
func (a *API) UpdateVoicePrint(ctx context.Context, data model.VoicePrint) error {
	if err := data.Validate(); err != nil {
		return apierr.Wrap(OpUpdateVoicePrint, apierr.KindInvalid, err.Error(), err)
	}
	_, err := transport.Put[json.RawMessage](ctx, a.client, OpUpdateVoicePrint, PathVoicePrint, data, mutateMeta)
	return err
}

// UploadVoicePrintAudio uploads a local audio file for enrollment and returns the
// server's reference to it (an audio id). It bypasses the typed transport and
// reports its own four failure kinds: no token, transport failure, server
// rejection and unparsable response.
func (a *API) UploadVoicePrintAudio(ctx context.Context, agentID, filePath string) (string, error) {
	start := time.Now()
	token, err := a.uploadToken(ctx)
	if err != nil {
		return "", a.uploadFailed(ctx, start, apierr.Wrap(OpUploadAudio, apierr.KindAuthentication, apierr.MsgNotLoggedIn, err))
	}
	if token == "" {
		return "", a.uploadFailed(ctx, start, apierr.New(OpUploadAudio, apierr.KindAuthentication, apierr.MsgNotLoggedIn))
	}

	resp, err := a.uploader.Upload(ctx, upload.Request{
		URL:      a.resolver.BaseURL() + PathUploadAudio,
		FilePath: filePath,
		Name:     FieldAudioFile,
		FormData: map[string]string{FieldAgentID: agentID},
		Header:   map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = apierr.MsgUploadFailed
		}
		return "", a.uploadFailed(ctx, start, apierr.Wrap(OpUploadAudio, apierr.KindTransport, msg, err))
	}

	result, err := model.DecodeEnvelope[json.RawMessage]([]byte(resp.Data))
	if err != nil {
		return "", a.uploadFailed(ctx, start, apierr.Wrap(OpUploadAudio, apierr.KindParse, apierr.MsgParseFailed, err))
	}
	if !result.OK() {
		msg := result.Msg
		if msg == "" {
			msg = apierr.MsgUploadFailed
		}
		return "", a.uploadFailed(ctx, start, &apierr.Error{Op: OpUploadAudio, Kind: apierr.KindServer, Message: msg, Code: result.CodeValue(), Status: resp.StatusCode})
	}

	var audioID string
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &audioID); err != nil {
			return "", a.uploadFailed(ctx, start, apierr.Wrap(OpUploadAudio, apierr.KindParse, apierr.MsgParseFailed, err))
		}
	}

	_ = metrics.RecordRequest(OpUploadAudio, http.MethodPost, metrics.OutcomeSuccess, elapsedMs(start))
	a.logger.Info(ctx, "voiceprint audio uploaded", logger.String("agent_id", agentID), logger.String("audio_id", audioID))
	return audioID, nil
}

func (a *API) uploadToken(ctx context.Context) (string, error) {
	if a.credentials == nil {
		return "", nil
	}
	token, err := a.credentials.Token(ctx)
	return strings.TrimSpace(token), err
}

func (a *API) uploadFailed(ctx context.Context, start time.Time, err *apierr.Error) error {
	_ = metrics.RecordRequest(OpUploadAudio, http.MethodPost, metrics.OutcomeError, elapsedMs(start))
	metrics.RecordError(OpUploadAudio, string(err.Kind))
	a.logger.Warn(ctx, "voiceprint audio upload failed", logger.String("kind", string(err.Kind)), logger.Error(err))
	return err
}

func requireSegment(op, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return apierr.Wrap(op, apierr.KindInvalid, fmt.Sprintf("missing %s", name), apierr.ErrInvalidArgument)
	}
	return nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
