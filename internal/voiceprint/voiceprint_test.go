package voiceprint_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/okian/voiceprint/internal/adapters/credentials"
	"github.com/okian/voiceprint/internal/adapters/transport"
	"github.com/okian/voiceprint/internal/adapters/upload"
	"github.com/okian/voiceprint/internal/domain/apierr"
	"github.com/okian/voiceprint/internal/domain/model"
	"github.com/okian/voiceprint/internal/voiceprint"
	. "github.com/smartystreets/goconvey/convey"
)

type call struct {
	Method string
	Path   string
	Body   string
}

type backend struct {
	mu    sync.Mutex
	body  string
	calls []call
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.calls = append(b.calls, call{Method: r.Method, Path: r.URL.EscapedPath(), Body: string(raw)})
	body := b.body
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (b *backend) recorded() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]call(nil), b.calls...)
}

func newAPI(baseURL string, opts ...voiceprint.Option) *voiceprint.API {
	client := transport.New(
		transport.WithBaseURL(baseURL),
		transport.WithCredentials(credentials.Static("T")),
		transport.WithNotifier(transport.NotifierFunc(func(context.Context, string) {})),
	)
	return voiceprint.New(append([]voiceprint.Option{voiceprint.WithTransport(client)}, opts...)...)
}

func TestQueries(t *testing.T) {
	Convey("Given a backend returning voiceprints", t, func() {
		b := &backend{body: `{"code":0,"msg":"success","data":[` +
			`{"id":"v1","agentId":"a 1","audioId":"x1","sourceName":"Alice","introduce":"host","createDate":"2025-01-01 10:00:00"},` +
			`{"id":"v2","agentId":"a 1","audioId":"x2","sourceName":"Bob","introduce":"","createDate":"2025-01-02 10:00:00"}]}`}
		srv := httptest.NewServer(b)
		defer srv.Close()
		api := newAPI(srv.URL)
		ctx := context.Background()

		Convey("When listing voiceprints", func() {
			list, err := api.ListVoicePrints(ctx, "a 1")

			Convey("Then one GET hits the list path and the array comes back in order", func() {
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 2)
				So(list[0].ID, ShouldEqual, "v1")
				So(list[0].SourceName, ShouldEqual, "Alice")
				So(list[1].ID, ShouldEqual, "v2")
				So(list[1].CreateDate, ShouldEqual, "2025-01-02 10:00:00")
				calls := b.recorded()
				So(calls, ShouldHaveLength, 1)
				So(calls[0].Method, ShouldEqual, http.MethodGet)
				So(calls[0].Path, ShouldEqual, "/agent/voice-print/list/a%201")
			})
		})

		Convey("When listing twice", func() {
			_, _ = api.ListVoicePrints(ctx, "a1")
			_, _ = api.ListVoicePrints(ctx, "a1")

			Convey("Then nothing is served from cache", func() {
				So(b.recorded(), ShouldHaveLength, 2)
			})
		})

		Convey("When listing chat history", func() {
			b.body = `{"code":0,"data":[{"createdAt":"2025-01-01 09:00:00","agentId":"a1","sessionId":"s1","chatType":1,"content":"hello","audioId":"au1"}]}`
			history, err := api.ListChatHistory(ctx, "a1")

			Convey("Then the user chat path is requested", func() {
				So(err, ShouldBeNil)
				So(history, ShouldResemble, []model.ChatHistory{{
					CreatedAt: "2025-01-01 09:00:00",
					AgentID:   "a1",
					SessionID: "s1",
					ChatType:  1,
					Content:   "hello",
					AudioID:   "au1",
				}})
				So(b.recorded()[0].Path, ShouldEqual, "/agent/a1/chat-history/user")
			})
		})

		Convey("When the agent id is empty", func() {
			_, err := api.ListVoicePrints(ctx, " ")

			Convey("Then no request is made", func() {
				So(errors.Is(err, apierr.ErrInvalidArgument), ShouldBeTrue)
				So(b.recorded(), ShouldBeEmpty)
			})
		})
	})
}

func TestMutations(t *testing.T) {
	Convey("Given a backend accepting mutations", t, func() {
		b := &backend{body: `{"code":0,"msg":"success","data":null}`}
		srv := httptest.NewServer(b)
		defer srv.Close()
		api := newAPI(srv.URL)
		ctx := context.Background()

		Convey("When creating a voiceprint", func() {
			err := api.CreateVoicePrint(ctx, model.CreateSpeakerData{AgentID: "a1", AudioID: "au1", SourceName: "Alice", Introduce: "host"})

			Convey("Then one POST carries the speaker data", func() {
				So(err, ShouldBeNil)
				calls := b.recorded()
				So(calls, ShouldHaveLength, 1)
				So(calls[0].Method, ShouldEqual, http.MethodPost)
				So(calls[0].Path, ShouldEqual, "/agent/voice-print")
				So(calls[0].Body, ShouldEqual, `{"agentId":"a1","audioId":"au1","sourceName":"Alice","introduce":"host"}`)
			})
		})

		Convey("When deleting a voiceprint", func() {
			err := api.DeleteVoicePrint(ctx, "v1")

			Convey("Then one DELETE hits the id path", func() {
				So(err, ShouldBeNil)
				calls := b.recorded()
				So(calls, ShouldHaveLength, 1)
				So(calls[0].Method, ShouldEqual, http.MethodDelete)
				So(calls[0].Path, ShouldEqual, "/agent/voice-print/v1")
			})
		})

		Convey("When updating a voiceprint", func() {
			err := api.UpdateVoicePrint(ctx, model.VoicePrint{ID: "v1", AgentID: "a1", AudioID: "au1", SourceName: "Alice"})

			Convey("Then one PUT carries the whole object", func() {
				So(err, ShouldBeNil)
				calls := b.recorded()
				So(calls, ShouldHaveLength, 1)
				So(calls[0].Method, ShouldEqual, http.MethodPut)
				So(calls[0].Path, ShouldEqual, "/agent/voice-print")
				So(calls[0].Body, ShouldContainSubstring, `"id":"v1"`)
			})
		})

		Convey("When the server rejects the create", func() {
			b.body = `{"code":10040,"msg":"voiceprint already exists"}`
			err := api.CreateVoicePrint(ctx, model.CreateSpeakerData{AgentID: "a1", AudioID: "au1", SourceName: "Alice"})

			Convey("Then the server message is surfaced", func() {
				So(errors.Is(err, apierr.ErrServer), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "voiceprint already exists")
			})
		})

		Convey("When required fields are missing", func() {
			errCreate := api.CreateVoicePrint(ctx, model.CreateSpeakerData{AgentID: "a1"})
			errUpdate := api.UpdateVoicePrint(ctx, model.VoicePrint{SourceName: "x"})
			errDelete := api.DeleteVoicePrint(ctx, "")

			Convey("Then each fails locally", func() {
				So(errors.Is(errCreate, apierr.ErrInvalidArgument), ShouldBeTrue)
				So(errors.Is(errCreate, model.ErrMissingAudioID), ShouldBeTrue)
				So(errors.Is(errUpdate, model.ErrMissingID), ShouldBeTrue)
				So(errors.Is(errDelete, apierr.ErrInvalidArgument), ShouldBeTrue)
				So(b.recorded(), ShouldBeEmpty)
			})
		})
	})
}

func TestUploadVoicePrintAudio(t *testing.T) {
	Convey("Given a facade with a fake uploader", t, func() {
		var (
			calls int
			got   upload.Request
			resp  upload.Response
			fail  error
		)
		fake := upload.UploaderFunc(func(_ context.Context, req upload.Request) (upload.Response, error) {
			calls++
			got = req
			return resp, fail
		})
		newFacade := func(token string) *voiceprint.API {
			return voiceprint.New(
				voiceprint.WithUploader(fake),
				voiceprint.WithResolver(transport.StaticURL("http://api.test/xiaozhi")),
				voiceprint.WithCredentials(credentials.Static(token)),
			)
		}
		ctx := context.Background()

		Convey("When no token is stored", func() {
			_, err := newFacade("").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then it fails with an authentication error and never uploads", func() {
				So(errors.Is(err, apierr.ErrAuthentication), ShouldBeTrue)
				So(err.Error(), ShouldEqual, apierr.MsgNotLoggedIn)
				So(calls, ShouldEqual, 0)
			})
		})

		Convey("When the credential source fails", func() {
			api := voiceprint.New(
				voiceprint.WithUploader(fake),
				voiceprint.WithResolver(transport.StaticURL("http://api.test")),
				voiceprint.WithCredentials(credentials.ProviderFunc(func(context.Context) (string, error) {
					return "", errors.New("store unreadable")
				})),
			)
			_, err := api.UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then it is treated as not logged in", func() {
				So(errors.Is(err, apierr.ErrAuthentication), ShouldBeTrue)
				So(calls, ShouldEqual, 0)
			})
		})

		Convey("When the server accepts the file", func() {
			resp = upload.Response{StatusCode: http.StatusOK, Data: `{"code":0,"data":"audio123"}`}
			audioID, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then the audio id is returned and the request is well formed", func() {
				So(err, ShouldBeNil)
				So(audioID, ShouldEqual, "audio123")
				So(calls, ShouldEqual, 1)
				So(got.URL, ShouldEqual, "http://api.test/xiaozhi/agent/voice-print/upload-audio")
				So(got.FilePath, ShouldEqual, "/tmp/x.wav")
				So(got.Name, ShouldEqual, "audioFile")
				So(got.FormData, ShouldResemble, map[string]string{"agentId": "a1"})
				So(got.Header["Authorization"], ShouldEqual, "Bearer T")
			})
		})

		Convey("When the server rejects the file", func() {
			resp = upload.Response{StatusCode: http.StatusOK, Data: `{"code":1,"msg":"bad file"}`}
			_, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then the server message is surfaced", func() {
				So(errors.Is(err, apierr.ErrServer), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "bad file")
				var ae *apierr.Error
				So(errors.As(err, &ae), ShouldBeTrue)
				So(ae.Code, ShouldEqual, 1)
			})
		})

		Convey("When the server rejects the file without a message", func() {
			resp = upload.Response{StatusCode: http.StatusOK, Data: `{"code":500}`}
			_, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then the generic upload message is used", func() {
				So(err.Error(), ShouldEqual, apierr.MsgUploadFailed)
			})
		})

		Convey("When the response is not JSON", func() {
			resp = upload.Response{StatusCode: http.StatusBadGateway, Data: `<html>bad file</html>`}
			_, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then a parse failure is reported", func() {
				So(errors.Is(err, apierr.ErrParse), ShouldBeTrue)
				So(err.Error(), ShouldEqual, apierr.MsgParseFailed)
			})
		})

		Convey("When the envelope has no usable code", func() {
			cases := []struct {
				body string
				msg  string
			}{
				{`{}`, apierr.MsgUploadFailed},
				{`{"data":"x"}`, apierr.MsgUploadFailed},
				{`{"code":null,"msg":"oops"}`, "oops"},
			}
			for _, tc := range cases {
				resp = upload.Response{StatusCode: http.StatusOK, Data: tc.body}
				audioID, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

				So(audioID, ShouldBeEmpty)
				So(errors.Is(err, apierr.ErrServer), ShouldBeTrue)
				So(err.Error(), ShouldEqual, tc.msg)
			}
		})

		Convey("When the body is JSON null or the code is a string", func() {
			for _, body := range []string{`null`, `{"code":"0","data":"x"}`} {
				resp = upload.Response{StatusCode: http.StatusOK, Data: body}
				audioID, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

				So(audioID, ShouldBeEmpty)
				So(errors.Is(err, apierr.ErrParse), ShouldBeTrue)
				So(err.Error(), ShouldEqual, apierr.MsgParseFailed)
			}
		})

		Convey("When the transport fails with a message", func() {
			fail = &upload.Failure{ErrMsg: "timeout"}
			_, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then that message is surfaced", func() {
				So(errors.Is(err, apierr.ErrTransport), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "timeout")
			})
		})

		Convey("When the transport fails without a message", func() {
			fail = &upload.Failure{}
			_, err := newFacade("T").UploadVoicePrintAudio(ctx, "a1", "/tmp/x.wav")

			Convey("Then the generic upload message is used", func() {
				So(errors.Is(err, apierr.ErrTransport), ShouldBeTrue)
				So(err.Error(), ShouldEqual, apierr.MsgUploadFailed)
			})
		})
	})
}

func TestUploadSharesTransportCredentials(t *testing.T) {
	Convey("Given a facade built only from a transport", t, func() {
		var auth string
		fake := upload.UploaderFunc(func(_ context.Context, req upload.Request) (upload.Response, error) {
			auth = req.Header["Authorization"]
			return upload.Response{StatusCode: http.StatusOK, Data: `{"code":0,"data":"x"}`}, nil
		})
		api := newAPI("http://api.test", voiceprint.WithUploader(fake))

		_, err := api.UploadVoicePrintAudio(context.Background(), "a1", "/tmp/x.wav")

		Convey("Then the upload uses the transport's token", func() {
			So(err, ShouldBeNil)
			So(auth, ShouldEqual, "Bearer T")
		})
	})
}
