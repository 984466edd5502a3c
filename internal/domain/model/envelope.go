package model

import (
	"bytes"
	"encoding/json"
	"errors"
)

// CodeOK is the envelope success sentinel.
const CodeOK = 0

// ErrNoEnvelope reports a body that is JSON null instead of an object.
var ErrNoEnvelope = errors.New("response is not an envelope")

// Envelope is the {code,msg,data} wrapper every endpoint responds with.
// Code is nil when the server omitted it or sent null.
type Envelope[T any] struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data T      `json:"data"`
}

// OK reports whether the server accepted the request. Only an explicit zero
// code counts.
func (e Envelope[T]) OK() bool { return e.Code != nil && *e.Code == CodeOK }

// CodeValue returns the code, or -1 when it is missing.
func (e Envelope[T]) CodeValue() int {
	if e.Code == nil {
		return -1
	}
	return *e.Code
}

// RawEnvelope defers decoding of data until the code is known.
type RawEnvelope = Envelope[json.RawMessage]

// DecodeEnvelope unmarshals body into an envelope and rejects a bare null.
func DecodeEnvelope[T any](body []byte) (Envelope[T], error) {
	var env Envelope[T]
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return env, ErrNoEnvelope
	}
	err := json.Unmarshal(body, &env)
	return env, err
}
