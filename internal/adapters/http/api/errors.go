package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// Envelope codes returned in the code field. Zero is success.
const (
	codeBadRequest        = 400
	codeUnauthorized      = 401
	codeNotFound          = 404
	codeInternal          = 500
	codeCreateFailed      = 10040
	codeUpdateFailed      = 10041
	codeDeleteFailed      = 10042
	codeAudioEmpty        = 10050
	codeNotAudioFile      = 10051
	codeAudioTooLarge     = 10052
	codeAudioUploadFailed = 10053
)
