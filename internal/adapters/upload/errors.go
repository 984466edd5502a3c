package upload

import "fmt"

// Failure is a transport-level upload failure: the file could not be sent or no
// HTTP response came back. ErrMsg is the human-readable reason.
type Failure struct {
	ErrMsg string
	Err    error
}

func (f *Failure) Error() string {
	if f.ErrMsg != "" {
		return f.ErrMsg
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return "upload failed"
}

func (f *Failure) Unwrap() error { return f.Err }

func failf(err error, format string, args ...any) *Failure {
	return &Failure{ErrMsg: fmt.Sprintf(format, args...), Err: err}
}
