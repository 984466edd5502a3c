package credentials

import "errors"

// Sentinel kinds for credential storage errors.
var (
	ErrLoadStore  = errors.New("load credential store failed")
	ErrWriteStore = errors.New("write credential store failed")
)
