package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadVersion      = "E_BAD_VERSION"

	// Environment and world routing.
	ErrUnknownEnv       = "E_UNKNOWN_ENV"
	ErrWorldNotFound    = "E_WORLD_NOT_FOUND"
	ErrWorldRejected    = "E_WORLD_REJECTED"
	ErrGenerationFailed = "E_GENERATION_FAILED"

	// Episode layer.
	ErrNotReady   = "E_NOT_READY"
	ErrTerminal   = "E_TERMINAL"
	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrBadVersion:       {},
	ErrUnknownEnv:       {},
	ErrWorldNotFound:    {},
	ErrWorldRejected:    {},
	ErrGenerationFailed: {},
	ErrNotReady:         {},
	ErrTerminal:         {},
	ErrBadRequest:       {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
