package ctmp

import "errors"

var (
	ErrInvalidMagic     = errors.New("ctmp: invalid magic")
	ErrInvalidHeaderLen = errors.New("ctmp: invalid header length")
	ErrPayloadTooLarge  = errors.New("ctmp: payload too large")
	ErrStreamDesynced   = errors.New("ctmp: stream desynced")
)
