package resolver

import (
	"errors"

	"github.com/nslookup-labs/resolverd/internal/wire"
)

// The resolver classifies every failure into one of five sentinel kinds,
// each mapping to a DNS RCODE the dispatcher echoes back to the client.
var (
	ErrFormatError    = errors.New("resolver: format error")
	ErrServerFailure  = errors.New("resolver: server failure")
	ErrNameError      = errors.New("resolver: name error")
	ErrNotImplemented = errors.New("resolver: not implemented")
	ErrRefused        = errors.New("resolver: refused")
)

// RCode maps a resolver error to the RCODE a response should carry. A nil
// error (success) maps to RcodeNoError.
func RCode(err error) uint8 {
	switch {
	case err == nil:
		return wire.RcodeNoError
	case errors.Is(err, ErrFormatError):
		return wire.RcodeFormErr
	case errors.Is(err, ErrNameError):
		return wire.RcodeNXDomain
	case errors.Is(err, ErrNotImplemented):
		return wire.RcodeNotImp
	case errors.Is(err, ErrRefused):
		return wire.RcodeRefused
	default:
		return wire.RcodeServFail
	}
}
