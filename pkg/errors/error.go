package errors

import (
	stderrors "errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindFrameTooLarge
	KindCorruptedFrame
	KindTruncated
	KindBadMagic
	KindUnsupportedVersion
	KindPayloadTooLarge
	KindUnknownAlgorithm
	KindCodec
	KindInvalidConfig
	KindClosed
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindFrameTooLarge:      "frame too large",
	KindCorruptedFrame:     "corrupted frame",
	KindTruncated:          "truncated frame",
	KindBadMagic:           "bad magic",
	KindUnsupportedVersion: "unsupported version",
	KindPayloadTooLarge:    "payload too large",
	KindUnknownAlgorithm:   "unknown serialization algorithm",
	KindCodec:              "codec error",
	KindInvalidConfig:      "invalid config",
	KindClosed:             "channel closed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Fatal reports whether an error of this kind leaves the connection without a
// safe resynchronization point.
func (k Kind) Fatal() bool {
	switch k {
	case KindUnknownAlgorithm, KindCodec:
		return false
	default:
		return true
	}
}

// Sentinels for errors.Is comparisons. Any Error of the same Kind matches.
var (
	ErrFrameTooLarge      = Sentinel(KindFrameTooLarge)
	ErrCorruptedFrame     = Sentinel(KindCorruptedFrame)
	ErrTruncated          = Sentinel(KindTruncated)
	ErrBadMagic           = Sentinel(KindBadMagic)
	ErrUnsupportedVersion = Sentinel(KindUnsupportedVersion)
	ErrPayloadTooLarge    = Sentinel(KindPayloadTooLarge)
	ErrUnknownAlgorithm   = Sentinel(KindUnknownAlgorithm)
	ErrCodec              = Sentinel(KindCodec)
	ErrInvalidConfig      = Sentinel(KindInvalidConfig)
	ErrClosed             = Sentinel(KindClosed)
)

type Error interface {
	error
	Fatal() bool
	Temporary() bool
	Code() int
	Kind() Kind
	Reason() string
	Caller() string
	Details() Details
	Log(logger log.FieldLogger)
}

// Details locates an error in the byte stream. Fields that do not apply are -1.
type Details struct {
	Offset    int64
	Declared  int64
	Available int64
	Limit     int64
}

func noDetails() Details {
	return Details{Offset: -1, Declared: -1, Available: -1, Limit: -1}
}

// Timeout wraps an expired read deadline. It is temporary: the connection
// may be read again once a new deadline is set.
func Timeout(caller string, cause error, format string, args ...interface{}) Error {
	err := Wrap(KindClosed, caller, cause, format, args...).(*genericErr)
	err.fatal = false
	err.temporary = true
	return err
}

// New builds an Error whose fatality follows from its kind.
func New(kind Kind, caller string, format string, args ...interface{}) Error {
	return &genericErr{
		kind:    kind,
		fatal:   kind.Fatal(),
		code:    int(kind),
		reason:  fmt.Sprintf(format, args...),
		caller:  caller,
		details: noDetails(),
	}
}

// Wrap is New with an underlying cause reachable through errors.Unwrap.
func Wrap(kind Kind, caller string, cause error, format string, args ...interface{}) Error {
	err := New(kind, caller, format, args...).(*genericErr)
	err.cause = cause
	return err
}

// WithDetails returns a copy of err carrying d. Non-package errors are returned unchanged.
func WithDetails(err Error, d Details) Error {
	ge, ok := err.(*genericErr)
	if !ok {
		return err
	}
	cp := *ge
	cp.details = d
	return &cp
}

func Sentinel(kind Kind) Error {
	return &genericErr{kind: kind, fatal: kind.Fatal(), code: int(kind), reason: kind.String(), details: noDetails()}
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// KindOf returns the Kind carried by err or any error it wraps.
func KindOf(err error) Kind {
	var e Error
	if stderrors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

func IsTemporary(err error) bool {
	var e Error
	return stderrors.As(err, &e) && e.Temporary()
}

// IsFatal reports whether err must tear the connection down. Errors from
// outside this package are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e Error
	if stderrors.As(err, &e) {
		return e.Fatal()
	}
	return true
}

type genericErr struct {
	kind      Kind
	fatal     bool
	temporary bool
	code      int
	reason    string
	caller    string
	details   Details
	cause     error
}

func (err *genericErr) Error() string {
	msg := err.reason
	if err.kind != KindUnknown && err.reason != err.kind.String() {
		msg = fmt.Sprintf("%s: %s", err.kind, err.reason)
	}
	if err.caller != "" {
		msg = fmt.Sprintf("%s: %s", err.caller, msg)
	}
	if err.cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.cause)
	}
	return msg
}

func (err *genericErr) Unwrap() error {
	return err.cause
}

func (err *genericErr) Is(target error) bool {
	t, ok := target.(*genericErr)
	if !ok {
		return false
	}
	if t.kind == KindUnknown {
		return err == t
	}
	return err.kind == t.kind
}

// Log reports err on logger at error level when fatal, warning otherwise.
func (err *genericErr) Log(logger log.FieldLogger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	entry := logger.WithFields(log.Fields{"caller": err.caller, "kind": err.kind.String()})
	if err.details.Offset >= 0 {
		entry = entry.WithField("offset", err.details.Offset)
	}
	if err.fatal {
		entry.Error(err.Error())
		return
	}
	entry.Warn(err.Error())
}

func (err *genericErr) Fatal() bool {
	return err.fatal
}

func (err *genericErr) Temporary() bool {
	return err.temporary
}

func (err *genericErr) Code() int {
	return err.code
}

func (err *genericErr) Kind() Kind {
	return err.kind
}

func (err *genericErr) Caller() string {
	return err.caller
}

func (err *genericErr) Reason() string {
	return err.reason
}

func (err *genericErr) Details() Details {
	return err.details
}
