package common

import "errors"

// Kind classifies an error for the transport layer. Every sentinel below
// belongs to exactly one kind; unknown errors are KindInternal.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooLarge
	KindTooManyRequests
)

var (
	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal     = errors.New("internal server error")
	ErrorUnauthorized = errors.New("unauthorized")

	// credential validation
	ErrUsernameTooShort   = errors.New("username is too short")
	ErrUsernameTooLong    = errors.New("username is too long")
	ErrInvalidUsername    = errors.New("username must not contain '@'")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrPasswordTooLong    = errors.New("password is too long")
	ErrPasswordsDontMatch = errors.New("passwords don't match")
	ErrEmailTooShort      = errors.New("email is too short")
	ErrEmailTooLong       = errors.New("email is too long")
	ErrInvalidEmail       = errors.New("incorrect email address")
	ErrEmailUnreachable   = errors.New("email domain does not exist")
	ErrBadRequest         = errors.New("bad request")

	// account errors
	ErrUsernameTaken       = errors.New("username is already taken")
	ErrEmailTaken          = errors.New("email is already taken")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrRegistrationClosed  = errors.New("registration is closed")
	ErrTooManySessions     = errors.New("too many active sessions")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrMalformedHash       = errors.New("malformed password hash")
	ErrInvalidRequestInput = errors.New("invalid request body")

	// token errors
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("expired token")
	ErrTokenRevoked = errors.New("revoked token")

	// storage errors
	ErrPathTraversal    = errors.New("access denied")
	ErrPermissionDenied = errors.New("permission denied")
	ErrReadOnly         = errors.New("read-only mode")
	ErrStorageRoot      = errors.New("cannot modify storage root")
	ErrAlreadyExists    = errors.New("already exists")
	ErrIsDirectory      = errors.New("is a directory")
	ErrNotDirectory     = errors.New("not a directory")
	ErrMissingFilename  = errors.New("missing filename")
	ErrMissingPath      = errors.New("missing path")
	ErrIntoItself       = errors.New("cannot move or copy a directory into itself")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

var kinds = map[error]Kind{
	ErrorNotFound:      KindNotFound,
	ErrAccountNotFound: KindNotFound,

	ErrorUnauthorized:     KindUnauthorized,
	ErrInvalidCredentials: KindUnauthorized,
	ErrTooManySessions:    KindUnauthorized,
	ErrNoToken:            KindUnauthorized,
	ErrInvalidToken:       KindUnauthorized,
	ErrTokenExpired:       KindUnauthorized,
	ErrTokenRevoked:       KindUnauthorized,

	ErrUsernameTooShort:    KindBadRequest,
	ErrUsernameTooLong:     KindBadRequest,
	ErrInvalidUsername:     KindBadRequest,
	ErrPasswordTooShort:    KindBadRequest,
	ErrPasswordTooLong:     KindBadRequest,
	ErrPasswordsDontMatch:  KindBadRequest,
	ErrEmailTooShort:       KindBadRequest,
	ErrEmailTooLong:        KindBadRequest,
	ErrInvalidEmail:        KindBadRequest,
	ErrEmailUnreachable:    KindBadRequest,
	ErrBadRequest:          KindBadRequest,
	ErrInvalidRequestInput: KindBadRequest,
	ErrIsDirectory:         KindBadRequest,
	ErrNotDirectory:        KindBadRequest,
	ErrMissingFilename:     KindBadRequest,
	ErrMissingPath:         KindBadRequest,
	ErrIntoItself:          KindBadRequest,

	ErrUsernameTaken: KindConflict,
	ErrEmailTaken:    KindConflict,
	ErrAlreadyExists: KindConflict,

	ErrRegistrationClosed: KindForbidden,
	ErrPathTraversal:      KindForbidden,
	ErrPermissionDenied:   KindForbidden,
	ErrReadOnly:           KindForbidden,
	ErrStorageRoot:        KindForbidden,

	ErrPayloadTooLarge: KindTooLarge,
	ErrTooManyRequests: KindTooManyRequests,
}

// KindOf walks err's chain and returns the kind of the first known sentinel.
// It also returns that sentinel so callers can render a safe message.
func KindOf(err error) (Kind, error) {
	if err == nil {
		return KindInternal, nil
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind, sentinel
		}
	}
	return KindInternal, ErrorInternal
}
