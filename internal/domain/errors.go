package domain

import "errors"

var (
	// ErrAlreadyLive is returned when starting a session whose key is
	// already registered.
	ErrAlreadyLive = errors.New("session already live")

	// ErrUnknownSession is returned by mutations on a session key that is
	// not currently live.
	ErrUnknownSession = errors.New("unknown session")

	// ErrUnauthenticated is returned for chat submissions without a sender
	// identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)
