package session

import "errors"

var (
	MalformedRedirectErr  = errors.New("malformed external redirect payload")
	IncompleteLoginErr    = errors.New("login requires both credentials and an identity")
	CorruptStoredStateErr = errors.New("stored session state is corrupt")
)
