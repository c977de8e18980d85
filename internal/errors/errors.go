package errors

import "errors"

var (
	ErrNotAGitRepo            = errors.New("not a git repository (or no origin remote configured)")
	ErrUnparsableRemote       = errors.New("unable to parse org/repo from origin remote URL")
	ErrCredentialVerification = errors.New("AWS credential verification failed")
	ErrStateStoreMissing      = errors.New("state store not found - run 'tf-bootstrap init' first")
	ErrConfirmationMismatch   = errors.New("confirmation phrase did not match - aborting")
	ErrLockHeld               = errors.New("state lock is held - resolve manually or re-run and confirm removal")
	ErrEnvironmentNotFound    = errors.New("environment not found in state store")
)
