package auth

import "errors"

// ErrCredentialNotHashed is returned when the configured admin credential
// does not look like a salt:key PBKDF2 hash. Authentication must fail
// closed rather than compare plaintext.
var ErrCredentialNotHashed = errors.New("auth: configured admin credential is not hashed")
