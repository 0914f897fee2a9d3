package storage

import "errors"

// ErrInvalidInput is returned for transactions or query ranges the archive
// refuses to store or serve.
var ErrInvalidInput = errors.New("invalid input")
