package sink

import (
	errors "golang.org/x/xerrors"
)

var (
	errClosed = errors.New("sink: closed")
)
