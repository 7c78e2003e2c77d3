package core

import (
	"github.com/pkg/errors"
)

// ErrVersionConflict is returned by optimistic-concurrency-capable saves when
// the record changed since it was read. The caller must re-read, recompute
// and retry; repositories never retry on their own.
var ErrVersionConflict = errors.New("record version conflict")
