package match

import "errors"

// ErrAllocation is returned when a new match could not be allocated.
var ErrAllocation = errors.New("match allocation failed")
