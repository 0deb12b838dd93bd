package probe

import (
	"math"

	"codeberg.org/znoxx/sleepynas/internal/errors"
)

// MaxThroughput is reported instead of a failed measurement while shutting
// down, so the threshold can never be crossed on the way out.
const MaxThroughput int64 = math.MaxInt64

var (
	errNoAverage = errors.New().WithMessage(errors.ErrMeasurement, "sar returned no Average row, interface probably not configured")
	errMalformed = errors.New().WithMessage(errors.ErrMeasurement, "malformed sar Average row")
)
