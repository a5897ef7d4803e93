// Package convert provides safe integer conversions for configuration values.
package convert

import (
	"fmt"
	"math"
)

// IntToUint32 converts v, returning an error if it does not fit.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32", v)
	}
	return uint32(v), nil
}
