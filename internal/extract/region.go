package extract

import (
	"fmt"
	"math"

	"github.com/KyungWonPark/faroi/internal/volume"
)

// keep reports whether a value survives the threshold: |value| > thr.
// A nil threshold keeps everything.
func keep(value float64, thr *float64) bool {
	if thr == nil {
		return true
	}
	return math.Abs(value) > *thr
}

// ExtractRegion returns the subject values where mask > 0, in scan order,
// minus values at or below the threshold.
func ExtractRegion(subject, mask *volume.Volume, threshold *float64) ([]volume.Record, error) {
	if !subject.SameShape(mask) {
		return nil, fmt.Errorf("%w: subject %s is %v, mask %s is %v",
			ErrShapeMismatch, subject.Name, subject.Dims, mask.Name, mask.Dims)
	}

	var records []volume.Record
	mask.Scan(func(c volume.Coord, m float64) {
		if !(m > 0) {
			return
		}
		value := subject.At(c.X, c.Y, c.Z)
		if keep(value, threshold) {
			records = append(records, volume.Record{Coord: c, Value: value})
		}
	})

	return records, nil
}
