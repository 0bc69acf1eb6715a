package volume

// Record is one voxel retained by a mask: its coordinates and the subject value
type Record struct {
	Coord
	Value float64
}

// Values returns the values of records, in order
func Values(records []Record) []float64 {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Value
	}
	return values
}
