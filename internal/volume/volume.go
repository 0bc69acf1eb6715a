package volume

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileNotFound is returned when a volume path does not resolve
	ErrFileNotFound = errors.New("volume file not found")
	// ErrFormat is returned when a file cannot be read as a 3-D scalar volume
	ErrFormat = errors.New("not a 3-D scalar volume")
)

// Coord represents voxel coordinates
type Coord struct {
	X int
	Y int
	Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Volume is a read-only 3-D scalar field. Data is stored x fastest,
// index = x + nx*(y + ny*z), the same layout as the NIfTI payload.
type Volume struct {
	Name string
	Dims [3]int
	Data []float64
}

// New returns a zero-filled volume
func New(name string, nx, ny, nz int) *Volume {
	return &Volume{
		Name: name,
		Dims: [3]int{nx, ny, nz},
		Data: make([]float64, nx*ny*nz),
	}
}

func (v *Volume) index(x, y, z int) int {
	return x + v.Dims[0]*(y+v.Dims[1]*z)
}

// At returns the value at (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.index(x, y, z)]
}

// Set sets the value at (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.index(x, y, z)] = value
}

// SameShape reports whether both volumes have identical dimensions
func (v *Volume) SameShape(o *Volume) bool {
	return v.Dims == o.Dims
}

// Scan calls fn for every voxel in row-major order of the (x, y, z) array:
// x outermost, z innermost.
func (v *Volume) Scan(fn func(c Coord, value float64)) {
	nx, ny, nz := v.Dims[0], v.Dims[1], v.Dims[2]
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				fn(Coord{x, y, z}, v.Data[v.index(x, y, z)])
			}
		}
	}
}

// NameFromFile derives a region name from a mask file name: everything before the first dot
func NameFromFile(file string) string {
	base := file
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return strings.SplitN(base, ".", 2)[0]
}
