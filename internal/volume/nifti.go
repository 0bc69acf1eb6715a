package volume

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"

	"github.com/KyungWonPark/nifti"
	gzip "github.com/klauspost/pgzip"
)

// Loader reads a volume from storage
type Loader interface {
	Load(path string) (*Volume, error)
}

// NiftiLoader loads single-file NIfTI-1 images (.nii, .nii.gz).
// Little-endian scalar images with up to 32-bit integers or 32/64-bit floats
// are decoded; scl_slope and scl_inter are applied.
type NiftiLoader struct{}

const niftiHeaderSize = 348

// NIfTI-1 datatype codes
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtComplex = 32
	dtFloat64 = 64
	dtRGB     = 128
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

type voxelCodec struct {
	width  int
	decode func(b []byte) float64
}

var codecs = map[int16]voxelCodec{
	dtUint8: {1, func(b []byte) float64 { return float64(b[0]) }},
	dtInt8:  {1, func(b []byte) float64 { return float64(int8(b[0])) }},
	dtInt16: {2, func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) }},
	dtUint16: {2, func(b []byte) float64 {
		return float64(binary.LittleEndian.Uint16(b))
	}},
	dtInt32: {4, func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }},
	dtUint32: {4, func(b []byte) float64 {
		return float64(binary.LittleEndian.Uint32(b))
	}},
	dtFloat32: {4, func(b []byte) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}},
	dtFloat64: {8, func(b []byte) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}},
}

// Load reads a NIfTI-1 image into a Volume
func (NiftiLoader) Load(path string) (*Volume, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("[NiftiLoader] Failed to stat %s: %v", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[NiftiLoader] Failed to open %s: %v", path, err)
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	defer r.Close()

	vol, err := readNifti(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	vol.Name = NameFromFile(path)

	return vol, nil
}

// decompress sniffs the gzip magic rather than trusting the file extension
func decompress(f *os.File) (io.ReadCloser, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return io.NopCloser(br), nil
}

type geometry struct {
	dims   [3]int
	offset int64
	codec  voxelCodec
}

func readNifti(r io.Reader) (*Volume, error) {
	var hdr nifti.Nifti1Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}

	geom, err := checkHeader(&hdr)
	if err != nil {
		return nil, err
	}

	// extensions sit between the header and vox_offset
	if _, err := io.CopyN(io.Discard, r, geom.offset-niftiHeaderSize); err != nil {
		return nil, fmt.Errorf("file ends before vox_offset %d", geom.offset)
	}

	nvox := geom.dims[0] * geom.dims[1] * geom.dims[2]
	need := int64(nvox) * int64(geom.codec.width)
	// ReadAll grows with the bytes actually present, so a lying header cannot force a huge allocation
	data, err := io.ReadAll(io.LimitReader(r, need))
	if err != nil {
		return nil, fmt.Errorf("reading voxel data: %v", err)
	}
	if int64(len(data)) < need {
		return nil, fmt.Errorf("voxel data holds %d bytes, header needs %d", len(data), need)
	}

	// NIfTI stores x fastest, like Volume
	vol := New("", geom.dims[0], geom.dims[1], geom.dims[2])
	w := geom.codec.width
	for i := range vol.Data {
		vol.Data[i] = geom.codec.decode(data[i*w : (i+1)*w])
	}

	if slope, inter, ok := scaling(&hdr); ok {
		for i, v := range vol.Data {
			vol.Data[i] = slope*v + inter
		}
	}

	return vol, nil
}

func checkHeader(hdr *nifti.Nifti1Header) (geometry, error) {
	var g geometry

	if hdr.SizeofHdr != niftiHeaderSize {
		if bits.ReverseBytes32(uint32(hdr.SizeofHdr)) == niftiHeaderSize {
			return g, errors.New("big-endian images are not supported")
		}
		return g, fmt.Errorf("sizeof_hdr is %d, want %d", hdr.SizeofHdr, niftiHeaderSize)
	}

	switch string(hdr.Magic[:]) {
	case "n+1\x00":
	case "ni1\x00":
		return g, errors.New("two-file .hdr/.img images are not supported")
	default:
		return g, fmt.Errorf("bad magic %q", hdr.Magic[:])
	}

	ndim := int(hdr.Dim[0])
	if ndim < 1 || ndim > 7 {
		return g, fmt.Errorf("dim[0] is %d", ndim)
	}
	g.dims = [3]int{1, 1, 1}
	for i := 1; i <= ndim; i++ {
		n := int(hdr.Dim[i])
		if n <= 0 {
			return g, fmt.Errorf("dim[%d] is %d", i, n)
		}
		if i <= 3 {
			g.dims[i-1] = n
		} else if n > 1 {
			return g, fmt.Errorf("dim[%d] is %d; only single-frame 3-D images are read", i, n)
		}
	}

	codec, ok := codecs[hdr.Datatype]
	if !ok {
		return g, fmt.Errorf("unsupported datatype %d", hdr.Datatype)
	}
	if int(hdr.Bitpix) != 8*codec.width {
		return g, fmt.Errorf("bitpix %d does not match datatype %d", hdr.Bitpix, hdr.Datatype)
	}
	g.codec = codec

	if !(hdr.VoxOffset >= niftiHeaderSize && hdr.VoxOffset < math.MaxInt32) {
		return g, fmt.Errorf("vox_offset is %v", hdr.VoxOffset)
	}
	g.offset = int64(hdr.VoxOffset)

	return g, nil
}

// scaling returns scl_slope and scl_inter when they change values.
// A zero or non-finite slope means unscaled data.
func scaling(hdr *nifti.Nifti1Header) (slope, inter float64, ok bool) {
	slope, inter = float64(hdr.SclSlope), float64(hdr.SclInter)
	if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 1, 0, false
	}
	if math.IsNaN(inter) || math.IsInf(inter, 0) {
		inter = 0
	}
	return slope, inter, slope != 1 || inter != 0
}
