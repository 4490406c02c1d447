// Package wire holds the little-endian primitives of the HxA byte layout.
//
// Ownership boundary:
// - fixed-width integers and floats, no padding
// - u8-prefixed names and u32-prefixed strings
// - bulk typed arrays for layer and metadata payloads
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// NameMaxLength is the longest name the u8 length prefix can carry.
const NameMaxLength = 255

var (
	ErrTruncated   = errors.New("wire: truncated input")
	ErrNameTooLong = errors.New("wire: name too long")
)

// Reader consumes a byte slice front to back. It never reads past the end of
// the slice; every short read returns ErrTruncated and leaves the offset
// unchanged.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Fits reports whether n items of size bytes each are still available. It is
// used to reject declared counts before allocating for them.
func (r *Reader) Fits(n uint64, size uint64) bool {
	if size == 0 || n == 0 {
		return true
	}
	if n > math.MaxUint64/size {
		return false
	}
	return n*size <= uint64(r.Remaining())
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrTruncated
	}
	return r.buf[r.off], nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Name reads a u8 length followed by that many bytes. No terminator is stored.
func (r *Reader) Name() (string, error) {
	start := r.off
	n, err := r.U8()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		r.off = start
		return "", err
	}
	return string(b), nil
}

// Text reads a u32 length followed by that many bytes.
func (r *Reader) Text() (string, error) {
	start := r.off
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	if !r.Fits(uint64(n), 1) {
		r.off = start
		return "", ErrTruncated
	}
	b, _ := r.take(int(n))
	return string(b), nil
}

func (r *Reader) Uint8s(n int) ([]uint8, error) {
	return r.Bytes(n)
}

func (r *Reader) Int32s(n int) ([]int32, error) {
	b, err := r.take(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

func (r *Reader) Uint32s(n int) ([]uint32, error) {
	b, err := r.take(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out, nil
}

func (r *Reader) Int64s(n int) ([]int64, error) {
	b, err := r.take(n * 8)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}

func (r *Reader) Float32s(n int) ([]float32, error) {
	b, err := r.take(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

func (r *Reader) Float64s(n int) ([]float64, error) {
	b, err := r.take(n * 8)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}

// Writer appends encoded primitives to an in-memory buffer.
type Writer struct {
	buf []byte
}

func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded buffer. The slice aliases the writer's storage.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) U32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Name writes a u8 length followed by the raw bytes of s.
func (w *Writer) Name(s string) error {
	if len(s) > NameMaxLength {
		return ErrNameTooLong
	}
	w.buf = append(w.buf, uint8(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// Text writes a u32 length followed by the raw bytes of s.
func (w *Writer) Text(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) Int32s(v []int32) {
	for _, x := range v {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(x))
	}
}

func (w *Writer) Uint32s(v []uint32) {
	for _, x := range v {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, x)
	}
}

func (w *Writer) Int64s(v []int64) {
	for _, x := range v {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(x))
	}
}

func (w *Writer) Float32s(v []float32) {
	for _, x := range v {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(x))
	}
}

func (w *Writer) Float64s(v []float64) {
	for _, x := range v {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(x))
	}
}
