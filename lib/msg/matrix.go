// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

// MatrixLayout is the layout of the "matrix" message: header, rows,
// cols, then rows*cols float64 elements in row-major order with no row
// padding.
var MatrixLayout = newLayout("matrix", 0, 1, 2, "float64", 8, 8)

// MatrixSizeMN returns the size in bytes of a rows x cols matrix
// message. A 0x0 matrix is valid and has size MatrixLayout.Prefix.
// Panics if either dimension is negative.
func MatrixSizeMN(rows, cols int) int {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("msg: matrix: negative dimensions %dx%d", rows, cols))
	}
	return MatrixLayout.Prefix + rows*cols*MatrixLayout.ElementSize
}

// Matrix is a view of a matrix message.
type Matrix struct {
	frame []byte
}

const (
	offRows = 0
	offCols = countSize
)

// InitMatrix zeroes MatrixSizeMN(rows, cols) bytes of frame, stamps
// the header and sets the dimensions.
func InitMatrix(frame []byte, producer *Producer, rows, cols int) (Matrix, error) {
	size := MatrixSizeMN(rows, cols)
	if len(frame) < size {
		return Matrix{}, fmt.Errorf("matrix: %w (%d bytes, need %d)", ErrBufferTooSmall, len(frame), size)
	}
	frame = frame[:size]
	clear(frame)
	var header Header
	producer.Fill(&header)
	putHeader(frame, &header)
	native.PutUint64(frame[MatrixLayout.CountOffset+offRows:], uint64(rows))
	native.PutUint64(frame[MatrixLayout.CountOffset+offCols:], uint64(cols))
	return Matrix{frame: frame}, nil
}

// NewMatrix allocates and initializes a rows x cols matrix message.
func NewMatrix(allocator Allocator, producer *Producer, rows, cols int) (Matrix, error) {
	frame, err := allocator.Alloc(MatrixSizeMN(rows, cols))
	if err != nil {
		return Matrix{}, fmt.Errorf("allocating matrix[%dx%d]: %w", rows, cols, err)
	}
	return InitMatrix(frame, producer, rows, cols)
}

// CheckMatrixSize validates a received matrix frame: it must hold an
// empty matrix and the size implied by its declared rows and cols.
func CheckMatrixSize(frame []byte) error {
	if len(frame) < MatrixLayout.Prefix {
		return &FrameError{Type: MatrixLayout.Name, FrameSize: len(frame), Want: MatrixLayout.Prefix, Err: ErrShortFrame}
	}
	rows := native.Uint64(frame[MatrixLayout.CountOffset+offRows:])
	cols := native.Uint64(frame[MatrixLayout.CountOffset+offCols:])
	limit := uint64(math.MaxInt-MatrixLayout.Prefix) / uint64(MatrixLayout.ElementSize)
	// Each dimension is bounded on its own: with the other one zero,
	// the product says nothing about it.
	if rows > limit || cols > limit {
		return &FrameError{Type: MatrixLayout.Name, FrameSize: len(frame), Count: max(rows, cols), Want: -1, Err: ErrSizeMismatch}
	}
	high, count := bits.Mul64(rows, cols)
	if high != 0 || count > limit {
		return &FrameError{Type: MatrixLayout.Name, FrameSize: len(frame), Count: count, Want: -1, Err: ErrSizeMismatch}
	}
	want := MatrixLayout.Prefix + int(count)*MatrixLayout.ElementSize
	if len(frame) < want {
		return &FrameError{Type: MatrixLayout.Name, FrameSize: len(frame), Count: count, Want: want, Err: ErrSizeMismatch}
	}
	return nil
}

// ViewMatrix validates frame and returns a view of the declared
// matrix.
func ViewMatrix(frame []byte) (Matrix, error) {
	if err := CheckMatrixSize(frame); err != nil {
		return Matrix{}, err
	}
	m := Matrix{frame: frame}
	return Matrix{frame: frame[:m.Size()]}, nil
}

// Rows returns the declared row count.
func (m Matrix) Rows() int {
	return int(native.Uint64(m.frame[MatrixLayout.CountOffset+offRows:]))
}

// Cols returns the declared column count.
func (m Matrix) Cols() int {
	return int(native.Uint64(m.frame[MatrixLayout.CountOffset+offCols:]))
}

// Empty reports whether the matrix has no elements.
func (m Matrix) Empty() bool {
	return m.Rows() == 0 || m.Cols() == 0
}

// Size returns MatrixSizeMN(Rows(), Cols()).
func (m Matrix) Size() int {
	return MatrixSizeMN(m.Rows(), m.Cols())
}

// Bytes returns the frame, exactly Size() bytes long.
func (m Matrix) Bytes() []byte { return m.frame }

func (m Matrix) offset(row, col int) int {
	rows, cols := m.Rows(), m.Cols()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		panic(fmt.Sprintf("msg: matrix: index (%d,%d) out of range %dx%d", row, col, rows, cols))
	}
	return MatrixLayout.DataOffset + (row*cols+col)*MatrixLayout.ElementSize
}

// At returns the element at row, col.
func (m Matrix) At(row, col int) float64 {
	return math.Float64frombits(native.Uint64(m.frame[m.offset(row, col):]))
}

// Set stores the element at row, col.
func (m Matrix) Set(row, col int, value float64) {
	native.PutUint64(m.frame[m.offset(row, col):], math.Float64bits(value))
}

// Header decodes the message header.
func (m Matrix) Header() Header { return readHeader(m.frame) }

// SetTime re-stamps the creation time and validity window in place.
func (m Matrix) SetTime(now time.Time, validity time.Duration) {
	header := readHeader(m.frame)
	header.SetTime(now, validity)
	putHeader(m.frame, &header)
}
