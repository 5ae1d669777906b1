// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/drawbatch/gpucore"
)

// minUniformSize is the size of the uniform buffer bound when a draw has
// no parameters.
const minUniformSize = 16

// packParameters lays params out as consecutive vec4<f32> slots in the
// given order. Each parameter starts on a 16-byte boundary and takes
// ceil(len/4) slots; unused lanes are zero.
func packParameters(params []gpucore.Parameter) []byte {
	size := 0
	for _, p := range params {
		size += paddedLen(len(p.Value)) * 4
	}
	buf := make([]byte, max(size, minUniformSize))

	off := 0
	for _, p := range params {
		for i, v := range p.Value {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v))
		}
		off += paddedLen(len(p.Value)) * 4
	}
	return buf
}

// paddedLen rounds n up to a multiple of 4.
func paddedLen(n int) int {
	return (n + 3) &^ 3
}
