// Copyright 2025 Keel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codec

import (
	"encoding/binary"
	"hash"
	"math"

	"github.com/pingcap/errors"

	"github.com/keeldb/keel/types"
)

// First byte in the encoded value which specifies the encoding type.
const (
	NilFlag    byte = 0
	intFlag    byte = 1
	uintFlag   byte = 2
	floatFlag  byte = 3
	bytesFlag  byte = 4
	stringFlag byte = 5
)

// EncodeDatum appends the encoded value of d to b and returns the new slice.
func EncodeDatum(b []byte, d types.Datum) []byte {
	switch d.Kind() {
	case types.KindNull:
		return append(b, NilFlag)
	case types.KindInt64:
		b = append(b, intFlag)
		return appendUint64(b, uint64(d.GetInt64()))
	case types.KindUint64:
		b = append(b, uintFlag)
		return appendUint64(b, d.GetUint64())
	case types.KindFloat64:
		b = append(b, floatFlag)
		return appendUint64(b, floatBits(d.GetFloat64()))
	case types.KindString:
		b = append(b, stringFlag)
		return appendBytes(b, d.GetBytes())
	case types.KindBytes:
		b = append(b, bytesFlag)
		return appendBytes(b, d.GetBytes())
	default:
		panic("unsupported datum kind to encode")
	}
}

// DecodeDatum decodes one datum from b and returns the remaining bytes.
func DecodeDatum(b []byte) (d types.Datum, remain []byte, err error) {
	if len(b) == 0 {
		return d, nil, errors.New("invalid encoded value: empty input")
	}
	flag := b[0]
	b = b[1:]
	switch flag {
	case NilFlag:
		return d, b, nil
	case intFlag:
		v, remain, err := cutUint64(b)
		if err != nil {
			return d, nil, err
		}
		d.SetInt64(int64(v))
		return d, remain, nil
	case uintFlag:
		v, remain, err := cutUint64(b)
		if err != nil {
			return d, nil, err
		}
		d.SetUint64(v)
		return d, remain, nil
	case floatFlag:
		v, remain, err := cutUint64(b)
		if err != nil {
			return d, nil, err
		}
		d.SetFloat64(floatFromBits(v))
		return d, remain, nil
	case stringFlag:
		v, remain, err := cutBytes(b)
		if err != nil {
			return d, nil, err
		}
		d.SetString(string(v))
		return d, remain, nil
	case bytesFlag:
		v, remain, err := cutBytes(b)
		if err != nil {
			return d, nil, err
		}
		buf := make([]byte, len(v))
		copy(buf, v)
		d.SetBytes(buf)
		return d, remain, nil
	default:
		return d, nil, errors.Errorf("invalid encoded value flag %d", flag)
	}
}

// EncodeRow appends the encoded values of the row datums to b.
func EncodeRow(b []byte, row []types.Datum) []byte {
	for _, d := range row {
		b = EncodeDatum(b, d)
	}
	return b
}

// DecodeRow decodes n datums from b. The input must contain exactly n values.
func DecodeRow(b []byte, n int) ([]types.Datum, error) {
	row := make([]types.Datum, 0, n)
	var (
		d   types.Datum
		err error
	)
	for i := 0; i < n; i++ {
		d, b, err = DecodeDatum(b)
		if err != nil {
			return nil, errors.Trace(err)
		}
		row = append(row, d)
	}
	if len(b) != 0 {
		return nil, errors.Errorf("invalid encoded row: %d trailing bytes", len(b))
	}
	return row, nil
}

// HashDatum writes the hash representation of d into h. Values that compare
// equal must feed identical bytes into h, so integral kinds are normalized
// before hashing.
func HashDatum(h hash.Hash64, d types.Datum) error {
	var buf [9]byte
	switch d.Kind() {
	case types.KindNull:
		buf[0] = NilFlag
		_, err := h.Write(buf[:1])
		return errors.Trace(err)
	case types.KindInt64:
		i := d.GetInt64()
		if i < 0 {
			buf[0] = intFlag
		} else {
			// Hash non-negative ints like uints so that signed and unsigned
			// keys holding the same value collide.
			buf[0] = uintFlag
		}
		binary.LittleEndian.PutUint64(buf[1:], uint64(i))
		_, err := h.Write(buf[:])
		return errors.Trace(err)
	case types.KindUint64:
		buf[0] = uintFlag
		binary.LittleEndian.PutUint64(buf[1:], d.GetUint64())
		_, err := h.Write(buf[:])
		return errors.Trace(err)
	case types.KindFloat64:
		f := d.GetFloat64()
		if f == 0 {
			// -0.0 compares equal to 0.0, so it must hash equal too.
			f = 0
		}
		buf[0] = floatFlag
		binary.LittleEndian.PutUint64(buf[1:], floatBits(f))
		_, err := h.Write(buf[:])
		return errors.Trace(err)
	case types.KindString, types.KindBytes:
		buf[0] = bytesFlag
		if _, err := h.Write(buf[:1]); err != nil {
			return errors.Trace(err)
		}
		_, err := h.Write(d.GetBytes())
		return errors.Trace(err)
	default:
		return errors.Errorf("unsupported datum kind %d to hash", d.Kind())
	}
}

func floatBits(f float64) uint64 { return math.Float64bits(f) }

func floatFromBits(v uint64) float64 { return math.Float64frombits(v) }

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func cutUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, errors.New("invalid encoded value: insufficient bytes for uint64")
	}
	return binary.LittleEndian.Uint64(b[:8]), b[8:], nil
}

func appendBytes(b, data []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(data)))
	b = append(b, lenBuf[:n]...)
	return append(b, data...)
}

func cutBytes(b []byte) ([]byte, []byte, error) {
	size, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, errors.New("invalid encoded value: bad bytes length")
	}
	b = b[n:]
	if uint64(len(b)) < size {
		return nil, nil, errors.New("invalid encoded value: insufficient bytes")
	}
	return b[:size], b[size:], nil
}
