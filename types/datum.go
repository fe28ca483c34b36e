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

package types

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pingcap/errors"
)

// Kind constants of a Datum.
const (
	KindNull byte = iota
	KindInt64
	KindUint64
	KindFloat64
	KindString
	KindBytes
)

// Datum is a data box holding a value of one of the supported kinds.
type Datum struct {
	k byte
	i int64
	b []byte
}

// Kind gets the kind of the datum.
func (d *Datum) Kind() byte { return d.k }

// IsNull checks if the datum is null.
func (d *Datum) IsNull() bool { return d.k == KindNull }

// GetInt64 gets the int64 value.
func (d *Datum) GetInt64() int64 { return d.i }

// SetInt64 sets the int64 value.
func (d *Datum) SetInt64(i int64) {
	d.k = KindInt64
	d.i = i
}

// GetUint64 gets the uint64 value.
func (d *Datum) GetUint64() uint64 { return uint64(d.i) }

// SetUint64 sets the uint64 value.
func (d *Datum) SetUint64(u uint64) {
	d.k = KindUint64
	d.i = int64(u)
}

// GetFloat64 gets the float64 value.
func (d *Datum) GetFloat64() float64 { return math.Float64frombits(uint64(d.i)) }

// SetFloat64 sets the float64 value.
func (d *Datum) SetFloat64(f float64) {
	d.k = KindFloat64
	d.i = int64(math.Float64bits(f))
}

// GetString gets the string value.
func (d *Datum) GetString() string { return string(d.b) }

// SetString sets the string value.
func (d *Datum) SetString(s string) {
	d.k = KindString
	d.b = []byte(s)
}

// GetBytes gets the bytes value.
func (d *Datum) GetBytes() []byte { return d.b }

// SetBytes sets the bytes value.
func (d *Datum) SetBytes(b []byte) {
	d.k = KindBytes
	d.b = b
}

// SetNull sets the datum to null.
func (d *Datum) SetNull() {
	d.k = KindNull
	d.i = 0
	d.b = nil
}

// String returns a human-readable form of the datum.
func (d Datum) String() string {
	switch d.k {
	case KindNull:
		return "NULL"
	case KindInt64:
		return strconv.FormatInt(d.GetInt64(), 10)
	case KindUint64:
		return strconv.FormatUint(d.GetUint64(), 10)
	case KindFloat64:
		return strconv.FormatFloat(d.GetFloat64(), 'g', -1, 64)
	case KindString, KindBytes:
		return strconv.Quote(string(d.b))
	default:
		return fmt.Sprintf("unknown(%d)", d.k)
	}
}

// NewDatum creates a new Datum from an interface{}.
func NewDatum(in interface{}) (d Datum) {
	switch x := in.(type) {
	case nil:
		d.SetNull()
	case int:
		d.SetInt64(int64(x))
	case int64:
		d.SetInt64(x)
	case uint64:
		d.SetUint64(x)
	case float64:
		d.SetFloat64(x)
	case string:
		d.SetString(x)
	case []byte:
		d.SetBytes(x)
	case Datum:
		d = x
	default:
		panic("unsupported datum value")
	}
	return d
}

// NewIntDatum creates a new Datum from an int64 value.
func NewIntDatum(i int64) (d Datum) {
	d.SetInt64(i)
	return d
}

// NewUintDatum creates a new Datum from an uint64 value.
func NewUintDatum(u uint64) (d Datum) {
	d.SetUint64(u)
	return d
}

// NewFloat64Datum creates a new Datum from a float64 value.
func NewFloat64Datum(f float64) (d Datum) {
	d.SetFloat64(f)
	return d
}

// NewStringDatum creates a new Datum from a string.
func NewStringDatum(s string) (d Datum) {
	d.SetString(s)
	return d
}

// NewBytesDatum creates a new Datum from a byte slice.
func NewBytesDatum(b []byte) (d Datum) {
	d.SetBytes(b)
	return d
}

// ToBool converts the datum to a bool value. Numeric values are true when
// non-zero, string and bytes values are true when non-empty.
func (d *Datum) ToBool() (bool, error) {
	switch d.k {
	case KindInt64:
		return d.GetInt64() != 0, nil
	case KindUint64:
		return d.GetUint64() != 0, nil
	case KindFloat64:
		return d.GetFloat64() != 0, nil
	case KindString, KindBytes:
		return len(d.b) != 0, nil
	default:
		return false, errors.Errorf("cannot convert kind %d to bool", d.k)
	}
}

// Compare compares the datum with another one and returns -1, 0 or 1.
// A null datum sorts before any non-null datum and equals another null.
func (d *Datum) Compare(other Datum) (int, error) {
	if d.IsNull() {
		if other.IsNull() {
			return 0, nil
		}
		return -1, nil
	}
	if other.IsNull() {
		return 1, nil
	}
	switch d.k {
	case KindInt64:
		switch other.k {
		case KindInt64:
			return compareInt64(d.GetInt64(), other.GetInt64()), nil
		case KindUint64:
			if d.GetInt64() < 0 {
				return -1, nil
			}
			return compareUint64(uint64(d.GetInt64()), other.GetUint64()), nil
		case KindFloat64:
			return compareFloat64(float64(d.GetInt64()), other.GetFloat64()), nil
		}
	case KindUint64:
		switch other.k {
		case KindUint64:
			return compareUint64(d.GetUint64(), other.GetUint64()), nil
		case KindInt64:
			if other.GetInt64() < 0 {
				return 1, nil
			}
			return compareUint64(d.GetUint64(), uint64(other.GetInt64())), nil
		case KindFloat64:
			return compareFloat64(float64(d.GetUint64()), other.GetFloat64()), nil
		}
	case KindFloat64:
		switch other.k {
		case KindFloat64:
			return compareFloat64(d.GetFloat64(), other.GetFloat64()), nil
		case KindInt64:
			return compareFloat64(d.GetFloat64(), float64(other.GetInt64())), nil
		case KindUint64:
			return compareFloat64(d.GetFloat64(), float64(other.GetUint64())), nil
		}
	case KindString, KindBytes:
		if other.k == KindString || other.k == KindBytes {
			return compareBytes(d.b, other.b), nil
		}
	}
	return 0, errors.Errorf("cannot compare kind %d with kind %d", d.k, other.k)
}

func compareInt64(x, y int64) int {
	if x < y {
		return -1
	} else if x == y {
		return 0
	}
	return 1
}

func compareUint64(x, y uint64) int {
	if x < y {
		return -1
	} else if x == y {
		return 0
	}
	return 1
}

func compareFloat64(x, y float64) int {
	if x < y {
		return -1
	} else if x == y {
		return 0
	}
	return 1
}

func compareBytes(x, y []byte) int {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	for i := 0; i < n; i++ {
		if x[i] < y[i] {
			return -1
		} else if x[i] > y[i] {
			return 1
		}
	}
	return compareInt64(int64(len(x)), int64(len(y)))
}
