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

// FieldType describes the type of a column in a row batch.
type FieldType struct {
	// Kind is the datum kind values of this column hold, one of the Kind*
	// constants. Null values are allowed for any kind.
	Kind byte
}

// NewFieldType creates a FieldType holding values of the given kind.
func NewFieldType(kind byte) *FieldType {
	return &FieldType{Kind: kind}
}
