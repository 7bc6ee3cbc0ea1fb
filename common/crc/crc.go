// Copyright 2025 StreamNative, Inc.
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

package crc

import (
	"hash/crc32"
)

var table = crc32.IEEETable

// Checksum is the running state of an IEEE CRC-32 (zlib, Ethernet) computation.
// The zero value is a started checksum. Updating never modifies the receiver, so a
// partially fed Checksum can be reused as the common prefix of several inputs.
type Checksum uint32

func Start() Checksum {
	return 0
}

func (c Checksum) Update(b []byte) Checksum {
	return Checksum(crc32.Update(uint32(c), table, b))
}

func (c Checksum) UpdateString(s string) Checksum {
	return c.Update([]byte(s))
}

func (c Checksum) Final() uint32 {
	return uint32(c)
}

// Sum computes the checksum of b in one step.
func Sum(b []byte) uint32 {
	return Start().Update(b).Final()
}
