/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxMessageSize bounds every encoded message: it is the scratch buffer size
// shared by Channel and DetachableChannel, and the largest datagram either
// side will ever emit or accept. ListSessions responses must fit within it.
const MaxMessageSize = 4096

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to build canonical cbor encoder: %v", err))
	}
	encMode = m

	dopts := cbor.DecOptions{MaxArrayElements: 1024, MaxMapPairs: 1024}
	dm, err := dopts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to build cbor decoder: %v", err))
	}
	decMode = dm
}

// Encode serializes v using the canonical CBOR encoding: equal values always
// produce equal bytes, satisfying the wire format's determinism requirement.
func Encode(v interface{}) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode failed: %w", err)
	}
	if len(b) > MaxMessageSize {
		return nil, fmt.Errorf("protocol: encoded message of %d bytes exceeds max size %d", len(b), MaxMessageSize)
	}
	return b, nil
}

// Decode deserializes b into v.
func Decode(b []byte, v interface{}) error {
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("protocol: decode failed: %w", err)
	}
	return nil
}
