// Package version negotiates the protocol version two peers share.
//
// A version set is a little-endian bitmask: bit b of byte i advertises
// version i*8+b+1.
package version

import (
	"errors"
	"fmt"
	"math/bits"
)

// Sting is the only version this node speaks.
const Sting = 2

var ErrVersionMismatch = errors.New("version: no common protocol version")

// MismatchError carries the highest version the remote's last mask byte can
// express: (len-1)*8 plus its top set bit, so a trailing zero byte reports (len-1)*8.
type MismatchError struct {
	Remote int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("version: no common protocol version (remote highest=%d)", e.Remote)
}

func (e *MismatchError) Unwrap() error { return ErrVersionMismatch }

// Supported returns a fresh copy of the local version mask.
func Supported() []byte {
	return Mask(Sting)
}

// Mask builds the bitmask advertising exactly the given versions. Versions below 1 are skipped.
func Mask(versions ...int) []byte {
	var out []byte
	for _, v := range versions {
		if v < 1 {
			continue
		}
		idx := (v - 1) / 8
		for len(out) <= idx {
			out = append(out, 0)
		}
		out[idx] |= 1 << ((v - 1) % 8)
	}
	return out
}

// Supports reports whether mask advertises v.
func Supports(mask []byte, v int) bool {
	if v < 1 {
		return false
	}
	idx := (v - 1) / 8
	if idx >= len(mask) {
		return false
	}
	return mask[idx]&(1<<((v-1)%8)) != 0
}

// Highest returns the highest version advertised by mask, or 0 when none is.
func Highest(mask []byte) int {
	for i := len(mask) - 1; i >= 0; i-- {
		if mask[i] != 0 {
			return i*8 + highestBit(mask[i])
		}
	}
	return 0
}

// Negotiate picks the highest version in the last byte position both masks
// have in common. Positions beyond the shorter mask are not considered.
func Negotiate(own, remote []byte) (int, error) {
	n := min(len(own), len(remote))
	negotiated := 0
	for i := 0; i < n; i++ {
		common := own[i] & remote[i]
		if common == 0 {
			continue
		}
		negotiated = i*8 + highestBit(common)
	}
	if negotiated == 0 {
		return 0, &MismatchError{Remote: lastByteHighest(remote)}
	}
	return negotiated, nil
}

// Negotiated runs Negotiate against the local mask.
func Negotiated(remote []byte) (int, error) {
	return Negotiate(Supported(), remote)
}

func lastByteHighest(mask []byte) int {
	if len(mask) == 0 {
		return 0
	}
	return (len(mask)-1)*8 + highestBit(mask[len(mask)-1])
}

// highestBit returns the 1-based position of the top set bit.
func highestBit(b byte) int {
	return bits.Len8(b)
}
