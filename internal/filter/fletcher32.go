package filter

import (
	"encoding/binary"
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-emd/internal/binary"
)

// ErrChecksum is returned when a blob's trailing checksum does not match.
var ErrChecksum = errors.New("fletcher32: checksum mismatch")

// Fletcher32Filter appends a Fletcher-32 checksum to each blob and strips
// and verifies it on the way back.
type Fletcher32Filter struct{}

// NewFletcher32 returns the checksum stage. It takes no client data.
func NewFletcher32([]uint32) *Fletcher32Filter {
	return &Fletcher32Filter{}
}

func (*Fletcher32Filter) ID() uint16 { return IDFletcher32 }

func (*Fletcher32Filter) Encode(in []byte) ([]byte, error) {
	return binary.LittleEndian.AppendUint32(append([]byte(nil), in...), binpkg.Fletcher32(in)), nil
}

func (*Fletcher32Filter) Decode(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes is too short for a checksum", len(in))
	}
	body, tail := in[:len(in)-4], in[len(in)-4:]
	if sum := binary.LittleEndian.Uint32(tail); !binpkg.VerifyFletcher32(body, sum) {
		return nil, fmt.Errorf("%w: stored %#08x, computed %#08x", ErrChecksum, sum, binpkg.Fletcher32(body))
	}
	return body, nil
}
