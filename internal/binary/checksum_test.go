package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFletcher32(t *testing.T) {
	cases := map[string]struct {
		in   []byte
		want uint32
	}{
		"empty":       {nil, 0},
		"one byte":    {[]byte{0x01}, 0x01000100},
		"one word":    {[]byte{0x01, 0x02}, 0x01020102},
		"two words":   {[]byte{0x01, 0x02, 0x03, 0x04}, 0x05080406},
		"folded word": {[]byte{0xFF, 0xFF}, 0xFFFFFFFF},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Fletcher32(tc.in), "%#08x", Fletcher32(tc.in))
		})
	}
}

func TestFletcher32PadsOddTail(t *testing.T) {
	assert.Equal(t, Fletcher32([]byte{1, 2, 3, 0}), Fletcher32([]byte{1, 2, 3}))
}

func TestVerifyFletcher32(t *testing.T) {
	data := []byte("dimension calibration block")
	sum := Fletcher32(data)
	assert.True(t, VerifyFletcher32(data, sum))
	assert.False(t, VerifyFletcher32(data, sum+1))
}

func TestLookup3(t *testing.T) {
	assert.Equal(t, uint32(0xdeadbeef), Lookup3(nil))
	assert.Equal(t, uint32(0x17770551), Lookup3([]byte("Four score and seven years ago")))

	data := []byte("OHDR object header")
	assert.True(t, VerifyLookup3(data, Lookup3(data)))
	assert.False(t, VerifyLookup3(data[1:], Lookup3(data)))
}
