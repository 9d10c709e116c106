package binary

// Fletcher32 returns the Fletcher-32 checksum of data as HDF5 computes it:
// big-endian 16-bit words, sums folded every 360 words. An odd trailing
// byte counts as the high byte of a final word.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	fold := func(v uint32) uint32 { return v&0xffff + v>>16 }
	for len(data) > 1 {
		n := min(len(data)/2, 360)
		for range n {
			sum1 += uint32(data[0])<<8 | uint32(data[1])
			sum2 += sum1
			data = data[2:]
		}
		sum1, sum2 = fold(sum1), fold(sum2)
	}
	if len(data) == 1 {
		sum1 += uint32(data[0]) << 8
		sum2 += sum1
		sum1, sum2 = fold(sum1), fold(sum2)
	}
	sum1, sum2 = fold(sum1), fold(sum2)
	return sum2<<16 | sum1
}

// VerifyFletcher32 reports whether data has the given checksum.
func VerifyFletcher32(data []byte, sum uint32) bool {
	return Fletcher32(data) == sum
}

// Lookup3 is Bob Jenkins' hashlittle with a zero seed, the checksum of
// HDF5 version 2 superblocks and object headers.
func Lookup3(data []byte) uint32 {
	a := 0xdeadbeef + uint32(len(data))
	b, c := a, a
	le := func(p []byte) uint32 {
		var v uint32
		for i := len(p) - 1; i >= 0; i-- {
			v = v<<8 | uint32(p[i])
		}
		return v
	}
	for len(data) > 12 {
		a += le(data[0:4])
		b += le(data[4:8])
		c += le(data[8:12])
		a, b, c = lookup3Mix(a, b, c)
		data = data[12:]
	}
	if len(data) == 0 {
		return c
	}
	var tail [12]byte
	copy(tail[:], data)
	a += le(tail[0:4])
	b += le(tail[4:8])
	c += le(tail[8:12])
	_, _, c = lookup3Final(a, b, c)
	return c
}

// VerifyLookup3 reports whether data has the given lookup3 checksum.
func VerifyLookup3(data []byte, sum uint32) bool {
	return Lookup3(data) == sum
}

func rotl(x uint32, k uint) uint32 { return x<<k | x>>(32-k) }

func lookup3Mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= rotl(c, 4)
	c += b
	b -= a
	b ^= rotl(a, 6)
	a += c
	c -= b
	c ^= rotl(b, 8)
	b += a
	a -= c
	a ^= rotl(c, 16)
	c += b
	b -= a
	b ^= rotl(a, 19)
	a += c
	c -= b
	c ^= rotl(b, 4)
	b += a
	return a, b, c
}

func lookup3Final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= rotl(b, 14)
	a ^= c
	a -= rotl(c, 11)
	b ^= a
	b -= rotl(a, 25)
	c ^= b
	c -= rotl(b, 16)
	a ^= c
	a -= rotl(c, 4)
	b ^= a
	b -= rotl(a, 14)
	c ^= b
	c -= rotl(b, 24)
	return a, b, c
}
