package fusion

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey  = bytes.Repeat([]byte{0x01}, 16)
	testData = []byte("ABC")
)

func TestTrailerCodec_EncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name   string
		fields Fields
		key    []byte
		data   []byte
	}{
		{
			name:   "reference scenario",
			fields: Fields{Epoch: 11, RootID: 0xCAFE, Tips: [2]int{0x123, 0x456}},
			key:    testKey,
			data:   testData,
		},
		{
			name:   "all zero",
			fields: Fields{},
			key:    testKey,
			data:   nil,
		},
		{
			name:   "upper bounds",
			fields: Fields{Epoch: MaxEpoch, RootID: MaxRootID, Tips: [2]int{MaxTipID, MaxTipID}},
			key:    bytes.Repeat([]byte{0xFF}, 32),
			data:   bytes.Repeat([]byte("x"), 4096),
		},
		{
			name:   "alternating tip bits",
			fields: Fields{Epoch: 200, RootID: 0xBEEF, Tips: [2]int{0xAAA, 0xBBB}},
			key:    bytes.Repeat([]byte{0x99}, 16),
			data:   []byte("DATA"),
		},
		{
			name:   "empty key",
			fields: Fields{Epoch: 1, RootID: 2, Tips: [2]int{3, 4}},
			key:    nil,
			data:   []byte("payload"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trailer, err := Encode(tc.fields, tc.key, tc.data)
			require.NoError(t, err)
			assert.Len(t, trailer.Bytes(), Size)

			got, err := Decode(trailer.Bytes(), tc.key, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.fields, got)
		})
	}
}

func TestTrailerCodec_Layout(t *testing.T) {
	trailer, err := Encode(Fields{Epoch: 11, RootID: 0xCAFE, Tips: [2]int{0x123, 0x456}}, testKey, testData)
	require.NoError(t, err)

	b := trailer.Bytes()
	assert.Equal(t, []byte{0xCF, 0x0B, 0xCA, 0xFE, 0x12, 0x34, 0x56}, b[:7])
	assert.Equal(t, byte(0x00), b[8], "reserved byte")

	mac := hmac.New(sha256.New, testKey)
	mac.Write(testData)
	assert.Equal(t, mac.Sum(nil)[0], b[7])
	assert.Equal(t, trailer.MAC8(), b[7])

	assert.Equal(t, crcBitwise(0, b[:9], CRCPolynomial), b[9])
	assert.Equal(t, trailer.CRC8(), b[9])
}

func TestTrailerCodec_GoldenVectors(t *testing.T) {
	testCases := []struct {
		name   string
		fields Fields
		key    []byte
		data   []byte
		want   string
	}{
		{
			name:   "reference scenario",
			fields: Fields{Epoch: 11, RootID: 0xCAFE, Tips: [2]int{0x123, 0x456}},
			key:    testKey,
			data:   testData,
			want:   "cf0bcafe1234561700f1",
		},
		{
			name:   "beacon defaults",
			fields: Fields{Epoch: 200, RootID: 0xBEEF, Tips: [2]int{0xAAA, 0xBBB}},
			key:    bytes.Repeat([]byte{0x99}, 16),
			data:   []byte("DATA"),
			want:   "cfc8beefaaabbb070063",
		},
		{
			name: "empty key and data",
			want: "cf000000000000b6001c",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trailer, err := Encode(tc.fields, tc.key, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, trailer.String())
		})
	}
}

func TestTrailerCodec_EncodeRange(t *testing.T) {
	testCases := []struct {
		name   string
		fields Fields
	}{
		{name: "negative epoch", fields: Fields{Epoch: -1}},
		{name: "epoch 256", fields: Fields{Epoch: 256}},
		{name: "negative root", fields: Fields{RootID: -1}},
		{name: "root 65536", fields: Fields{RootID: 65536}},
		{name: "both out of range", fields: Fields{Epoch: 1000, RootID: 1 << 20}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.fields, testKey, testData)
			assert.ErrorIs(t, err, ErrRange)
		})
	}
}

func TestTrailerCodec_TipMasking(t *testing.T) {
	t.Run("default codec masks wide tips", func(t *testing.T) {
		trailer, err := Encode(Fields{Tips: [2]int{0x1123, 0xF456}}, testKey, testData)
		require.NoError(t, err)

		got, err := Decode(trailer.Bytes(), testKey, testData)
		require.NoError(t, err)
		assert.Equal(t, [2]int{0x123, 0x456}, got.Tips)
	})

	t.Run("strict codec rejects wide tips", func(t *testing.T) {
		codec := &TrailerCodec{StrictTips: true}
		for _, tips := range [][2]int{{4096, 0}, {0, 4096}, {-1, 0}} {
			_, err := codec.Encode(Fields{Tips: tips}, testKey, testData)
			assert.ErrorIs(t, err, ErrRange, "tips %v", tips)
		}
	})

	t.Run("strict codec accepts 12-bit tips", func(t *testing.T) {
		codec := &TrailerCodec{StrictTips: true}
		trailer, err := codec.Encode(Fields{Tips: [2]int{MaxTipID, 0}}, testKey, testData)
		require.NoError(t, err)

		got, err := codec.Decode(trailer.Bytes(), testKey, testData)
		require.NoError(t, err)
		assert.Equal(t, [2]int{MaxTipID, 0}, got.Tips)
	})
}

func TestTrailerCodec_PackTips(t *testing.T) {
	packed := packTips([2]int{0xAAA, 0xBBB})
	assert.Equal(t, uint32(0xAAABBB), packed)
	assert.Equal(t, [2]int{0xAAA, 0xBBB}, unpackTips(packed))

	for i := 0; i <= MaxTipID; i += 37 {
		tips := [2]int{i, MaxTipID - i}
		assert.Equal(t, tips, unpackTips(packTips(tips)))
	}
}

func TestTrailerCodec_DecodeFormat(t *testing.T) {
	valid, err := Encode(Fields{Epoch: 1, RootID: 2, Tips: [2]int{3, 4}}, testKey, testData)
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "nine bytes", data: valid.Bytes()[:9]},
		{name: "eleven bytes", data: append(valid.Bytes(), 0x00)},
		{name: "bad magic", data: func() []byte {
			b := valid.Bytes()
			b[0] = 0xCE
			return b
		}()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data, testKey, testData)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestTrailerCodec_BadMagicWithValidCRC(t *testing.T) {
	valid, err := Encode(Fields{Epoch: 9}, testKey, testData)
	require.NoError(t, err)

	b := valid.Bytes()
	b[0] = 0x00
	b[9] = ChecksumCRC8(b[:9])

	_, err = Decode(b, testKey, testData)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestTrailerCodec_CorruptedCRCByte(t *testing.T) {
	valid, err := Encode(Fields{Epoch: 1, RootID: 2, Tips: [2]int{3, 4}}, testKey, testData)
	require.NoError(t, err)

	for bit := 0; bit < 8; bit++ {
		b := valid.Bytes()
		b[9] ^= 1 << bit
		_, err := Decode(b, testKey, testData)
		assert.ErrorIs(t, err, ErrIntegrity, "bit %d", bit)
	}
}

func TestTrailerCodec_SingleBitCorruption(t *testing.T) {
	valid, err := Encode(Fields{Epoch: 1, RootID: 2, Tips: [2]int{3, 4}}, testKey, testData)
	require.NoError(t, err)

	for idx := 0; idx < Size; idx++ {
		for bit := 0; bit < 8; bit++ {
			b := valid.Bytes()
			b[idx] ^= 1 << bit
			_, err := Decode(b, testKey, testData)
			assert.Error(t, err, "byte %d bit %d", idx, bit)
		}
	}
}

func TestTrailerCodec_ByteCorruption(t *testing.T) {
	valid, err := Encode(Fields{Epoch: 1, RootID: 2, Tips: [2]int{3, 4}}, testKey, testData)
	require.NoError(t, err)

	for idx := 0; idx < Size; idx++ {
		b := valid.Bytes()
		b[idx] ^= 0xFF
		_, err := Decode(b, testKey, testData)
		assert.Error(t, err, "byte %d", idx)
	}
}

// otherMAC8Key returns a key whose MAC8 over data differs from key's.
func otherMAC8Key(t *testing.T, key, data []byte) []byte {
	t.Helper()
	want := ComputeMAC8(key, data)
	for i := 0; i < 256; i++ {
		candidate := bytes.Repeat([]byte{byte(i)}, len(key))
		candidate[0] ^= 0x5A
		if ComputeMAC8(candidate, data) != want {
			return candidate
		}
	}
	t.Fatal("no key with a distinct MAC8 found")
	return nil
}

// otherMAC8Data returns a buffer whose MAC8 under key differs from data's.
func otherMAC8Data(t *testing.T, key, data []byte) []byte {
	t.Helper()
	want := ComputeMAC8(key, data)
	for i := 0; i < 256; i++ {
		candidate := append(append([]byte{}, data...), byte(i))
		if ComputeMAC8(key, candidate) != want {
			return candidate
		}
	}
	t.Fatal("no payload with a distinct MAC8 found")
	return nil
}

func TestTrailerCodec_Authentication(t *testing.T) {
	valid, err := Encode(Fields{Epoch: 11, RootID: 0xCAFE, Tips: [2]int{0x123, 0x456}}, testKey, testData)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := Decode(valid.Bytes(), otherMAC8Key(t, testKey, testData), testData)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("wrong payload", func(t *testing.T) {
		_, err := Decode(valid.Bytes(), testKey, otherMAC8Data(t, testKey, testData))
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("inspect skips MAC", func(t *testing.T) {
		f, err := Inspect(valid.Bytes())
		require.NoError(t, err)
		assert.Equal(t, 11, f.Epoch)
	})
}

func TestTrailerCodec_Deterministic(t *testing.T) {
	f := Fields{Epoch: 42, RootID: 0xBEEF, Tips: [2]int{0x123, 0x456}}
	a, err := Encode(f, testKey, testData)
	require.NoError(t, err)
	b, err := Encode(f, testKey, testData)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
	assert.Len(t, a.String(), 2*Size)
}

func TestTrailerCodec_RandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		f := Fields{
			Epoch:  rng.Intn(MaxEpoch + 1),
			RootID: rng.Intn(MaxRootID + 1),
			Tips:   [2]int{rng.Intn(MaxTipID + 1), rng.Intn(MaxTipID + 1)},
		}
		key := make([]byte, 16+rng.Intn(17))
		rng.Read(key)
		data := make([]byte, rng.Intn(256))
		rng.Read(data)

		trailer, err := Encode(f, key, data)
		require.NoError(t, err)
		got, err := Decode(trailer.Bytes(), key, data)
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
}

func TestTrailerCodec_ConcurrentUse(t *testing.T) {
	codec := NewTrailerCodec()
	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f := Fields{Epoch: (g + i) % 256, RootID: g * i, Tips: [2]int{g, i}}
				data := []byte{byte(g), byte(i)}
				trailer, err := codec.Encode(f, testKey, data)
				if err != nil {
					errs <- err
					return
				}
				if _, err := codec.Decode(trailer.Bytes(), testKey, data); err != nil {
					errs <- err
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
