package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferGetters(t *testing.T) {
	buf := NewBytePacketBuffer()
	data := []byte{1, 2, 3, 4, 5}
	buf.Load(data)

	require.Equal(t, 0, buf.Position())

	val, err := buf.Get(2)
	require.NoError(t, err)
	require.Equal(t, byte(3), val)

	rangeData, err := buf.GetRange(1, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4}, rangeData)

	_, err = buf.Get(100)
	require.Error(t, err)
}

func TestReadWriteIntegers(t *testing.T) {
	buf := NewBytePacketBuffer()
	require.NoError(t, buf.Write(0xAB))
	require.NoError(t, buf.Writeu16(0x1234))
	require.NoError(t, buf.Writeu32(0xDEADBEEF))

	buf.Seek(0)
	b, err := buf.Read()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), b)

	u16, err := buf.Readu16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := buf.Readu32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)
}

// S2: writing "baidu.com" yields 05 62 61 69 64 75 03 63 6f 6d 00 (11 octets).
func TestWriteNameVector(t *testing.T) {
	buf := NewBytePacketBuffer()
	require.NoError(t, buf.WriteName("baidu.com"))

	want := []byte{0x05, 'b', 'a', 'i', 'd', 'u', 0x03, 'c', 'o', 'm', 0x00}
	require.Equal(t, want, buf.Buf[:buf.Position()])
	require.Equal(t, len(want), NameLen("baidu.com"))
}

// Property 3: name codec round-trips with no compression, labels <= 63 octets.
func TestReadNameRoundTrip(t *testing.T) {
	names := []string{
		"example.com",
		"a.b.c.example.org",
		"single",
		".",
		"www.baidu.com",
	}
	for _, name := range names {
		buf := NewBytePacketBuffer()
		require.NoError(t, buf.WriteName(name))
		buf.Seek(0)
		got, err := buf.ReadName()
		require.NoError(t, err)

		want := name
		if want == "." {
			want = ""
		}
		require.Equal(t, want, got)
	}
}

func TestReadNameLowercases(t *testing.T) {
	buf := NewBytePacketBuffer()
	require.NoError(t, buf.WriteName("Example.COM"))
	buf.Seek(0)
	got, err := buf.ReadName()
	require.NoError(t, err)
	require.Equal(t, "example.com", got)
}

// S1 / property 4: a pointer at offset 0x0C ("baidu.com" compressed) decodes
// the same name at every position that points to it.
func TestReadNameCompressionPointer(t *testing.T) {
	buf := NewBytePacketBuffer()
	// Header-sized filler up to offset 0x0C (12 bytes), then the name.
	for i := 0; i < 12; i++ {
		require.NoError(t, buf.Write(0))
	}
	require.Equal(t, 12, buf.Position())
	require.NoError(t, buf.WriteName("baidu.com")) // occupies 12..22

	// Three separate pointers to offset 0x0C.
	ptr1 := buf.Position()
	require.NoError(t, buf.Writeu16(0xC00C))
	ptr2 := buf.Position()
	require.NoError(t, buf.Writeu16(0xC00C))
	ptr3 := buf.Position()
	require.NoError(t, buf.Writeu16(0xC00C))

	for _, pos := range []int{12, ptr1, ptr2, ptr3} {
		buf.Seek(pos)
		name, err := buf.ReadName()
		require.NoError(t, err)
		require.Equal(t, "baidu.com", name)
	}
}

// After following a pointer, the cursor must resume right after the
// pointer's two octets, not inside the jumped-to region.
func TestReadNameSeeksBackAfterJump(t *testing.T) {
	buf := NewBytePacketBuffer()
	require.NoError(t, buf.WriteName("baidu.com")) // offset 0..10
	ptrPos := buf.Position()
	require.NoError(t, buf.Writeu16(0xC000))
	require.NoError(t, buf.Write(0x42)) // sentinel byte after the pointer

	buf.Seek(ptrPos)
	name, err := buf.ReadName()
	require.NoError(t, err)
	require.Equal(t, "baidu.com", name)
	require.Equal(t, ptrPos+2, buf.Position())

	next, err := buf.Read()
	require.NoError(t, err)
	require.Equal(t, byte(0x42), next)
}

// Property 5: a label pointing to itself must fail with ErrNameLoop quickly.
func TestReadNameSelfPointerFails(t *testing.T) {
	buf := NewBytePacketBuffer()
	require.NoError(t, buf.Writeu16(0xC000)) // points at offset 0, i.e. itself
	buf.Seek(0)
	_, err := buf.ReadName()
	require.ErrorIs(t, err, ErrNameLoop)
}

func TestReadTruncated(t *testing.T) {
	buf := &BytePacketBuffer{Buf: make([]byte, 1)}
	_, err := buf.Readu16()
	require.ErrorIs(t, err, ErrTruncated)
}
