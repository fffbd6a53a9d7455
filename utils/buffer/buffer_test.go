package buffer

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {

	t.Run("WriteRead", func(t *testing.T) {
		b := NewBufferSize(64)

		_, err := WriteUint64(b, 0xdeadbeef)
		require.NoError(t, err)
		_, err = WriteInt(b, -42)
		require.NoError(t, err)
		_, err = WriteFloat64(b, 3.5)
		require.NoError(t, err)
		_, err = WriteUint64Slice(b, []uint64{1, 2, 3})
		require.NoError(t, err)

		require.Equal(t, 6*8, len(b.Bytes()))

		r := NewBuffer(b.Bytes())

		var u uint64
		_, err = ReadUint64(r, &u)
		require.NoError(t, err)
		require.Equal(t, uint64(0xdeadbeef), u)

		var i int
		_, err = ReadInt(r, &i)
		require.NoError(t, err)
		require.Equal(t, -42, i)

		var f float64
		_, err = ReadFloat64(r, &f)
		require.NoError(t, err)
		require.Equal(t, 3.5, f)

		s := make([]uint64, 3)
		_, err = ReadUint64Slice(r, s)
		require.NoError(t, err)
		require.Equal(t, []uint64{1, 2, 3}, s)
	})

	t.Run("FixedSize", func(t *testing.T) {
		b := NewBufferSize(8)
		_, err := WriteUint64(b, 1)
		require.NoError(t, err)
		_, err = WriteUint8(b, 1)
		require.Error(t, err)
	})

	t.Run("ReadPastEnd", func(t *testing.T) {
		b := NewBufferSize(4)
		var u uint64
		_, err := ReadUint64(b, &u)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("PeekDiscard", func(t *testing.T) {
		b := NewBuffer([]byte{1, 2, 3, 4})

		p, err := b.Peek(2)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2}, p)

		n, err := b.Discard(3)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		p, err = b.Peek(2)
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, []byte{4}, p)
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBufferSize(8)
		_, err := WriteUint64(b, 7)
		require.NoError(t, err)
		b.Reset()
		require.Equal(t, 8, b.Available())
	})
}
