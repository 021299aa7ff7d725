package blob

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConcatenatesInOrder(t *testing.T) {
	b := New([][]byte{[]byte("A"), []byte("BB"), nil, []byte("C")}, "audio/webm")

	assert.Equal(t, []byte("ABBC"), b.Bytes())
	assert.Equal(t, 4, b.Size())
	assert.Equal(t, "audio/webm", b.Type)
}

func TestBytesReturnsCopy(t *testing.T) {
	b := New([][]byte{[]byte("abc")}, "audio/wav")
	out := b.Bytes()
	out[0] = 'z'
	assert.Equal(t, []byte("abc"), b.Bytes())
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	b := New([][]byte{[]byte("payload")}, "audio/ogg")

	url := s.CreateObjectURL(b)
	require.True(t, strings.HasPrefix(url, URLPrefix))
	_, err := uuid.Parse(ID(url))
	require.NoError(t, err)

	got, ok := s.Resolve(url)
	require.True(t, ok)
	assert.Same(t, b, got)

	got, ok = s.Resolve(ID(url))
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 1, s.Len())

	s.RevokeObjectURL(url)
	_, ok = s.Resolve(url)
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	s.RevokeObjectURL(url)
}

func TestHandlesAreUnique(t *testing.T) {
	s := NewStore()
	b := New(nil, "audio/wav")
	assert.NotEqual(t, s.CreateObjectURL(b), s.CreateObjectURL(b))
	assert.Equal(t, 2, s.Len())
}

func TestWriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := New([][]byte{[]byte("xy")}, "audio/wav").WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, "xy", buf.String())
}
