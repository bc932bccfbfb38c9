package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	for _, plaintext := range [][]byte{
		[]byte("hello"),
		{},
		[]byte(`{"cookies":{"JSESSIONID":"abc123"},"headers":{}}`),
		{0x00, 0xff, 0x80, 0x7f},
	} {
		blob, err := Seal(plaintext, key)
		require.NoError(t, err)

		out, err := Open(blob, key)
		require.NoError(t, err)
		require.Equal(t, plaintext, out)
	}
}

func TestNonceIsFresh(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	a, err := Seal([]byte("same input"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same input"), key)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestWrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	blob, err := Seal([]byte("secret"), key)
	require.NoError(t, err)

	out, err := Open(blob, other)
	require.ErrorIs(t, err, ErrIntegrity)
	require.Nil(t, out)
}

func TestTamperedBlob(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	blob, err := Seal([]byte("secret"), key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = Open(tampered, key)
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestGarbageBlob(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = Open("not base64 at all!!", key)
	require.ErrorIs(t, err, ErrIntegrity)

	_, err = Open("aGk=", key)
	require.ErrorIs(t, err, ErrIntegrity)
}
