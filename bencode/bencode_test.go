package bencode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []Value{
		Int(0),
		Int(-42),
		Bytes([]byte("spam")),
		List(Int(1), Bytes([]byte("a"))),
		NewDict(map[string]Value{
			"id":   Bytes(make([]byte, 20)),
			"port": Int(6881),
		}),
	}
	for _, v := range cases {
		enc := Marshal(v)
		got, err := Unmarshal(enc)
		require.NoError(t, err)
		require.Equal(t, Marshal(v), Marshal(got))
	}
}

func TestDecodeMinimalIntegers(t *testing.T) {
	bad := []string{"i01e", "i-0e", "ie", "i-e"}
	for _, b := range bad {
		_, err := Unmarshal([]byte(b))
		if err == nil {
			t.Fatalf("Unmarshal(%q) expected error, got nil", b)
		}
	}
}

func TestDecodeRejectsDuplicateKeys(t *testing.T) {
	_, err := Unmarshal([]byte("d1:ai1e1:ai2ee"))
	require.Error(t, err)
}

func TestDecodeRejectsOutOfOrderKeys(t *testing.T) {
	_, err := Unmarshal([]byte("d1:bi1e1:ai2ee"))
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Unmarshal([]byte("4:sp"))
	require.Error(t, err)
}

func TestDictEmitsKeysSorted(t *testing.T) {
	v := NewDict(map[string]Value{
		"z": Int(1),
		"a": Int(2),
	})
	require.Equal(t, "d1:ai2e1:zi1ee", string(Marshal(v)))
}
