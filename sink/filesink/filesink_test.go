package filesink

import (
	"os"
	"testing"

	"dhtcrawler/krpc"

	"github.com/stretchr/testify/require"
)

func TestSaveThenExists(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	require.NoError(t, err)

	ih := krpc.RandomID()
	ok, err := fs.Exists(ih)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, fs.Save(ih, []byte("d4:name4:demoe")))

	ok, err = fs.Exists(ih)
	require.NoError(t, err)
	require.True(t, ok)

	raw, err := os.ReadFile(fs.pathFor(ih))
	require.NoError(t, err)
	require.Equal(t, "d4:name4:demoe", string(raw))
}
