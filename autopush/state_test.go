package autopush

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "autopush.json")

	fresh, err := LoadState(path)
	require.NoError(t, err)
	assert.Empty(t, fresh.UAID)
	assert.Len(t, fresh.Keys.AuthSecret, AUTH_SECRET_LEN)
	require.NotNil(t, fresh.Keys.PrivateKey)

	fresh.UAID = "uaid-1"
	fresh.ChannelID = "chan-1"
	fresh.Endpoint = "https://push.example/tok"
	require.NoError(t, SaveState(path, fresh))

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, "uaid-1", loaded.UAID)
	assert.Equal(t, "chan-1", loaded.ChannelID)
	assert.Equal(t, "https://push.example/tok", loaded.Endpoint)
	assert.Equal(t, fresh.Keys.AuthSecret, loaded.Keys.AuthSecret)
	assert.True(t, fresh.Keys.PrivateKey.Equal(loaded.Keys.PrivateKey))
}

func TestState_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := map[string]string{
		"not json":     `{`,
		"short secret": `{"uaid":"u","auth_secret":"AAAA","private_key":"AAAA"}`,
		"bad key":      `{"uaid":"u","auth_secret":"AAAAAAAAAAAAAAAAAAAAAA","private_key":"AAAA"}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))

			_, err := LoadState(path)
			assert.Error(t, err)
		})
	}
}
