package autopush

import (
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// State is what an Agent needs to resume its subscription after a restart.
type State struct {
	UAID      string
	ChannelID string
	Endpoint  string
	Keys      Keys
}

type serializedState struct {
	UAID       string `json:"uaid"`
	ChannelID  string `json:"channel_id,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	AuthSecret string `json:"auth_secret"`
	PrivateKey string `json:"private_key"`
}

// LoadState reads the state at path. A missing file yields a fresh state
// with newly generated keys.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		keys, err := NewKeys()
		if err != nil {
			return nil, err
		}
		return &State{Keys: keys}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("autopush: read state: %w", err)
	}

	var serialized serializedState
	if err := json.Unmarshal(data, &serialized); err != nil {
		return nil, fmt.Errorf("autopush: decode state: %w", err)
	}

	authSecret, err := base64.RawURLEncoding.DecodeString(serialized.AuthSecret)
	if err != nil || len(authSecret) != AUTH_SECRET_LEN {
		return nil, fmt.Errorf("autopush: invalid auth secret in %s", path)
	}

	b, err := base64.RawURLEncoding.DecodeString(serialized.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("autopush: invalid private key in %s: %w", path, err)
	}
	privateKey, err := ecdh.P256().NewPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("autopush: invalid private key in %s: %w", path, err)
	}

	return &State{
		UAID:      serialized.UAID,
		ChannelID: serialized.ChannelID,
		Endpoint:  serialized.Endpoint,
		Keys:      Keys{AuthSecret: authSecret, PrivateKey: privateKey},
	}, nil
}

func SaveState(path string, state *State) error {
	serialized := &serializedState{
		UAID:       state.UAID,
		ChannelID:  state.ChannelID,
		Endpoint:   state.Endpoint,
		AuthSecret: base64.RawURLEncoding.EncodeToString(state.Keys.AuthSecret),
		PrivateKey: base64.RawURLEncoding.EncodeToString(state.Keys.PrivateKey.Bytes()),
	}

	data, err := json.MarshalIndent(serialized, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("autopush: create state dir: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
