package boxcar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiresAt(t *testing.T) {
	now := time.Unix(1700000000, 999*int64(time.Millisecond))
	assert.Equal(t, int64(1700000030), ExpiresAt(now, 30*time.Second))
	assert.Equal(t, int64(1700000030), ExpiresAt(now, 0))
	assert.Equal(t, int64(1700000060), ExpiresAt(now, time.Minute))
}

func TestExpiresAt_WallClock(t *testing.T) {
	before := time.Now().UnixMilli()
	p := NewRegistrationPayload(Device{}, DEFAULT_TTL, time.Now())
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, p.Expires, (before+30000)/1000)
	assert.LessOrEqual(t, p.Expires, (after+30000)/1000)
}

func TestNewRegistrationPayload(t *testing.T) {
	tags := []string{"news"}
	p := NewRegistrationPayload(Device{
		Username:     "alice",
		DeviceName:   "Chrome 120",
		Tags:         tags,
		AppVersion:   "0.0.1",
		OSVersion:    "Linux",
		SenderIDHash: "abc",
	}, 0, testNow)
	tags[0] = "changed"

	data, err := marshalBody(p)
	require.NoError(t, err)
	assert.Equal(t,
		`{"alias":"alice","name":"Chrome 120","app_version":"0.0.1","os_version":"Linux","sid":"abc","tags":["news"],"push":true,"mode":"production","expires":1700000030}`,
		string(data))
}

func TestNewRegistrationPayload_OmitsEmpty(t *testing.T) {
	data, err := json.Marshal(NewRegistrationPayload(Device{}, DEFAULT_TTL, testNow))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":[],"push":true,"mode":"production","expires":1700000030}`, string(data))
}

func TestNewNotificationTrackPayload(t *testing.T) {
	p, err := NewNotificationTrackPayload("n-1", 10*time.Second, testNow)
	require.NoError(t, err)
	assert.Equal(t, &NotificationTrackPayload{NotificationID: "n-1", State: STATE_ACTIVE, Expires: 1700000010}, p)

	_, err = NewNotificationTrackPayload("", DEFAULT_TTL, testNow)
	var invalid *InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
}
