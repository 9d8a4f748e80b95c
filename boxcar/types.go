package boxcar

import "time"

const (
	DEFAULT_TTL = 30 * time.Second

	MODE_PRODUCTION = "production"
	STATE_ACTIVE    = "active"
)

// ExpiresAt is the unix second at which a payload built at now goes stale.
func ExpiresAt(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		ttl = DEFAULT_TTL
	}
	return now.Add(ttl).Unix()
}

// Device describes what is sent along with a device token.
type Device struct {
	Username     string
	DeviceName   string
	UDID         string
	Tags         []string
	AppVersion   string
	OSVersion    string
	SenderIDHash string
}

// Body of PUT /api/device_tokens/{token}
type RegistrationPayload struct {
	Alias      string   `json:"alias,omitempty"`
	Name       string   `json:"name,omitempty"`
	UDID       string   `json:"udid,omitempty"`
	AppVersion string   `json:"app_version,omitempty"`
	OSVersion  string   `json:"os_version,omitempty"`
	SID        string   `json:"sid,omitempty"`
	Tags       []string `json:"tags"`
	Push       bool     `json:"push"`
	Mode       string   `json:"mode"`
	Expires    int64    `json:"expires"`
}

func NewRegistrationPayload(device Device, ttl time.Duration, now time.Time) *RegistrationPayload {
	tags := make([]string, len(device.Tags))
	copy(tags, device.Tags)

	return &RegistrationPayload{
		Alias:      device.Username,
		Name:       device.DeviceName,
		UDID:       device.UDID,
		AppVersion: device.AppVersion,
		OSVersion:  device.OSVersion,
		SID:        device.SenderIDHash,
		Tags:       tags,
		Push:       true,
		Mode:       MODE_PRODUCTION,
		Expires:    ExpiresAt(now, ttl),
	}
}

// Body of POST /api/receive/{token}
type NotificationTrackPayload struct {
	NotificationID string `json:"notificationId"`
	State          string `json:"state"`
	Expires        int64  `json:"expires"`
}

func NewNotificationTrackPayload(notificationID string, ttl time.Duration, now time.Time) (*NotificationTrackPayload, error) {
	if notificationID == "" {
		return nil, &InvalidArgumentError{Field: "notificationId", Reason: "must not be empty"}
	}
	return &NotificationTrackPayload{
		NotificationID: notificationID,
		State:          STATE_ACTIVE,
		Expires:        ExpiresAt(now, ttl),
	}, nil
}

// Body of GET /api/tags
type TagsResponse struct {
	OK []string `json:"ok"`
}
