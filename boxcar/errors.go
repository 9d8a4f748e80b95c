package boxcar

import (
	"errors"
	"fmt"
)

type Capability string

const (
	CapabilityServiceWorker Capability = "serviceWorker"
	CapabilityNotifications Capability = "showNotification"
	CapabilityPushManager   Capability = "PushManager"
)

// UnsupportedBrowserError reports a missing browser capability.
type UnsupportedBrowserError struct {
	Capability Capability
}

func (e *UnsupportedBrowserError) Error() string {
	switch e.Capability {
	case CapabilityServiceWorker:
		return "service workers are not supported on this browser"
	case CapabilityNotifications:
		return "notifications aren't supported"
	case CapabilityPushManager:
		return "push messaging isn't supported"
	}
	return fmt.Sprintf("%s isn't supported", e.Capability)
}

// ServiceWorkerError reports that the configured script could not be registered.
type ServiceWorkerError struct {
	Script string
	Err    error
}

func (e *ServiceWorkerError) Error() string {
	return fmt.Sprintf("service worker %q registration failed: %v", e.Script, e.Err)
}

func (e *ServiceWorkerError) Unwrap() error {
	return e.Err
}

// PermissionDeniedError is permanent until the user changes the permission.
type PermissionDeniedError struct{}

func (e *PermissionDeniedError) Error() string {
	return "permission for notifications was denied"
}

// SubscriptionError reports a push subscribe failure unrelated to permission.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("unable to subscribe to push: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

type NotRegisteredError struct{}

func (e *NotRegisteredError) Error() string {
	return "not registered"
}

type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// HTTPStatusError represents a non-2xx response from the push service.
type HTTPStatusError struct {
	Status     int
	StatusText string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.StatusText)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPStatusError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.Status == code
	}
	return false
}

func IsNotRegistered(err error) bool {
	var notRegistered *NotRegisteredError
	return errors.As(err, &notRegistered)
}

func IsPermissionDenied(err error) bool {
	var denied *PermissionDeniedError
	return errors.As(err, &denied)
}
