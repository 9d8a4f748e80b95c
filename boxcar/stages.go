package boxcar

import "fmt"

type Operation string

const (
	OpCheckSupported Operation = "check-supported"
	OpRegister       Operation = "register"
	OpUnregister     Operation = "unregister"
	OpPing           Operation = "ping"
	OpTrack          Operation = "track"
	OpTags           Operation = "tags"
)

// Stage names one step of an operation. Every step either passes control to
// the next or ends the operation with its error.
type Stage string

const (
	StageServiceWorkerCapability Stage = "service-worker-capability"
	StageRegisterServiceWorker   Stage = "register-service-worker"
	StageNotificationCapability  Stage = "notification-capability"
	StagePermission              Stage = "permission"
	StagePushCapability          Stage = "push-capability"
	StageBuildPayload            Stage = "build-payload"
	StageReadSubscription        Stage = "read-subscription"
	StageSubscribe               Stage = "subscribe"
	StageDeviceToken             Stage = "device-token"
	StageAlreadyRegistered       Stage = "already-registered"
	StageNotRegisteredSkip       Stage = "not-registered-skip"
	StageUnsubscribe             Stage = "unsubscribe"
	StagePersist                 Stage = "persist"
	StageRemoteRegister          Stage = "remote-register"
	StageRemoteUnregister        Stage = "remote-unregister"
	StageRemotePing              Stage = "remote-ping"
	StageRemoteTrack             Stage = "remote-track"
	StageRemoteTags              Stage = "remote-tags"
	StageDecode                  Stage = "decode"
)

// StageObserver is told about every finished stage; err is nil when the
// stage passed. A failed StageUnsubscribe does not end an unregister.
type StageObserver func(op Operation, stage Stage, err error)

// StageError carries the stage that ended an operation. The cause is
// available through errors.As / errors.Is.
type StageError struct {
	Op    Operation
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("boxcar %s: %s: %v", e.Op, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
