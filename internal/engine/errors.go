package engine

import "errors"

// ErrBrokerUnavailable indicates the engine has no MQTT broker to
// command executor bridges through. Runs fail immediately with zero
// steps completed.
var ErrBrokerUnavailable = errors.New("engine: broker unavailable")
