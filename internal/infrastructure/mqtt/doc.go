// Package mqtt provides the broker client used by the ZapTap link core.
//
// Two flows ride on it: tag reader bridges publish scanned payload strings
// to zaptap/tag/scan/<reader>, which feed the dispatcher, and the native
// engine adapter publishes step commands to zaptap/engine/command/<kind>.
// The client wraps paho.mqtt.golang with reconnect handling, subscription
// restoration, Last Will and Testament status, and panic-safe handlers.
package mqtt
