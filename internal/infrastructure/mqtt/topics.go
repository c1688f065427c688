package mqtt

import "fmt"

// Topic prefixes for the ZapTap MQTT namespace.
//
// The link core subscribes to tag scan events published by reader bridges
// and publishes engine step commands for handler services. All topics live
// under the zaptap/ root.
const (
	// TopicPrefixRoot is the base for all ZapTap topics.
	TopicPrefixRoot = "zaptap"

	// TopicPrefixTag is the base for tag reader bridge topics.
	TopicPrefixTag = "zaptap/tag"

	// TopicPrefixEngine is the base for native engine topics.
	TopicPrefixEngine = "zaptap/engine"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "zaptap/system"
)

// Topics provides builders for ZapTap MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	scan := topics.TagScan("reader-hall")
//	// Returns: "zaptap/tag/scan/reader-hall"
type Topics struct{}

// TagScan returns the topic a reader bridge publishes scanned payloads to.
//
// Example: zaptap/tag/scan/reader-hall
func (Topics) TagScan(readerID string) string {
	return fmt.Sprintf("%s/scan/%s", TopicPrefixTag, readerID)
}

// AllTagScans returns the wildcard subscription matching every reader.
//
// Example: zaptap/tag/scan/+
func (Topics) AllTagScans() string {
	return TopicPrefixTag + "/scan/+"
}

// TagWrite returns the topic for asking a reader bridge to write a payload.
//
// Example: zaptap/tag/write/reader-hall
func (Topics) TagWrite(readerID string) string {
	return fmt.Sprintf("%s/write/%s", TopicPrefixTag, readerID)
}

// AllTagWriteResults returns the wildcard subscription matching write
// outcomes from every reader. Readers publish per-reader, e.g.
// zaptap/tag/write-result/reader-hall.
func (Topics) AllTagWriteResults() string {
	return TopicPrefixTag + "/write-result/+"
}

// EngineCommand returns the topic for a native engine step command.
//
// Example: zaptap/engine/command/notification
func (Topics) EngineCommand(kind string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixEngine, kind)
}

// EngineResult returns the topic execution results are published to.
//
// Example: zaptap/engine/result/5e2c...
func (Topics) EngineResult(executionID string) string {
	return fmt.Sprintf("%s/result/%s", TopicPrefixEngine, executionID)
}

// SystemStatus returns the link core status topic (also used for LWT).
//
// Example: zaptap/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
