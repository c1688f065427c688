// Package tagio abstracts physical tag I/O: the Tag read/write
// interface, an in-memory tag, and the MQTT bridge that turns reader
// scan events into dispatcher submissions and write requests into
// reader commands.
package tagio
