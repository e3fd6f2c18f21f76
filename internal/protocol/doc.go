// Package protocol defines the JSON wire surface of the bridge: the
// {event, payload} envelope carried over the realtime channel, the
// snapshot and partial-update payload shapes, and the decimal-string
// codec for microsecond time values.
package protocol
