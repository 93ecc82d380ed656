package logpulse

// Timestamped is the constraint every entry placed in a Cache must satisfy:
// a stable UTC Epoch millis timestamp, cheap to copy. It is the Go analogue
// of the Java source's WithUTCTimestamp<T> interface.
type Timestamped interface {
	UTCTimestamp() int64
}
