package entity

// ConnectionState describes the stream connector's view of the feed link.
// It is owned by the connector and read-only everywhere else.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
)
