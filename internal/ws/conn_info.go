package ws

import "time"

type ConnInfo struct {
	ConnID      string
	Kind        string
	UserID      int
	Username    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
