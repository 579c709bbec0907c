package core

import "time"

// Endpoint is a managed host that inventory and log records belong to.
// The engine only reads it to label results.
type Endpoint struct {
	ID       string    `json:"id"`
	OrgID    string    `json:"org_id"`
	Hostname string    `json:"hostname"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}
