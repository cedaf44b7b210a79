package client

import "time"

// Device is one gateway pairing entry.
type Device struct {
	RequestID string `json:"requestId"`
}

// DeviceList is the gateway's pairing state.
type DeviceList struct {
	Pending []Device `json:"pending"`
	Paired  []Device `json:"paired"`
}

// ApproveRequest selects pairing requests to approve; empty approves all
// pending.
type ApproveRequest struct {
	IDs []string `json:"ids,omitempty"`
}

// ApproveResult reports a batch approval.
type ApproveResult struct {
	Approved []string `json:"approved"`
	Failed   []string `json:"failed,omitempty"`
}

// StorageStatus reports credential presence and the last successful sync.
type StorageStatus struct {
	Configured bool       `json:"configured"`
	Missing    []string   `json:"missing,omitempty"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
}

// SyncStatus is the outcome of a sync trigger.
type SyncStatus struct {
	Success   bool      `json:"success"`
	Files     int       `json:"files,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Reason    string    `json:"reason,omitempty"`
}

// RestartStatus reports a gateway restart.
type RestartStatus struct {
	PreviousID string `json:"previous_id,omitempty"`
}

// CleanupResult reports an orphan cleanup.
type CleanupResult struct {
	Killed int `json:"killed"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
