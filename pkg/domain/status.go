package domain

import "time"

// DriverStatus is a point-in-time view of a driver.
type DriverStatus struct {
	Name       string      `json:"name"`
	Component  string      `json:"component"`
	State      DriverState `json:"state"`
	InstanceID string      `json:"instance_id,omitempty"`
	PID        int         `json:"pid,omitempty"`
	Generation int         `json:"generation"`
	Restarts   int         `json:"restarts"`
	Pending    int         `json:"pending"`
	StartedAt  time.Time   `json:"started_at,omitzero"`
	LastExit   string      `json:"last_exit,omitempty"`
	RSS        uint64      `json:"rss_bytes,omitempty"`
	CPUPercent float64     `json:"cpu_percent,omitempty"`
}
