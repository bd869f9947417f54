package domain

// Signal is a named event published on the process-wide bus.
// ComponentID addresses a driver by name; Data carries "COMMAND|params".
type Signal struct {
	Sender      string `json:"sender,omitempty"`
	ComponentID string `json:"component_id"`
	Data        string `json:"data"`
}
