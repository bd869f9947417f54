package runtime

import (
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/queue"
)

// Channels is a driver's channel pair. It outlives every worker instance,
// so commands queued while a worker is down reach the next one.
type Channels struct {
	// Outbound carries commands from the owner to the worker.
	Outbound *queue.Queue[domain.Command]
	// Inbound carries responses from the worker to the owner.
	Inbound *queue.Queue[domain.Response]
}

// NewChannels creates an empty channel pair.
func NewChannels() *Channels {
	return &Channels{
		Outbound: queue.New[domain.Command](),
		Inbound:  queue.New[domain.Response](),
	}
}

// Close closes both directions.
func (c *Channels) Close() {
	c.Outbound.Close()
	c.Inbound.Close()
}
