package process

import (
	"fmt"
	"time"

	"github.com/aretw0/warden/pkg/ports"
	psutil "github.com/shirou/gopsutil/v3/process"
)

var _ ports.StatsProvider = (*process)(nil)

// Stats samples the worker's resident memory and CPU usage.
func (p *process) Stats() (ports.ProcessStats, error) {
	if !p.Alive() {
		return ports.ProcessStats{}, fmt.Errorf("worker %d has exited", p.PID())
	}
	proc, err := psutil.NewProcess(int32(p.PID()))
	if err != nil {
		return ports.ProcessStats{}, fmt.Errorf("inspect worker %d: %w", p.PID(), err)
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return ports.ProcessStats{}, fmt.Errorf("memory of worker %d: %w", p.PID(), err)
	}
	cpu, err := proc.CPUPercent()
	if err != nil {
		return ports.ProcessStats{}, fmt.Errorf("cpu of worker %d: %w", p.PID(), err)
	}

	return ports.ProcessStats{
		RSS:        mem.RSS,
		CPUPercent: cpu,
		SampledAt:  time.Now(),
	}, nil
}
