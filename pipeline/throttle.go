// gen3dapi/pipeline/throttle.go
package pipeline

import (
	"fmt"
	"log"
	"time"

	"gen3dapi/config"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// checkResources verifies the host has headroom before a pipeline
// starts. Reconstruction tools are memory- and disk-hungry; refusing
// admission beats letting the OOM killer pick a victim mid-train.
func checkResources(cfg *config.Config) error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Printf("Warning: could not get CPU usage: %v", err)
	} else if len(p) > 0 && p[0] > (100.0-cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Warning: could not get memory usage: %v", err)
	} else if vm.Available < uint64(cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory. Available: %d, Required: %d", vm.Available, cfg.ThrottleFreeMem)
	}

	d, err := disk.Usage(cfg.DataDir)
	if err != nil {
		log.Printf("Warning: could not get disk usage for %s: %v", cfg.DataDir, err)
	} else if d.Free < uint64(cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, cfg.ThrottleFreeDisk)
	}
	return nil
}
