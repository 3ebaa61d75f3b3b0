package probe

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/computefleet/fleetd/pkg/models"
)

const (
	defaultMemoryGB = 8
	defaultDiskGB   = 128
)

// LocalNode builds the ComputeNode for the host the scheduler runs on.
// Exactly one local node exists per scheduler; it is created at
// initialization, starts online, and is never toggled offline by
// telemetry. Detection failures fall back to conservative defaults
// rather than erroring out.
func LocalNode() *models.ComputeNode {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "local"
	}

	caps := models.NodeCapabilities{
		CPUCores:    runtime.NumCPU(),
		CPUSpeedGHz: detectCPUSpeedGHz(),
		MemoryGB:    detectMemoryGB(),
		DiskGB:      detectDiskGB(),
		GPU:         detectGPU(),
	}

	now := time.Now()
	return &models.ComputeNode{
		ID:           uuid.New().String(),
		Name:         name,
		Kind:         models.NodeKindLocal,
		Status:       models.NodeStatusOnline,
		Capabilities: caps,
		LastSeen:     now,
		RegisteredAt: now,
	}
}

func detectCPUSpeedGHz() float64 {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 || infos[0].Mhz <= 0 {
		return 2.4
	}
	return infos[0].Mhz / 1000.0
}

func detectMemoryGB() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return defaultMemoryGB
	}
	return float64(vm.Total) / (1024 * 1024 * 1024)
}

func detectDiskGB() float64 {
	root := "/"
	if runtime.GOOS == "windows" {
		root = "C:"
	}
	usage, err := disk.Usage(root)
	if err != nil || usage.Total == 0 {
		return defaultDiskGB
	}
	return float64(usage.Total) / (1024 * 1024 * 1024)
}

// detectGPU probes for an NVIDIA GPU via nvidia-smi. No GPU means nil,
// which the matcher treats as "cannot satisfy gpu requirements".
func detectGPU() *models.GPUSpec {
	out, err := exec.Command("nvidia-smi",
		"--query-gpu=name,memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil || len(out) == 0 {
		return nil
	}

	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil
	}

	spec := &models.GPUSpec{Name: strings.TrimSpace(parts[0])}
	if memMB, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
		spec.MemoryGB = memMB / 1024
	}
	return spec
}
