package crawlers

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 在章节并发展开前,根据可用内存和CPU负载收紧并发数
type ResourceMonitor struct {
	config ResourceMonitorConfig

	memProbe func() (uint64, error)  // 可用内存(字节)
	cpuProbe func() (float64, error) // CPU使用率(%)

	// 1秒内复用上次采样
	cacheMu     sync.Mutex
	lastSample  time.Time
	lastAvail   uint64
	lastCPU     float64
	lastSampled bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	Enabled          bool  // 是否启用
	MinFreeMemory    int64 // 低于此值(字节)时进入紧急状态
	WorkerMemory     int64 // 单个章节工作者的估算内存(字节)
	CPULoadThreshold int   // CPU负载阈值(%),>=200 视为禁用
}

// MemoryPressure 内存压力等级
type MemoryPressure string

const (
	PressureNormal    MemoryPressure = "normal"
	PressureWarning   MemoryPressure = "warning"
	PressureCritical  MemoryPressure = "critical"
	PressureEmergency MemoryPressure = "emergency"
)

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		Enabled:          true,
		MinFreeMemory:    200 * 1024 * 1024,
		WorkerMemory:     8 * 1024 * 1024,
		CPULoadThreshold: 95,
	}
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.WorkerMemory <= 0 {
		config.WorkerMemory = 8 * 1024 * 1024
	}
	return &ResourceMonitor{
		config: config,
		memProbe: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Available, nil
		},
		cpuProbe: func() (float64, error) {
			percentages, err := cpu.Percent(100*time.Millisecond, false)
			if err != nil || len(percentages) == 0 {
				return 0, err
			}
			return percentages[0], nil
		},
	}
}

// sample 采样可用内存和CPU,1秒内复用缓存
func (rm *ResourceMonitor) sample() (avail uint64, cpuUsage float64, ok bool) {
	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()

	if rm.lastSampled && time.Since(rm.lastSample) < time.Second {
		return rm.lastAvail, rm.lastCPU, true
	}

	a, err := rm.memProbe()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,不限制并发")
		return 0, 0, false
	}
	c := 0.0
	if rm.config.CPULoadThreshold < 200 && rm.cpuProbe != nil {
		if v, err := rm.cpuProbe(); err == nil {
			c = v
		} else {
			log.Warn().Err(err).Msg("获取CPU使用率失败")
		}
	}

	rm.lastAvail, rm.lastCPU = a, c
	rm.lastSample = time.Now()
	rm.lastSampled = true
	return a, c, true
}

// Pressure 当前内存压力等级
func (rm *ResourceMonitor) Pressure() MemoryPressure {
	avail, _, ok := rm.sample()
	if !ok {
		return PressureNormal
	}
	return rm.pressureOf(avail)
}

func (rm *ResourceMonitor) pressureOf(avail uint64) MemoryPressure {
	floor := uint64(rm.config.MinFreeMemory)
	switch {
	case avail < floor:
		return PressureEmergency
	case avail < floor*3/2:
		return PressureCritical
	case avail < floor*5/2:
		return PressureWarning
	default:
		return PressureNormal
	}
}

// ClampWorkers 按资源状况收紧并发数,结果在 1..requested 之间
// 紧急状态降到1;严重不足减半;另受可用内存/单工作者内存约束;CPU超阈值再减半
func (rm *ResourceMonitor) ClampWorkers(requested int) int {
	if requested < 1 {
		requested = 1
	}
	if rm == nil || !rm.config.Enabled {
		return requested
	}
	avail, cpuUsage, ok := rm.sample()
	if !ok {
		return requested
	}

	n := requested
	switch rm.pressureOf(avail) {
	case PressureEmergency:
		log.Error().Msgf("可用内存严重不足(当前%dMB),章节并发降为1", avail/(1024*1024))
		return 1
	case PressureCritical:
		n = requested / 2
		log.Warn().Msgf("可用内存不足(当前%dMB),章节并发减半为%d", avail/(1024*1024), n)
	}

	if byMem := int((avail - uint64(rm.config.MinFreeMemory)) / uint64(rm.config.WorkerMemory)); byMem < n {
		n = byMem
	}
	if rm.config.CPULoadThreshold < 200 && cpuUsage > float64(rm.config.CPULoadThreshold) {
		n /= 2
		log.Warn().Msgf("CPU负载过高(当前%.1f%%),章节并发减半为%d", cpuUsage, n)
	}
	if n < 1 {
		n = 1
	}
	return n
}
