package crawlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const mb = 1024 * 1024

func fakeMonitor(avail uint64, cpuUsage float64) *ResourceMonitor {
	rm := NewResourceMonitor(DefaultResourceMonitorConfig())
	rm.memProbe = func() (uint64, error) { return avail, nil }
	rm.cpuProbe = func() (float64, error) { return cpuUsage, nil }
	return rm
}

func TestResourceMonitor_ClampWorkers(t *testing.T) {
	tests := []struct {
		name      string
		avail     uint64
		cpu       float64
		requested int
		want      int
	}{
		{"资源充足", 4096 * mb, 10, 24, 24},
		{"紧急状态降为1", 100 * mb, 10, 24, 1},
		{"严重不足减半", 250 * mb, 10, 24, 6},
		{"受单工作者内存约束", 264 * mb, 10, 24, 8},
		{"CPU过载减半", 4096 * mb, 99, 24, 12},
		{"至少为1", 4096 * mb, 99, 1, 1},
		{"非法请求数按1处理", 4096 * mb, 10, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := fakeMonitor(tt.avail, tt.cpu)
			assert.Equal(t, tt.want, rm.ClampWorkers(tt.requested))
		})
	}
}

func TestResourceMonitor_DisabledOrUnavailable(t *testing.T) {
	var nilMonitor *ResourceMonitor
	assert.Equal(t, 16, nilMonitor.ClampWorkers(16))

	cfg := DefaultResourceMonitorConfig()
	cfg.Enabled = false
	disabled := NewResourceMonitor(cfg)
	disabled.memProbe = func() (uint64, error) { return 1, nil }
	assert.Equal(t, 16, disabled.ClampWorkers(16))

	broken := fakeMonitor(0, 0)
	broken.memProbe = func() (uint64, error) { return 0, errors.New("no /proc") }
	assert.Equal(t, 16, broken.ClampWorkers(16))
	assert.Equal(t, PressureNormal, broken.Pressure())
}

func TestResourceMonitor_Pressure(t *testing.T) {
	assert.Equal(t, PressureEmergency, fakeMonitor(100*mb, 0).Pressure())
	assert.Equal(t, PressureCritical, fakeMonitor(250*mb, 0).Pressure())
	assert.Equal(t, PressureWarning, fakeMonitor(450*mb, 0).Pressure())
	assert.Equal(t, PressureNormal, fakeMonitor(600*mb, 0).Pressure())
}
