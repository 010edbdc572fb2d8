package wgpuhal

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g. a gogpu.App) owns the device and surface; this package
// receives them and never creates its own. DeviceHandle is an alias for
// gpucontext.DeviceProvider so any provider in the gpucontext ecosystem
// plugs in directly.
type DeviceHandle = gpucontext.DeviceProvider

// FromDeviceHandle creates a Device from a gpucontext device provider,
// adopting the host's surface format as the pipeline's render target.
// Explicit options override what the handle reports.
//
// The provider must also expose the shared HAL types via HalDevice() any
// and HalQueue() any, as gogpu's context does.
func FromDeviceHandle(h DeviceHandle, opts ...Option) (*Device, error) {
	if h == nil || h.Device() == nil || h.Queue() == nil {
		return nil, ErrNilDevice
	}
	if format := h.SurfaceFormat(); format != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithTargetFormat(format)}, opts...)
	}
	return FromProvider(h, opts...)
}
