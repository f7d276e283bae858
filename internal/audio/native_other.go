//go:build !linux

package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"smartnotes/internal/ports"
)

type malgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func openNativeDevice(cfg ports.AudioConfig, deliver func([]byte)) (nativeDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	if cfg.InputDevice != "" && cfg.InputDevice != "default" {
		devices, err := ctx.Devices(malgo.Capture)
		if err != nil {
			freeContext(ctx)
			return nil, fmt.Errorf("malgo devices: %w", err)
		}
		found := false
		for _, d := range devices {
			if d.Name() == cfg.InputDevice {
				deviceConfig.Capture.DeviceID = d.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			freeContext(ctx)
			return nil, fmt.Errorf("input device %q not found", cfg.InputDevice)
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			deliver(input)
		},
	}
	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(ctx)
		return nil, fmt.Errorf("malgo device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		freeContext(ctx)
		return nil, fmt.Errorf("malgo start: %w", err)
	}
	return &malgoDevice{ctx: ctx, device: dev}, nil
}

func (d *malgoDevice) stop() {
	_ = d.device.Stop()
	d.device.Uninit()
	freeContext(d.ctx)
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}
