/**
 * Capture Provider Adapter.
 *
 * Wires the concrete Engine into the providers.CaptureProvider contract, so
 * the daemon core depends only on the narrow interface and never imports
 * gopacket/pcap directly.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package capture

import (
	"context"
	"time"

	"github.com/google/gopacket/pcap"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/providers"
)

// Provider implements providers.CaptureProvider on top of a pcap Engine.
type Provider struct{}

// NewProvider constructs a Provider.
func NewProvider() *Provider { return &Provider{} }

func (p *Provider) ListDevices(ctx context.Context) ([]string, error) {
	return DeviceNames()
}

// CompileFilter validates a BPF filter expression against device without
// starting a capture session, so the daemon can reject a bad filter before
// ReqStartCapture commits to one.
func (p *Provider) CompileFilter(ctx context.Context, device, filter string) error {
	if filter == "" {
		return nil
	}
	handle, err := pcap.OpenLive(device, 262144, false, 100*time.Millisecond)
	if err != nil {
		return errs.Wrap(errs.Capture, "capture.CompileFilter", "failed to open device for filter validation", err)
	}
	defer handle.Close()
	if err := handle.SetBPFFilter(filter); err != nil {
		return errs.Wrap(errs.Capture, "capture.CompileFilter", "invalid BPF filter expression", err)
	}
	return nil
}

// handle adapts Engine's Stop to providers.CaptureHandle.
type handle struct{ engine *Engine }

func (h *handle) Stop() { h.engine.Stop() }

func (p *Provider) Start(ctx context.Context, cfg providers.CaptureConfig, out chan<- models.DecodedPacket) (providers.CaptureHandle, error) {
	engineCfg := Config{
		Device:      cfg.Device,
		Filter:      cfg.Filter,
		Promiscuous: cfg.Promiscuous,
		SnapLen:     int32(cfg.SnapLen),
		BufferBytes: cfg.RingBufferBytes,
		ReadTimeout: cfg.ReadTimeout,
		MaxPackets:  cfg.MaxPackets,
		MaxDuration: cfg.MaxDuration,
	}

	engine, err := NewEngine(engineCfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = engine.Start(ctx, engineCfg, out)
		close(out)
	}()

	return &handle{engine: engine}, nil
}
