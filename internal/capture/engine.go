/**
 * Packet Capture Engine.
 *
 * Coordinates a live pcap capture loop and protocol decoder producing a
 * bounded stream of DecodedPacket plus rolling CaptureStats. The handle
 * lifecycle is inactive handle, configure, activate, then BPF filter;
 * snaplen, promiscuity, timeout, and buffer size must all be set before
 * activation because libpcap rejects them afterwards.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package capture

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// channelCapacity bounds the capture-packet channel. A full channel means
// the consumer has fallen behind; the session then ends cleanly rather
// than dropping packets silently.
const channelCapacity = 1000

// Config holds one capture session's configuration.
type Config struct {
	Device      string
	Filter      string
	Promiscuous bool
	SnapLen     int32
	BufferBytes int
	ReadTimeout time.Duration
	MaxPackets  int
	MaxDuration *time.Duration
}

// DefaultConfig returns a sensible zero-config capture configuration.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		SnapLen:     65536,
		Promiscuous: true,
		BufferBytes: 32 * 1024 * 1024,
		ReadTimeout: 250 * time.Millisecond,
	}
}

// Engine runs one live capture session at a time.
type Engine struct {
	handle       *pcap.Handle
	packetSource *gopacket.PacketSource
	running      atomic.Bool
	stopFlag     atomic.Bool
	closeOnce    sync.Once

	stats      models.CaptureStats
	started    time.Time
	talkerSeen map[string]uint64
}

// topTalkerLimit caps how many most-frequent addresses a session reports.
const topTalkerLimit = 10

// NewEngine opens and activates a pcap handle per cfg, following the
// inactive-handle-then-activate pattern: configure snaplen/promiscuity/
// timeout/buffer before activation, then apply the BPF filter.
func NewEngine(cfg Config) (*Engine, error) {
	inactive, err := pcap.NewInactiveHandle(cfg.Device)
	if err != nil {
		return nil, errs.Wrap(errs.Capture, "capture.NewEngine", "failed to create inactive handle", err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(int(cfg.SnapLen)); err != nil {
		return nil, errs.Wrap(errs.Capture, "capture.NewEngine", "failed to set snaplen", err)
	}
	if err := inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, errs.Wrap(errs.Capture, "capture.NewEngine", "failed to set promiscuous mode", err)
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = pcap.BlockForever
	}
	if err := inactive.SetTimeout(timeout); err != nil {
		return nil, errs.Wrap(errs.Capture, "capture.NewEngine", "failed to set read timeout", err)
	}
	if cfg.BufferBytes > 0 {
		_ = inactive.SetBufferSize(cfg.BufferBytes)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, errs.Wrap(errs.Capture, "capture.NewEngine", "failed to activate capture handle", err)
	}

	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			handle.Close()
			return nil, errs.Wrap(errs.Capture, "capture.NewEngine", fmt.Sprintf("invalid BPF filter %q", cfg.Filter), err)
		}
	}

	return &Engine{
		handle:       handle,
		packetSource: gopacket.NewPacketSource(handle, handle.LinkType()),
		stats:        models.CaptureStats{ProtocolBreakdown: make(map[models.ProtocolTag]models.ProtocolCount)},
		talkerSeen:   make(map[string]uint64),
	}, nil
}

// Start runs the capture loop until ctx is cancelled, max_packets is
// reached, max_duration elapses, or the consumer channel backs up. A
// failed non-blocking send means the consumer is too slow, and the session
// shuts down cleanly instead of dropping packets. Packets are pushed to
// out, a channel the caller should size with NewChannel.
func (e *Engine) Start(ctx context.Context, cfg Config, out chan<- models.DecodedPacket) error {
	if !e.running.CompareAndSwap(false, true) {
		return errs.New(errs.Capture, "capture.Start", "engine already running")
	}
	defer e.running.Store(false)

	e.started = time.Now()
	packets := e.packetSource.Packets()

	var deadline <-chan time.Time
	if cfg.MaxDuration != nil {
		timer := time.NewTimer(*cfg.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if e.stopFlag.Load() {
			e.finalize()
			return nil
		}
		select {
		case <-ctx.Done():
			e.finalize()
			return nil
		case <-deadline:
			e.finalize()
			return nil
		case pkt, ok := <-packets:
			if !ok {
				e.finalize()
				return nil
			}
			if pkt == nil {
				continue // read timeout: continue, not error
			}

			decoded := Decode(pkt)
			e.recordStats(decoded)

			select {
			case out <- decoded:
			default:
				// Slow consumer: clean shutdown rather than silently drop.
				e.finalize()
				return nil
			}

			if cfg.MaxPackets > 0 && int(e.stats.TotalPackets) >= cfg.MaxPackets {
				e.finalize()
				return nil
			}
		}
	}
}

// Stop is idempotent; it asks the capture loop to exit at its next
// iteration and closes the pcap handle exactly once.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
	e.closeOnce.Do(func() {
		if e.handle != nil {
			e.handle.Close()
		}
	})
}

func (e *Engine) recordStats(p models.DecodedPacket) {
	e.stats.TotalPackets++
	e.stats.TotalBytes += uint64(p.WireLength)

	entry := e.stats.ProtocolBreakdown[p.Protocol]
	entry.Packets++
	entry.Bytes += uint64(p.WireLength)
	e.stats.ProtocolBreakdown[p.Protocol] = entry

	if p.SrcIP != nil {
		e.talkerSeen[p.SrcIP.String()]++
	}
	if p.DstIP != nil {
		e.talkerSeen[p.DstIP.String()]++
	}
}

// topTalkers reduces the running per-address tally to the k most frequent
// addresses, most-packets-first.
func (e *Engine) topTalkers() []models.TopTalker {
	out := make([]models.TopTalker, 0, len(e.talkerSeen))
	for addr, count := range e.talkerSeen {
		out = append(out, models.TopTalker{Address: net.ParseIP(addr), Packets: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Packets != out[j].Packets {
			return out[i].Packets > out[j].Packets
		}
		return out[i].Address.String() < out[j].Address.String()
	})
	if len(out) > topTalkerLimit {
		out = out[:topTalkerLimit]
	}
	return out
}

func (e *Engine) finalize() {
	e.stats.Duration = time.Since(e.started)
	if e.handle != nil {
		if hstats, err := e.handle.Stats(); err == nil {
			e.stats.DroppedKernel = uint64(hstats.PacketsDropped)
			e.stats.DroppedInterface = uint64(hstats.PacketsIfDropped)
		}
	}
	secs := e.stats.Duration.Seconds()
	if secs > 0 {
		e.stats.PacketsPerSecond = float64(e.stats.TotalPackets) / secs
		e.stats.BandwidthBitsPerSecond = float64(e.stats.TotalBytes) * 8 / secs
	}
	e.stats.TopTalkers = e.topTalkers()
}

// Stats returns the engine's current (possibly still-live) statistics.
func (e *Engine) Stats() models.CaptureStats { return e.stats }

// NewChannel allocates a capture-packet channel at the capacity Start's
// backpressure policy assumes.
func NewChannel() chan models.DecodedPacket {
	return make(chan models.DecodedPacket, channelCapacity)
}

// CaptureSync runs one complete capture session, invoking callback for
// every decoded packet on the caller's goroutine, and returns the final
// statistics once the session ends (stop, max_packets, max_duration, or
// ctx cancellation).
func CaptureSync(ctx context.Context, cfg Config, callback func(models.DecodedPacket)) (models.CaptureStats, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return models.CaptureStats{}, err
	}
	defer engine.Stop()

	out := NewChannel()
	done := make(chan error, 1)
	go func() {
		done <- engine.Start(ctx, cfg, out)
		close(out)
	}()

	for pkt := range out {
		if callback != nil {
			callback(pkt)
		}
	}
	err = <-done
	return engine.Stats(), err
}
