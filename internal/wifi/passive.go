/**
 * Passive WiFi Scan.
 *
 * Runs a short pcap capture directly against a monitor-mode interface and
 * feeds every captured frame through Scanner.ParseBeacon, aggregating
 * distinct BSSIDs into AccessPoint records. This is the fallback
 * providers.LinuxWifiProvider.ScanAccessPoints reaches for when `iw scan`
 * is refused, which is common on interfaces already switched to monitor
 * mode where the kernel's managed-mode scan ioctl is unavailable.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package wifi

import (
	"context"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// PassiveScan opens iface (expected already in monitor mode) and collects
// Beacon frames for duration, returning one AccessPoint per distinct BSSID
// seen.
func PassiveScan(ctx context.Context, iface string, duration time.Duration) ([]models.AccessPoint, error) {
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return nil, errs.Wrap(errs.Capture, "wifi.PassiveScan", "failed to open monitor-mode interface", err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("wlan type mgt subtype beacon"); err != nil {
		return nil, errs.Wrap(errs.Capture, "wifi.PassiveScan", "failed to set 802.11 beacon filter", err)
	}

	scanner := NewScanner()
	seen := make(map[string]models.AccessPoint)

	deadline := time.After(duration)
	packets := gopacket.NewPacketSource(handle, handle.LinkType()).Packets()

	for {
		select {
		case <-ctx.Done():
			return toSlice(seen), nil
		case <-deadline:
			return toSlice(seen), nil
		case pkt, ok := <-packets:
			if !ok {
				return toSlice(seen), nil
			}
			if ap := scanner.ParseBeacon(pkt); ap != nil {
				if prev, ok := seen[ap.BSSID]; ok {
					ap.FirstSeen = prev.FirstSeen
				}
				seen[ap.BSSID] = *ap
			}
		}
	}
}

func toSlice(m map[string]models.AccessPoint) []models.AccessPoint {
	out := make([]models.AccessPoint, 0, len(m))
	for _, ap := range m {
		out = append(out, ap)
	}
	return out
}
