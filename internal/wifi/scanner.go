/**
 * WiFi Scanner.
 *
 * Decodes 802.11 Beacon frames captured off a monitor-mode interface into
 * AccessPoint records for the passive scan fallback.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package wifi

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netdiag/netdiag/internal/models"
)

// Scanner decodes captured 802.11 management frames.
type Scanner struct{}

func NewScanner() *Scanner {
	return &Scanner{}
}

// ParseBeacon extracts an AccessPoint from one captured frame, or nil if
// the frame is not a Beacon. Both FirstSeen and LastSeen are stamped with
// the decode time; PassiveScan owns aggregation across frames and carries
// the earlier FirstSeen forward when the same BSSID beacons again.
func (s *Scanner) ParseBeacon(packet gopacket.Packet) *models.AccessPoint {
	d11, ok := packet.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !ok || d11.Type != layers.Dot11TypeMgmt || d11.Proto != 0 {
		return nil
	}
	if packet.Layer(layers.LayerTypeDot11MgmtBeacon) == nil {
		return nil
	}

	now := time.Now()
	ap := &models.AccessPoint{
		// Address3 carries the BSSID in frames between a station and its AP.
		BSSID:     d11.Address3.String(),
		SSID:      "Hidden",
		FirstSeen: now,
		LastSeen:  now,
	}

	// SSID and operating channel live in the beacon's tagged information
	// elements. An AP suppressing its SSID omits or zero-lengths that
	// element, so the "Hidden" default stands.
	for _, layer := range packet.Layers() {
		info, ok := layer.(*layers.Dot11InformationElement)
		if !ok {
			continue
		}
		switch info.ID {
		case layers.Dot11InformationElementIDSSID:
			if len(info.Info) > 0 {
				ap.SSID = string(info.Info)
			}
		case layers.Dot11InformationElementIDDSSet:
			if len(info.Info) > 0 {
				ap.Channel = int(info.Info[0])
			}
		}
	}

	return ap
}
