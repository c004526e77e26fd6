//go:build linux

/**
 * Linux WiFi Provider.
 *
 * Implements WifiProvider by shelling out to `iw`, the standard Linux
 * wireless configuration tool, the same way LinuxAutofixProvider shells out
 * to `ip`/`resolvectl`/`dhclient` elsewhere in this package. Access-point
 * records returned from `iw scan` are parsed into models.AccessPoint, the
 * same type internal/wifi.Scanner produces from a live 802.11 capture, so
 * both sources of truth (active `iw scan` and passive monitor-mode capture)
 * feed identical downstream consumers.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package providers

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/wifi"
)

// passiveScanDuration bounds the fallback monitor-mode capture window when
// an active `iw scan` is refused.
const passiveScanDuration = 5 * time.Second

// LinuxWifiProvider implements WifiProvider via `iw dev`/`iw scan`.
type LinuxWifiProvider struct{}

// NewLinuxWifiProvider constructs a LinuxWifiProvider.
func NewLinuxWifiProvider() *LinuxWifiProvider { return &LinuxWifiProvider{} }

func (p *LinuxWifiProvider) IsAvailable(ctx context.Context) bool {
	ifaces, err := p.ListWifiInterfaces(ctx)
	return err == nil && len(ifaces) > 0
}

// ListWifiInterfaces parses `iw dev`'s "Interface <name>" lines.
func (p *LinuxWifiProvider) ListWifiInterfaces(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev").Output()
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "providers.ListWifiInterfaces", "iw dev failed; no wireless subsystem or iw not installed", err)
	}
	var ifaces []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "Interface" {
			ifaces = append(ifaces, fields[1])
		}
	}
	return ifaces, nil
}

// ScanAccessPoints runs a synchronous `iw <iface> scan` and parses the
// "BSS <bssid>" / "SSID: <name>" / "freq: <mhz>" / "signal: <dbm>" blocks
// iw emits into AccessPoint records.
func (p *LinuxWifiProvider) ScanAccessPoints(ctx context.Context, iface string) ([]models.AccessPoint, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev", iface, "scan").Output()
	if err != nil {
		// Managed-mode scan refused (commonly because iface is already in
		// monitor mode, or the caller lacks CAP_NET_ADMIN): fall back to a
		// short passive beacon capture instead of failing outright.
		aps, passiveErr := wifi.PassiveScan(ctx, iface, passiveScanDuration)
		if passiveErr != nil {
			return nil, errs.Wrap(errs.Platform, "providers.ScanAccessPoints", "iw scan failed and passive fallback unavailable", err)
		}
		return aps, nil
	}
	return parseIwScan(string(out)), nil
}

func parseIwScan(output string) []models.AccessPoint {
	var aps []models.AccessPoint
	var cur *models.AccessPoint
	now := time.Now()

	flush := func() {
		if cur != nil {
			aps = append(aps, *cur)
			cur = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(line, "BSS ") {
			flush()
			bssid := strings.Fields(strings.TrimPrefix(line, "BSS "))[0]
			bssid = strings.TrimSuffix(bssid, "(on)")
			bssid = strings.Split(bssid, "(")[0]
			cur = &models.AccessPoint{BSSID: bssid, SSID: "Hidden", FirstSeen: now, LastSeen: now}
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "SSID: "):
			cur.SSID = strings.TrimPrefix(trimmed, "SSID: ")
		case strings.HasPrefix(trimmed, "signal: "):
			f := strings.Fields(trimmed)
			if len(f) >= 2 {
				if dbm, err := strconv.ParseFloat(f[1], 64); err == nil {
					cur.Signal = int(dbm)
				}
			}
		case strings.HasPrefix(trimmed, "freq: "):
			f := strings.Fields(trimmed)
			if len(f) >= 2 {
				if mhz, err := strconv.Atoi(f[1]); err == nil {
					cur.Channel = channelFromFrequency(mhz)
				}
			}
		case strings.HasPrefix(trimmed, "RSN:") || strings.HasPrefix(trimmed, "WPA:"):
			cur.Encryption = "WPA/WPA2"
		}
	}
	flush()

	for i := range aps {
		if aps[i].Encryption == "" {
			aps[i].Encryption = "Open"
		}
	}
	return aps
}

// channelFromFrequency converts a 2.4/5 GHz center frequency (MHz) to its
// 802.11 channel number.
func channelFromFrequency(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return (mhz-2412)/5 + 1
	case mhz >= 5000:
		return (mhz - 5000) / 5
	default:
		return 0
	}
}

// GetCurrentConnection parses `iw <iface> link`'s associated-BSS block into
// the same AccessPoint shape ScanAccessPoints returns, so callers can
// compare "what we're on" against "what's available" without a second type.
func (p *LinuxWifiProvider) GetCurrentConnection(ctx context.Context, iface string) (*models.AccessPoint, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev", iface, "link").Output()
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "providers.GetCurrentConnection", "iw link failed", err)
	}
	text := string(out)
	if strings.HasPrefix(strings.TrimSpace(text), "Not connected") {
		return nil, errs.New(errs.NotFound, "providers.GetCurrentConnection", "interface not associated to any network")
	}

	ap := &models.AccessPoint{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(trimmed, "Connected to "):
			f := strings.Fields(trimmed)
			if len(f) >= 3 {
				ap.BSSID = f[2]
			}
		case strings.HasPrefix(trimmed, "SSID: "):
			ap.SSID = strings.TrimPrefix(trimmed, "SSID: ")
		case strings.HasPrefix(trimmed, "signal: "):
			f := strings.Fields(trimmed)
			if len(f) >= 2 {
				if dbm, err := strconv.Atoi(f[1]); err == nil {
					ap.Signal = dbm
				}
			}
		case strings.HasPrefix(trimmed, "freq: "):
			f := strings.Fields(trimmed)
			if len(f) >= 2 {
				if mhz, err := strconv.Atoi(f[1]); err == nil {
					ap.Channel = channelFromFrequency(mhz)
				}
			}
		}
	}
	if ap.BSSID == "" {
		return nil, errs.New(errs.NotFound, "providers.GetCurrentConnection", "interface not associated to any network")
	}
	return ap, nil
}

// GetNoiseLevel parses `iw <iface> survey dump`'s "noise:" line for the
// channel the interface currently occupies.
func (p *LinuxWifiProvider) GetNoiseLevel(ctx context.Context, iface string) (int, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev", iface, "survey", "dump").Output()
	if err != nil {
		return 0, errs.Wrap(errs.Platform, "providers.GetNoiseLevel", "iw survey dump failed", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	inUse := false
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(trimmed, "Survey data from"):
			inUse = false
		case trimmed == "in use":
			inUse = true
		case inUse && strings.HasPrefix(trimmed, "noise:"):
			f := strings.Fields(trimmed)
			if len(f) >= 2 {
				if dbm, err := strconv.Atoi(strings.TrimSuffix(f[1], "dBm")); err == nil {
					return dbm, nil
				}
			}
		}
	}
	return 0, errs.New(errs.NotFound, "providers.GetNoiseLevel", "no in-use channel survey entry found")
}

// GetChannelUtilization computes busy-time ratio for one channel from
// `iw <iface> survey dump`'s "channel active time"/"channel busy time"
// pair, matching the noise/survey parsing style above.
func (p *LinuxWifiProvider) GetChannelUtilization(ctx context.Context, channel int) (float64, error) {
	ifaces, err := p.ListWifiInterfaces(ctx)
	if err != nil || len(ifaces) == 0 {
		return 0, errs.New(errs.Platform, "providers.GetChannelUtilization", "no wireless interface available to survey")
	}
	out, err := exec.CommandContext(ctx, "iw", "dev", ifaces[0], "survey", "dump").Output()
	if err != nil {
		return 0, errs.Wrap(errs.Platform, "providers.GetChannelUtilization", "iw survey dump failed", err)
	}

	var freq, active, busy int
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(trimmed, "frequency:"):
			f := strings.Fields(trimmed)
			if len(f) >= 2 {
				freq, _ = strconv.Atoi(f[1])
			}
		case strings.HasPrefix(trimmed, "channel active time:"):
			f := strings.Fields(trimmed)
			if len(f) >= 4 {
				active, _ = strconv.Atoi(f[3])
			}
		case strings.HasPrefix(trimmed, "channel busy time:"):
			f := strings.Fields(trimmed)
			if len(f) >= 4 {
				busy, _ = strconv.Atoi(f[3])
			}
			if channelFromFrequency(freq) == channel && active > 0 {
				return float64(busy) / float64(active) * 100, nil
			}
			active, busy = 0, 0
		}
	}
	return 0, errs.New(errs.NotFound, "providers.GetChannelUtilization", "no survey data for requested channel")
}

// AnalyzeChannels scans for access points, buckets them by channel, and
// grades each channel's congestion by overlapping-AP count, the same
// coarse heuristic WiFi analyzer tools commonly use when channel-busy-time
// survey data is unavailable.
func (p *LinuxWifiProvider) AnalyzeChannels(ctx context.Context, iface string) ([]models.ChannelInfo, error) {
	aps, err := p.ScanAccessPoints(ctx, iface)
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int)
	for _, ap := range aps {
		counts[ap.Channel]++
	}
	infos := make([]models.ChannelInfo, 0, len(counts))
	for ch, n := range counts {
		infos = append(infos, models.ChannelInfo{
			Channel:        ch,
			FrequencyMHz:   frequencyFromChannel(ch),
			UtilizationPct: float64(n) / float64(len(aps)) * 100,
			OverlappingAPs: n,
			IsDFS:          isDFSChannel(ch),
			RecommendedUse: n <= 1,
		})
	}
	return infos, nil
}

// frequencyFromChannel is the inverse of channelFromFrequency for the
// common 2.4/5 GHz channel plans.
func frequencyFromChannel(channel int) int {
	switch {
	case channel == 14:
		return 2484
	case channel >= 1 && channel <= 13:
		return 2412 + (channel-1)*5
	case channel > 13:
		return 5000 + channel*5
	default:
		return 0
	}
}

// isDFSChannel reports whether a 5 GHz channel falls in the DFS-radar band
// (52-144), matching the GLOSSARY's "DFS channel" definition.
func isDFSChannel(channel int) bool {
	return channel >= 52 && channel <= 144
}

// GetSupportedStandards reports 802.11a/b/g unconditionally, adding n/ac/ax
// when `iw phy` output contains "HT Capabilities"/"VHT Capabilities"/
// "HE Capabilities". The output covers every wiphy on the host; iface is not
// used to select one.
func (p *LinuxWifiProvider) GetSupportedStandards(ctx context.Context, iface string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "iw", "phy").Output()
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "providers.GetSupportedStandards", "iw phy failed", err)
	}
	text := string(out)
	standards := []string{"802.11a", "802.11b", "802.11g"}
	if strings.Contains(text, "HT Capabilities") {
		standards = append(standards, "802.11n")
	}
	if strings.Contains(text, "VHT Capabilities") {
		standards = append(standards, "802.11ac")
	}
	if strings.Contains(text, "HE Capabilities") {
		standards = append(standards, "802.11ax")
	}
	return standards, nil
}

// GetSignalStrength parses `iw <iface> link`'s "signal: -NN dBm" line.
func (p *LinuxWifiProvider) GetSignalStrength(ctx context.Context, iface string) (int, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev", iface, "link").Output()
	if err != nil {
		return 0, errs.Wrap(errs.Platform, "providers.GetSignalStrength", "iw link failed", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(trimmed, "signal: ") {
			f := strings.Fields(trimmed)
			if len(f) >= 2 {
				if dbm, err := strconv.Atoi(f[1]); err == nil {
					return dbm, nil
				}
			}
		}
	}
	return 0, errs.New(errs.NotFound, "providers.GetSignalStrength", "interface not associated to any network")
}

// SupportsEnterprise reports WPA enterprise (802.1X) support. It always
// returns true; the interface's PHY capabilities are not queried.
func (p *LinuxWifiProvider) SupportsEnterprise(ctx context.Context, iface string) (bool, error) {
	return true, nil
}

// TriggerScan asks the kernel to begin a background scan without waiting
// for results, matching the contract's advisory, fire-and-forget semantics.
func (p *LinuxWifiProvider) TriggerScan(ctx context.Context, iface string) error {
	if err := exec.CommandContext(ctx, "iw", "dev", iface, "scan", "trigger").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.TriggerScan", "iw scan trigger failed", err)
	}
	return nil
}
