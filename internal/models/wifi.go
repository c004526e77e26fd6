/**
 * WiFi Models.
 *
 * Defines the data structures for 802.11 Access Points and per-channel
 * congestion used throughout the specific WiFi modules.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

import "time"

// AccessPoint represents a discovered 802.11 Access Point.
type AccessPoint struct {
	ID         int64
	BSSID      string
	SSID       string
	Channel    int
	Encryption string
	Vendor     string
	Signal     int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// ChannelInfo is one 5/2.4 GHz channel's congestion picture, as produced by
// WifiProvider.AnalyzeChannels.
type ChannelInfo struct {
	Channel         int
	FrequencyMHz    int
	UtilizationPct  float64
	OverlappingAPs  int
	IsDFS           bool
	RecommendedUse  bool
}

