/**
 * ASN/Network-Owner Enrichment.
 *
 * A GeoIP2 ASN-database-backed EnrichFunc: looks up the autonomous system
 * and organization that owns a hop's responding address, feeding hop
 * annotation and PathSegment.Owner. Only the ASN lookup is exposed;
 * city/country geolocation has no consumer in the path analysis model.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package pathanalyzer

import (
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// ASNEnricher resolves a hop address to its owning network via a MaxMind
// GeoLite2-ASN (or commercial GeoIP2-ISP) database.
type ASNEnricher struct {
	db *geoip2.Reader
}

// OpenASNEnricher opens the ASN database at path. The caller should call
// Close when the enricher is no longer needed.
func OpenASNEnricher(path string) (*ASNEnricher, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "pathanalyzer.OpenASNEnricher", "failed to open ASN database", err)
	}
	return &ASNEnricher{db: db}, nil
}

// Close releases the underlying mmdb file handle.
func (e *ASNEnricher) Close() error {
	return e.db.Close()
}

// Lookup implements EnrichFunc.
func (e *ASNEnricher) Lookup(addr string) (*models.NetworkOwner, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, errs.New(errs.NotFound, "pathanalyzer.ASNEnricher.Lookup", "invalid IP address: "+addr)
	}
	record, err := e.db.ASN(ip)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "pathanalyzer.ASNEnricher.Lookup", "ASN lookup failed", err)
	}
	if record.AutonomousSystemNumber == 0 {
		return nil, errs.New(errs.NotFound, "pathanalyzer.ASNEnricher.Lookup", "no ASN record for "+addr)
	}
	return &models.NetworkOwner{
		Name:        record.AutonomousSystemOrganization,
		ASN:         int(record.AutonomousSystemNumber),
		NetworkType: classifyNetworkType(record.AutonomousSystemOrganization),
		Registry:    "unknown",
	}, nil
}

// classifyNetworkType buckets well-known transit/cloud organizations; any
// other organization name is reported as "isp", the common case for last-mile
// hops.
func classifyNetworkType(org string) string {
	switch {
	case org == "":
		return "unknown"
	case containsAny(org, "Google", "Amazon", "Microsoft", "Cloudflare", "Akamai", "Fastly"):
		return "cloud/cdn"
	case containsAny(org, "Level 3", "Cogent", "Telia", "NTT", "Zayo", "GTT", "Tata"):
		return "backbone"
	default:
		return "isp"
	}
}

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
