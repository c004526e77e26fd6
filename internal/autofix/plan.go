/**
 * Issue-driven Planning.
 *
 * Maps each diagnosed NetworkIssue variant onto its ordered candidate
 * FixActions, concatenates across issues, and stably sorts by severity so
 * the least invasive fixes run first.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package autofix

import (
	"sort"

	"github.com/netdiag/netdiag/internal/models"
)

// NetworkIssue names a diagnosed problem the planner knows remediations for.
type NetworkIssue string

const (
	IssueDnsResolutionFailed NetworkIssue = "dns_resolution_failed"
	IssueNoConnectivity      NetworkIssue = "no_connectivity"
	IssueHighPacketLoss      NetworkIssue = "high_packet_loss"
	IssueGatewayUnreachable  NetworkIssue = "gateway_unreachable"
	IssueDhcpLeaseExpired    NetworkIssue = "dhcp_lease_expired"
)

// actionByID indexes the fixed Catalog for the planner's per-issue lookups.
func actionByID(catalog []models.FixAction, id string) (models.FixAction, bool) {
	for _, a := range catalog {
		if a.ID == id {
			return a, true
		}
	}
	return models.FixAction{}, false
}

// PlanForIssues builds a FixPlan from diagnosed issues. Each issue maps
// deterministically to an ordered candidate set; candidates across issues
// are concatenated, deduplicated by action ID, then stably sorted by
// severity ascending.
func PlanForIssues(issues []NetworkIssue, iface string, dryRun bool) models.FixPlan {
	catalog := Catalog(iface)

	var actions []models.FixAction
	add := func(ids ...string) {
		for _, id := range ids {
			if a, ok := actionByID(catalog, id); ok {
				actions = append(actions, a)
			}
		}
	}

	for _, issue := range issues {
		switch issue {
		case IssueDnsResolutionFailed:
			add("flush-dns-cache")
			actions = append(actions, SetDNSAction(iface, models.CloudflareDNS))
		case IssueNoConnectivity:
			add("renew-dhcp", "reset-adapter", "restart-network-service")
		case IssueHighPacketLoss:
			add("clear-arp-cache", "reset-adapter")
		case IssueGatewayUnreachable:
			add("renew-dhcp", "clear-arp-cache")
		case IssueDhcpLeaseExpired:
			add("renew-dhcp")
		}
	}

	seen := make(map[string]bool, len(actions))
	deduped := actions[:0]
	for _, a := range actions {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		deduped = append(deduped, a)
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Severity < deduped[j].Severity })

	return models.FixPlan{Actions: deduped, DryRun: dryRun}
}
