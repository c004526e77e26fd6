package autofix

import (
	"testing"

	"github.com/netdiag/netdiag/internal/models"
)

func TestPlanForIssuesMapsDnsFailure(t *testing.T) {
	plan := PlanForIssues([]NetworkIssue{IssueDnsResolutionFailed}, "eth0", false)

	if len(plan.Actions) != 2 {
		t.Fatalf("expected flush + set-dns, got %d actions: %+v", len(plan.Actions), plan.Actions)
	}
	if plan.Actions[0].Type.Kind != models.FixFlushDnsCache {
		t.Errorf("least invasive action first, got %v", plan.Actions[0].Type.Kind)
	}
	set := plan.Actions[1]
	if set.Type.Kind != models.FixSetDnsServers || set.Type.Iface != "eth0" {
		t.Fatalf("expected SetDnsServers on eth0, got %+v", set.Type)
	}
	if len(set.Type.Servers) == 0 || set.Type.Servers[0] != models.CloudflareDNS[0] {
		t.Errorf("expected the well-known Cloudflare fallback, got %v", set.Type.Servers)
	}
	if !set.Reversible {
		t.Error("SetDnsServers must be reversible")
	}
}

func TestPlanForIssuesSortsBySeverityAcrossIssues(t *testing.T) {
	plan := PlanForIssues([]NetworkIssue{IssueNoConnectivity, IssueHighPacketLoss}, "eth0", false)

	if len(plan.Actions) == 0 {
		t.Fatal("expected a non-empty plan")
	}
	for i := 1; i < len(plan.Actions); i++ {
		if plan.Actions[i].Severity < plan.Actions[i-1].Severity {
			t.Fatalf("plan not in non-decreasing severity order at %d: %+v", i, plan.Actions)
		}
	}
}

func TestPlanForIssuesDeduplicatesSharedActions(t *testing.T) {
	// NoConnectivity and HighPacketLoss both propose reset-adapter.
	plan := PlanForIssues([]NetworkIssue{IssueNoConnectivity, IssueHighPacketLoss}, "eth0", false)

	seen := map[string]int{}
	for _, a := range plan.Actions {
		seen[a.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("action %s appears %d times in the plan", id, n)
		}
	}
}

func TestPlanForIssuesUnknownIssueYieldsEmptyPlan(t *testing.T) {
	plan := PlanForIssues([]NetworkIssue{"made_up_issue"}, "eth0", true)
	if len(plan.Actions) != 0 {
		t.Errorf("expected no actions for an unknown issue, got %+v", plan.Actions)
	}
	if !plan.DryRun {
		t.Error("dry-run flag not carried through")
	}
}
