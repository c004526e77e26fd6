package pathanalyzer

import (
	"net"
	"testing"

	"github.com/netdiag/netdiag/internal/models"
)

func ms(v float64) *float64 { return &v }

func hop(index int, rtt float64) models.TracerouteHop {
	return models.TracerouteHop{Index: index, RTTsMs: []*float64{ms(rtt)}}
}

// TestLatencyAttribution: hops [1,2,3,50,52,54]ms should flag the
// ISP-region segment as the primary latency contributor and produce at
// least one HighLatency issue.
func TestLatencyAttribution(t *testing.T) {
	tr := &models.TracerouteResult{
		Target:  net.ParseIP("203.0.113.1"),
		Reached: true,
		Hops: []models.TracerouteHop{
			hop(1, 1), hop(2, 2), hop(3, 3),
			hop(4, 50), hop(5, 52), hop(6, 54),
		},
	}

	analysis := New().Analyze(tr)

	if analysis.Segments.ISP.Latency == nil {
		t.Fatal("expected ISP segment to carry a latency contribution")
	}
	if !analysis.Segments.ISP.Latency.IsPrimaryContributor {
		t.Errorf("expected ISP segment to be flagged primary contributor, got pct=%.1f", analysis.Segments.ISP.Latency.Percentage)
	}

	foundHighLatency := false
	for _, issue := range analysis.Issues {
		if issue.Type == models.IssueHighLatency {
			foundHighLatency = true
		}
	}
	if !foundHighLatency {
		t.Error("expected at least one HighLatency issue")
	}

	if analysis.Health.Score < 0 || analysis.Health.Score > 100 {
		t.Errorf("score %d out of [0,100]", analysis.Health.Score)
	}
}

func TestHealthScoreBounds(t *testing.T) {
	issues := []models.PathIssue{
		{Severity: models.SeverityCritical}, {Severity: models.SeverityCritical},
		{Severity: models.SeverityCritical}, {Severity: models.SeverityCritical},
	}
	h := computeHealth(issues, &models.PathSegments{})
	if h.Score != 0 {
		t.Errorf("score = %d, want 0 (saturated)", h.Score)
	}
	if h.Rating != models.RatingCritical {
		t.Errorf("rating = %v, want Critical", h.Rating)
	}
}

func TestBufferBloatGrading(t *testing.T) {
	cases := []struct {
		baseline, loaded float64
		want             models.BufferBloatGrade
	}{
		{10, 12, models.GradeAPlus},
		{10, 30, models.GradeA},
		{10, 60, models.GradeB},
		{10, 150, models.GradeC},
		{10, 300, models.GradeD},
		{10, 500, models.GradeF},
	}
	for _, c := range cases {
		if got := BufferBloatGrade(c.baseline, c.loaded); got != c.want {
			t.Errorf("BufferBloatGrade(%v, %v) = %v, want %v", c.baseline, c.loaded, got, c.want)
		}
	}
}

func TestBackboneKeywordOverridesHopCount(t *testing.T) {
	host := "ae-1.core1.example-ix.net"
	tr := &models.TracerouteResult{
		Target:  net.ParseIP("203.0.113.1"),
		Reached: true,
		Hops: []models.TracerouteHop{
			hop(1, 1), hop(2, 2), hop(3, 3),
			{Index: 4, Hostname: &host, RTTsMs: []*float64{ms(20)}},
		},
	}
	analysis := New().Analyze(tr)
	if len(analysis.Segments.Backbone.Hops) != 1 {
		t.Errorf("expected the core/ix hostname to classify hop 4 as Backbone, got %d backbone hops", len(analysis.Segments.Backbone.Hops))
	}
}

func TestUnreachableDestinationEmitsCritical(t *testing.T) {
	tr := &models.TracerouteResult{
		Target:  net.ParseIP("203.0.113.1"),
		Reached: false,
		Hops:    []models.TracerouteHop{hop(1, 1), hop(2, 2)},
	}
	analysis := New().Analyze(tr)

	found := false
	for _, issue := range analysis.Issues {
		if issue.Type == models.IssueUnreachable && issue.Severity == models.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Error("expected a Critical Unreachable issue when reached=false")
	}
}

func TestDownSegmentSetsProblematicSegment(t *testing.T) {
	tr := &models.TracerouteResult{
		Target:  net.ParseIP("203.0.113.1"),
		Reached: false,
		Hops: []models.TracerouteHop{
			hop(1, 1),
			{Index: 2, AllTimeout: true, RTTsMs: []*float64{nil}},
			{Index: 3, AllTimeout: true, RTTsMs: []*float64{nil}},
		},
	}
	analysis := New().Analyze(tr)

	if analysis.Segments.Router.Status != models.StatusDown {
		t.Errorf("router segment status = %v, want Down when every hop is unresponsive", analysis.Segments.Router.Status)
	}
	if analysis.Health.ProblematicSegment == nil {
		t.Fatal("expected ProblematicSegment to be set when a segment is Down")
	}
	if *analysis.Health.ProblematicSegment != models.SegmentRouter {
		t.Errorf("problematic segment = %v, want Router", *analysis.Health.ProblematicSegment)
	}
}

func TestRemediationsDeduplicated(t *testing.T) {
	// Two lossy segments produce two PacketLoss issues but only one should
	// carry the shared recommendation text.
	tr := &models.TracerouteResult{
		Target:  net.ParseIP("203.0.113.1"),
		Reached: true,
		Hops: []models.TracerouteHop{
			hop(1, 1),
			{Index: 2, AllTimeout: true, RTTsMs: []*float64{nil}},
			hop(3, 3),
			{Index: 4, AllTimeout: true, RTTsMs: []*float64{nil}},
			hop(5, 5), hop(6, 6),
		},
	}
	analysis := New().Analyze(tr)

	withRemediation := 0
	lossIssues := 0
	for _, issue := range analysis.Issues {
		if issue.Type == models.IssuePacketLoss {
			lossIssues++
			if issue.Remediation != nil {
				withRemediation++
			}
		}
	}
	if lossIssues < 2 {
		t.Fatalf("expected at least two PacketLoss issues, got %d", lossIssues)
	}
	if withRemediation != 1 {
		t.Errorf("expected the shared recommendation attached exactly once, got %d", withRemediation)
	}
}

func TestReachedHopOne(t *testing.T) {
	// Traceroute where hop 1 is already the target.
	tr := &models.TracerouteResult{
		Target:  net.ParseIP("127.0.0.1"),
		Reached: true,
		Hops:    []models.TracerouteHop{hop(1, 0.5)},
	}
	analysis := New().Analyze(tr)
	if len(analysis.Segments.Local.Hops) != 1 {
		t.Fatalf("expected hop 1 classified Local, got %d hops", len(analysis.Segments.Local.Hops))
	}
}
