/**
 * Path Analyzer.
 *
 * Segments a traceroute into Local/Router/ISP/Backbone/Destination regions,
 * attributes latency and packet loss per segment, scores overall path
 * health, and emits an issue list with deduplicated recommendations.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package pathanalyzer

import (
	"fmt"
	"strings"

	"github.com/netdiag/netdiag/internal/models"
)

const (
	latencyHighThresholdMs = 100.0
	lossThresholdPct       = 2.0
	latencyJumpThresholdMs = 50.0

	// minPrimaryLatencyMs keeps a primary-contributor segment on a fast,
	// healthy path (where even 1ms can be >40% of the total) from being
	// reported as a latency problem.
	minPrimaryLatencyMs = 40.0
)

var backboneKeywords = []string{"backbone", "core", "bb", "ix", "peer"}

// Analyzer turns a TracerouteResult into a PathAnalysis. It is pure with
// respect to the traceroute input; ASN enrichment is optional and supplied
// by an EnrichFunc the caller wires in (e.g. GeoIP-backed).
type Analyzer struct {
	Enrich EnrichFunc
}

// EnrichFunc looks up ASN/organization info for a hop address. Any error is
// absorbed locally — enrichment never fails the analysis.
type EnrichFunc func(addr string) (*models.NetworkOwner, error)

// New builds an Analyzer with no enrichment collaborator wired in.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze runs the full segmentation/attribution/scoring pipeline.
func (a *Analyzer) Analyze(tr *models.TracerouteResult) *models.PathAnalysis {
	analysis := &models.PathAnalysis{
		Target:     tr.Target.String(),
		ResolvedIP: tr.Target,
	}

	hops := append([]models.TracerouteHop(nil), tr.Hops...)
	a.enrichHops(hops)
	segmentOf := a.classifyHops(hops)
	a.buildSegments(&analysis.Segments, hops, segmentOf)

	rttByIndex := make(map[int]float64, len(hops))
	for _, h := range hops {
		rttByIndex[h.Index] = avgRTT(h.RTTsMs)
	}

	lastRTT := lastHopRTT(hops)
	for _, seg := range analysis.Segments.All() {
		a.attributeLatency(seg, rttByIndex, lastRTT)
		a.attributePacketLoss(seg)
		a.enrichOwner(seg)
		seg.Status = determineStatus(seg)
	}

	analysis.Issues = a.identifyIssues(&analysis.Segments, tr)
	analysis.Health = computeHealth(analysis.Issues, &analysis.Segments)

	return analysis
}

// enrichHops annotates each responding hop with ASN/AS-name so the
// classification rules that key on ASN transitions have data to work with.
// Enrichment failures are absorbed per-hop; a hop with no ASN falls back to
// the hop-count heuristic.
func (a *Analyzer) enrichHops(hops []models.TracerouteHop) {
	if a.Enrich == nil {
		return
	}
	for i := range hops {
		if hops[i].Address == nil || hops[i].ASN != nil {
			continue
		}
		owner, err := a.Enrich(hops[i].Address.String())
		if err != nil || owner == nil {
			continue
		}
		asn := owner.ASN
		name := owner.Name
		hops[i].ASN = &asn
		hops[i].ASName = &name
	}
}

// classifyHops assigns every hop a segment, applying the rules in order:
// hop 1 is Local, hops 2-3 Router, a backbone-keyword hostname wins next,
// hops 4-6 with no new ASN are ISP, and after that ASN transitions decide
// (second distinct ASN Backbone, third Destination).
func (a *Analyzer) classifyHops(hops []models.TracerouteHop) []models.SegmentType {
	out := make([]models.SegmentType, len(hops))
	seenASNs := map[int]bool{}
	distinctASNOrder := []int{}
	current := models.SegmentLocal

	for i, hop := range hops {
		switch {
		case i == 0:
			current = models.SegmentLocal
		case i == 1 || i == 2:
			current = models.SegmentRouter
		case hop.Hostname != nil && containsBackboneKeyword(*hop.Hostname):
			current = models.SegmentBackbone
		case i >= 3 && i <= 5 && (hop.ASN == nil || seenASNs[*hop.ASN]):
			current = models.SegmentISP
		case hop.ASN != nil && !seenASNs[*hop.ASN]:
			seenASNs[*hop.ASN] = true
			distinctASNOrder = append(distinctASNOrder, *hop.ASN)
			switch len(distinctASNOrder) {
			case 2:
				current = models.SegmentBackbone
			case 3:
				current = models.SegmentDestination
			default:
				// inherit current segment
			}
		default:
			// inherit current segment
		}
		out[i] = current
	}
	return out
}

func containsBackboneKeyword(hostname string) bool {
	lower := strings.ToLower(hostname)
	for _, kw := range backboneKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (a *Analyzer) buildSegments(segs *models.PathSegments, hops []models.TracerouteHop, segmentOf []models.SegmentType) {
	for i, hop := range hops {
		seg := segmentFor(segs, segmentOf[i])
		seg.Hops = append(seg.Hops, hop)
		seg.Type = segmentOf[i]
	}
	// Ensure every segment carries its type even when it has no hops.
	segs.Local.Type = models.SegmentLocal
	segs.Router.Type = models.SegmentRouter
	segs.ISP.Type = models.SegmentISP
	segs.Backbone.Type = models.SegmentBackbone
	segs.Destination.Type = models.SegmentDestination
}

func segmentFor(segs *models.PathSegments, t models.SegmentType) *models.PathSegment {
	switch t {
	case models.SegmentLocal:
		return &segs.Local
	case models.SegmentRouter:
		return &segs.Router
	case models.SegmentISP:
		return &segs.ISP
	case models.SegmentBackbone:
		return &segs.Backbone
	default:
		return &segs.Destination
	}
}

func lastHopRTT(hops []models.TracerouteHop) float64 {
	if len(hops) == 0 {
		return 0
	}
	return avgRTT(hops[len(hops)-1].RTTsMs)
}

func avgRTT(rtts []*float64) float64 {
	var sum float64
	var n int
	for _, r := range rtts {
		if r != nil {
			sum += *r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// attributeLatency computes latency_ms = exit_hop_rtt - previous_hop_rtt
// (saturating at 0), its percentage of total path RTT, and whether it is
// the primary contributor (> 40%). The previous hop is the one immediately
// before the segment's first hop on the full path, not within the segment.
func (a *Analyzer) attributeLatency(seg *models.PathSegment, rttByIndex map[int]float64, totalRTT float64) {
	if len(seg.Hops) == 0 {
		return
	}
	exitRTT := avgRTT(seg.Hops[len(seg.Hops)-1].RTTsMs)
	entryRTT := rttByIndex[seg.Hops[0].Index-1]
	latency := exitRTT - entryRTT
	if latency < 0 {
		latency = 0
	}
	pct := 0.0
	if totalRTT > 0 {
		pct = 100 * latency / totalRTT
	}
	seg.Latency = &models.LatencyContribution{
		AbsoluteMs:           latency,
		Percentage:           pct,
		IsPrimaryContributor: pct > 40,
	}
}

func (a *Analyzer) attributePacketLoss(seg *models.PathSegment) {
	if len(seg.Hops) == 0 {
		return
	}
	var timeouts int
	for _, h := range seg.Hops {
		if h.AllTimeout {
			timeouts++
		}
	}
	seg.PacketLossPct = 100 * float64(timeouts) / float64(len(seg.Hops))
}

func (a *Analyzer) enrichOwner(seg *models.PathSegment) {
	if a.Enrich == nil || len(seg.Hops) == 0 {
		return
	}
	last := seg.Hops[len(seg.Hops)-1]
	if last.Address == nil {
		return
	}
	owner, err := a.Enrich(last.Address.String())
	if err != nil || owner == nil {
		return
	}
	seg.Owner = owner
}

// determineStatus scores a segment by latency, loss, and unresponsiveness
// points, then buckets the sum into a status. A segment whose every hop is
// silent is Down outright.
func determineStatus(seg *models.PathSegment) models.SegmentStatus {
	if len(seg.Hops) == 0 {
		return models.StatusUnknown
	}

	points := 0
	if seg.Latency != nil {
		if seg.Latency.AbsoluteMs > latencyHighThresholdMs {
			points += 2
		} else if seg.Latency.AbsoluteMs > latencyHighThresholdMs/2 {
			points++
		}
	}
	if seg.PacketLossPct > 2*lossThresholdPct {
		points += 2
	} else if seg.PacketLossPct > lossThresholdPct {
		points++
	}

	var unresponsive int
	for _, h := range seg.Hops {
		if h.AllTimeout {
			unresponsive++
		}
	}
	ratio := float64(unresponsive) / float64(len(seg.Hops))
	if ratio > 0.5 {
		points += 2
	} else if ratio > 0.2 {
		points++
	}

	if unresponsive == len(seg.Hops) {
		return models.StatusDown
	}
	switch {
	case points == 0:
		return models.StatusHealthy
	case points <= 2:
		return models.StatusDegraded
	case points <= 4:
		return models.StatusImpaired
	default:
		return models.StatusDown
	}
}

// remediationCatalog is the fixed per-issue-type recommendation text
// attached to emitted issues. Each distinct recommendation appears at most
// once per analysis.
var remediationCatalog = map[models.IssueType]string{
	models.IssueHighLatency:  "Check for congestion or QoS misconfiguration in the contributing segment; if it is your ISP, report the sustained latency.",
	models.IssuePacketLoss:   "Inspect cabling and link errors on the lossy segment; for wireless links, check signal strength and channel congestion.",
	models.IssueUnreachable:  "Verify the destination is up and that no firewall along the path drops probes; try an alternate protocol (TCP/UDP traceroute).",
	models.IssueLatencySpike: "A single-hop latency jump usually indicates a congested or rate-limited router; re-run the trace to confirm it persists.",
}

func (a *Analyzer) identifyIssues(segs *models.PathSegments, tr *models.TracerouteResult) []models.PathIssue {
	var issues []models.PathIssue

	for _, seg := range segs.All() {
		if len(seg.Hops) == 0 {
			continue
		}

		if seg.Latency != nil && seg.Latency.AbsoluteMs > minPrimaryLatencyMs &&
			(seg.Latency.IsPrimaryContributor || seg.Latency.AbsoluteMs > latencyHighThresholdMs) {
			sev := models.SeverityWarning
			if seg.Latency.AbsoluteMs > 200 {
				sev = models.SeverityError
			}
			issues = append(issues, models.PathIssue{
				Segment:     seg.Type,
				Type:        models.IssueHighLatency,
				Severity:    sev,
				Description: fmt.Sprintf("%s segment contributes %.0fms of latency", seg.Type, seg.Latency.AbsoluteMs),
			})
		}

		if seg.PacketLossPct > lossThresholdPct {
			sev := models.SeverityWarning
			if seg.PacketLossPct > 5 {
				sev = models.SeverityError
			}
			issues = append(issues, models.PathIssue{
				Segment:     seg.Type,
				Type:        models.IssuePacketLoss,
				Severity:    sev,
				Description: fmt.Sprintf("%s segment shows %.1f%% packet loss", seg.Type, seg.PacketLossPct),
			})
		}

		if seg.Status == models.StatusDown {
			issues = append(issues, models.PathIssue{
				Segment:     seg.Type,
				Type:        models.IssueUnreachable,
				Severity:    models.SeverityCritical,
				Description: fmt.Sprintf("%s segment is unreachable", seg.Type),
			})
		}

		for i := 1; i < len(seg.Hops); i++ {
			prev := avgRTT(seg.Hops[i-1].RTTsMs)
			cur := avgRTT(seg.Hops[i].RTTsMs)
			if cur-prev > latencyJumpThresholdMs {
				issues = append(issues, models.PathIssue{
					Segment:     seg.Type,
					Type:        models.IssueLatencySpike,
					Severity:    models.SeverityWarning,
					Description: fmt.Sprintf("hop %d jumps %.0fms over the previous hop", seg.Hops[i].Index, cur-prev),
				})
			}
		}
	}

	if !tr.Reached {
		issues = append(issues, models.PathIssue{
			Segment:     models.SegmentDestination,
			Type:        models.IssueUnreachable,
			Severity:    models.SeverityCritical,
			Description: "destination did not respond within the traceroute's max hop count",
		})
	}

	attachRemediations(issues)
	return issues
}

// attachRemediations decorates issues with catalog recommendations,
// deduplicated so each recommendation is carried once per analysis.
func attachRemediations(issues []models.PathIssue) {
	seen := make(map[string]bool, len(remediationCatalog))
	for i := range issues {
		text, ok := remediationCatalog[issues[i].Type]
		if !ok || seen[text] {
			continue
		}
		seen[text] = true
		r := text
		issues[i].Remediation = &r
	}
}

var severityDeduction = map[models.IssueSeverity]int{
	models.SeverityInfo:     2,
	models.SeverityWarning:  10,
	models.SeverityError:    25,
	models.SeverityCritical: 40,
}

func computeHealth(issues []models.PathIssue, segs *models.PathSegments) models.PathHealth {
	score := 100
	for _, issue := range issues {
		score -= severityDeduction[issue.Severity]
	}
	if score < 0 {
		score = 0
	}

	var problematic *models.SegmentType
	for _, seg := range segs.All() {
		if seg.Status == models.StatusDown {
			t := seg.Type
			problematic = &t
			break
		}
	}

	return models.PathHealth{
		Score:             score,
		Rating:            ratingFor(score),
		ProblematicSegment: problematic,
		Summary:           summaryFor(score, len(issues)),
	}
}

func ratingFor(score int) models.HealthRating {
	switch {
	case score >= 90:
		return models.RatingExcellent
	case score >= 70:
		return models.RatingGood
	case score >= 50:
		return models.RatingFair
	case score >= 30:
		return models.RatingPoor
	default:
		return models.RatingCritical
	}
}

func summaryFor(score, issueCount int) string {
	if issueCount == 0 {
		return "path is healthy with no detected issues"
	}
	return fmt.Sprintf("path health score %d/100 with %d detected issue(s)", score, issueCount)
}

// BufferBloatGrade grades the latency added under load: A+ (<5ms added),
// A (<30), B (<60), C (<200), D (<400), else F.
func BufferBloatGrade(baselineMs, loadedMs float64) models.BufferBloatGrade {
	added := loadedMs - baselineMs
	switch {
	case added < 5:
		return models.GradeAPlus
	case added < 30:
		return models.GradeA
	case added < 60:
		return models.GradeB
	case added < 200:
		return models.GradeC
	case added < 400:
		return models.GradeD
	default:
		return models.GradeF
	}
}
