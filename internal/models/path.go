/**
 * Path Analysis Model.
 *
 * The segmented, scored, issue-annotated view of a traceroute produced by
 * the path analyzer: PathAnalysis, its five named PathSegments, overall
 * PathHealth, and the PathIssue catalog.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

import "net"

// SegmentType names one of the five fixed regions of a network path.
type SegmentType string

const (
	SegmentLocal       SegmentType = "local"
	SegmentRouter      SegmentType = "router"
	SegmentISP         SegmentType = "isp"
	SegmentBackbone    SegmentType = "backbone"
	SegmentDestination SegmentType = "destination"
)

// SegmentStatus is the health classification of one path segment.
type SegmentStatus string

const (
	StatusHealthy  SegmentStatus = "healthy"
	StatusDegraded SegmentStatus = "degraded"
	StatusImpaired SegmentStatus = "impaired"
	StatusDown     SegmentStatus = "down"
	StatusUnknown  SegmentStatus = "unknown"
)

// HealthRating buckets a PathHealth.Score via fixed thresholds (90/70/50/30).
type HealthRating string

const (
	RatingExcellent HealthRating = "excellent"
	RatingGood      HealthRating = "good"
	RatingFair      HealthRating = "fair"
	RatingPoor      HealthRating = "poor"
	RatingCritical  HealthRating = "critical"
)

// IssueType enumerates the kinds of problems the path analyzer can report.
type IssueType string

const (
	IssueHighLatency     IssueType = "high_latency"
	IssueLatencySpike    IssueType = "latency_spike"
	IssuePacketLoss      IssueType = "packet_loss"
	IssueUnreachable     IssueType = "unreachable"
	IssueRouteInstability IssueType = "route_instability"
	IssueCongestion      IssueType = "congestion"
	IssuePossibleOutage  IssueType = "possible_outage"
	IssueRoutingAnomaly  IssueType = "routing_anomaly"
	IssueMtuIssue        IssueType = "mtu_issue"
	IssueDnsFailure      IssueType = "dns_failure"
)

// IssueSeverity is totally ordered Info < Warning < Error < Critical.
type IssueSeverity int

const (
	SeverityInfo IssueSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s IssueSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// NetworkOwner is the optional ASN/registry enrichment attached to a segment.
type NetworkOwner struct {
	Name        string
	ASN         int
	NetworkType string
	Registry    string
}

// LatencyContribution is the absolute and relative latency a segment adds.
type LatencyContribution struct {
	AbsoluteMs         float64
	Percentage         float64
	IsPrimaryContributor bool
}

// PathSegment is one of the five fixed regions of a path.
type PathSegment struct {
	Type          SegmentType
	Status        SegmentStatus
	Hops          []TracerouteHop
	Latency       *LatencyContribution
	PacketLossPct float64
	Owner         *NetworkOwner
}

// PathSegments groups the five fixed regions of a PathAnalysis.
type PathSegments struct {
	Local       PathSegment
	Router      PathSegment
	ISP         PathSegment
	Backbone    PathSegment
	Destination PathSegment
}

// All returns the five segments in path order, for code that must iterate
// rather than address a segment by name.
func (s *PathSegments) All() []*PathSegment {
	return []*PathSegment{&s.Local, &s.Router, &s.ISP, &s.Backbone, &s.Destination}
}

// PathHealth is the overall scored verdict for a PathAnalysis.
type PathHealth struct {
	Score               int
	Rating              HealthRating
	ProblematicSegment   *SegmentType
	Summary              string
}

// PathIssue is one detected problem attributed to a segment.
type PathIssue struct {
	Segment     SegmentType
	Type        IssueType
	Severity    IssueSeverity
	Description string
	Details     *string
	Remediation *string
}

// PathAnalysis is the full output of analyzing one TracerouteResult.
//
// Invariant: Score is in [0,100]; Rating is the threshold-lookup of Score;
// if any segment is Down, ProblematicSegment is set.
type PathAnalysis struct {
	Target      string
	ResolvedIP  net.IP
	Segments    PathSegments
	Health      PathHealth
	Issues      []PathIssue
	BufferBloat *BufferBloatGrade
}

// BufferBloatGrade is the A+..F grading of added latency under load.
type BufferBloatGrade string

const (
	GradeAPlus BufferBloatGrade = "A+"
	GradeA     BufferBloatGrade = "A"
	GradeB     BufferBloatGrade = "B"
	GradeC     BufferBloatGrade = "C"
	GradeD     BufferBloatGrade = "D"
	GradeF     BufferBloatGrade = "F"
)
