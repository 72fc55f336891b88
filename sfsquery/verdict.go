package sfsquery

// Verdict is a coarse recommendation derived from a lookup.
type Verdict int

const (
	// Accept means nothing recent or credible is known about the address.
	Accept Verdict = iota
	// Review means the address has older or weaker reports.
	Review
	// Reject means the address was reported recently with high confidence.
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Review:
		return "review"
	case Reject:
		return "reject"
	default:
		return "accept"
	}
}

// Policy holds the thresholds used by Assess.
type Policy struct {
	RejectDays       int
	RejectConfidence float64
	ReviewDays       int
	ReviewConfidence float64
}

// DefaultPolicy rejects recent high-confidence reports and flags older or
// weaker ones for review.
var DefaultPolicy = Policy{
	RejectDays:       7,
	RejectConfidence: 75,
	ReviewDays:       30,
	ReviewConfidence: 20,
}

// Assess applies p to the lookup result. A failed lookup yields Accept,
// since nothing is known about the address.
func (c *Client) Assess(p Policy) Verdict {
	confidence := c.Confidence()
	switch {
	case c.WasReportedInPastDays(p.RejectDays) && confidence >= p.RejectConfidence:
		return Reject
	case c.WasReportedInPastDays(p.ReviewDays) && confidence >= p.ReviewConfidence:
		return Review
	default:
		return Accept
	}
}
