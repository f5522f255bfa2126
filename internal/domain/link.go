package domain

// LinkKind tags a candidate link after classification.
type LinkKind int

const (
	// KindJunk links never reach the network.
	KindJunk LinkKind = iota
	// KindDirect links point straight at their destination.
	KindDirect
	// KindTracking links are wrapped by a newsletter platform redirect service.
	KindTracking
)

func (k LinkKind) String() string {
	switch k {
	case KindJunk:
		return "junk"
	case KindDirect:
		return "direct"
	case KindTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// CandidateLink is a hyperlink pulled out of a newsletter body.
type CandidateLink struct {
	RawURL     string
	DecodedURL string
	Kind       LinkKind
}

// RejectReason explains why the validator refused a destination.
type RejectReason string

const (
	ReasonNone        RejectReason = ""
	ReasonInvalidURL  RejectReason = "invalid_url"
	ReasonHomepage    RejectReason = "homepage"
	ReasonSponsor     RejectReason = "sponsor"
	ReasonAppStore    RejectReason = "app_store"
	ReasonProfile     RejectReason = "profile"
	ReasonAccountPath RejectReason = "account_path"
	ReasonDomainRule  RejectReason = "domain_rule"
	ReasonNoSignal    RejectReason = "no_signal"
)

// Verdict is the outcome of content validation. Rejection is an expected
// outcome, not an error.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject returns a rejecting verdict with the given reason.
func Reject(reason RejectReason) Verdict {
	return Verdict{Reason: reason}
}

func (v Verdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	return "rejected(" + string(v.Reason) + ")"
}

// ResolvedLink is a destination after optional redirect resolution.
// OriginalURL is empty unless resolution changed the URL.
type ResolvedLink struct {
	FinalURL    string
	OriginalURL string
	Verdict     Verdict
}
