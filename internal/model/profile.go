package model

import "time"

type ScopeType string

const (
	ScopeGlobal   ScopeType = "global"
	ScopeCampaign ScopeType = "campaign"
	ScopeOffer    ScopeType = "offer"
	ScopeFlow     ScopeType = "flow"
	ScopePartner  ScopeType = "partner"
)

// Scope bounds a profile's applicability. Global scope ignores ID.
type Scope struct {
	Type ScopeType
	ID   string
}

// AppliesTo reports whether the scope matches the event.
func (s Scope) AppliesTo(e Event) bool {
	switch s.Type {
	case ScopeGlobal, "":
		return true
	case ScopeCampaign:
		return s.ID != "" && s.ID == e.CampaignID
	case ScopeOffer:
		return s.ID != "" && s.ID == e.OfferID
	case ScopeFlow:
		return s.ID != "" && s.ID == e.FlowID
	case ScopePartner:
		return s.ID != "" && s.ID == e.PartnerID
	default:
		return false
	}
}

type Endpoint struct {
	URL    string
	Method string // GET | POST
}

// Auth holds static credentials injected into the outbound request.
// Query and header injection are independent and combinable.
type Auth struct {
	QueryKey   string
	QueryVal   string
	HeaderName string
	HeaderVal  string
}

type HMAC struct {
	Enabled         bool
	Secret          string
	PayloadTemplate string
	SignatureParam  string // defaults to "signature"
}

type RetryPolicy struct {
	MaxAttempts    int
	TimeoutMs      int
	BackoffBaseSec int
}

type Filters struct {
	RevenueGreaterThanZero bool
	CountryAllow           []string
	CountryDeny            []string
	ExcludeBots            bool
}

// PostbackProfile is operator-owned configuration, read-only to the engine.
type PostbackProfile struct {
	ID              int64
	Name            string
	TrackerType     string
	Scope           Scope
	Priority        int // lower fires first
	Enabled         bool
	Endpoint        Endpoint
	IDParam         string // clickid | subid
	Auth            Auth
	StatusMap       map[string]string
	Params          map[string]string // output param name -> macro template
	URLEncodeValues bool
	HMAC            HMAC
	Retry           RetryPolicy
	Filters         Filters
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PassesFilters evaluates the profile's event filters. Scope is checked
// separately by the matcher.
func (p PostbackProfile) PassesFilters(e Event) bool {
	if p.Filters.ExcludeBots && e.IsBot {
		return false
	}
	if p.Filters.RevenueGreaterThanZero && e.Revenue.Amount <= 0 {
		return false
	}
	if len(p.Filters.CountryAllow) > 0 && !containsFold(p.Filters.CountryAllow, e.Country) {
		return false
	}
	if containsFold(p.Filters.CountryDeny, e.Country) {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if equalFold(v, s) {
			return true
		}
	}
	return false
}

// equalFold compares 2-letter country codes without allocating.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
