package match

import (
	"testing"
	"time"

	"github.com/trafficgate/postback-gateway/internal/model"
)

func leadEvent() model.Event {
	return model.Event{
		ClickID:    "abc123",
		Type:       model.EventLead,
		Revenue:    model.Money{Amount: 50, Currency: "USD"},
		Country:    "US",
		OfferID:    "42",
		CampaignID: "c7",
		PartnerID:  "p1",
	}
}

func profile(id int64, mut func(*model.PostbackProfile)) model.PostbackProfile {
	p := model.PostbackProfile{
		ID:      id,
		Enabled: true,
		Scope:   model.Scope{Type: model.ScopeGlobal},
		Endpoint: model.Endpoint{
			URL:    "https://tracker.example.com/pb",
			Method: "GET",
		},
		Priority:  100,
		CreatedAt: time.Unix(1700000000+id, 0),
	}
	if mut != nil {
		mut(&p)
	}
	return p
}

func TestMatchScopeAndFilters(t *testing.T) {
	e := leadEvent()

	tests := []struct {
		name string
		mut  func(*model.PostbackProfile)
		want bool
	}{
		{"global always applies", nil, true},
		{"disabled excluded", func(p *model.PostbackProfile) { p.Enabled = false }, false},
		{"offer scope match", func(p *model.PostbackProfile) {
			p.Scope = model.Scope{Type: model.ScopeOffer, ID: "42"}
		}, true},
		{"offer scope mismatch", func(p *model.PostbackProfile) {
			p.Scope = model.Scope{Type: model.ScopeOffer, ID: "43"}
		}, false},
		{"campaign scope match", func(p *model.PostbackProfile) {
			p.Scope = model.Scope{Type: model.ScopeCampaign, ID: "c7"}
		}, true},
		{"partner scope mismatch", func(p *model.PostbackProfile) {
			p.Scope = model.Scope{Type: model.ScopePartner, ID: "p9"}
		}, false},
		{"flow scope without event flow", func(p *model.PostbackProfile) {
			p.Scope = model.Scope{Type: model.ScopeFlow, ID: "f1"}
		}, false},
		{"country allowlist hit", func(p *model.PostbackProfile) {
			p.Filters.CountryAllow = []string{"US", "CA"}
		}, true},
		{"country allowlist miss", func(p *model.PostbackProfile) {
			p.Filters.CountryAllow = []string{"DE"}
		}, false},
		{"country denylist hit", func(p *model.PostbackProfile) {
			p.Filters.CountryDeny = []string{"US"}
		}, false},
		{"country compare is case-insensitive", func(p *model.PostbackProfile) {
			p.Filters.CountryAllow = []string{"us"}
		}, true},
		{"revenue filter passes positive amount", func(p *model.PostbackProfile) {
			p.Filters.RevenueGreaterThanZero = true
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(e, []model.PostbackProfile{profile(1, tt.mut)})
			if (len(got) == 1) != tt.want {
				t.Errorf("matched=%v, want %v", len(got) == 1, tt.want)
			}
		})
	}
}

func TestMatchRevenueFilterZeroAmount(t *testing.T) {
	e := leadEvent()
	e.Revenue.Amount = 0

	p := profile(1, func(p *model.PostbackProfile) { p.Filters.RevenueGreaterThanZero = true })
	if got := Match(e, []model.PostbackProfile{p}); len(got) != 0 {
		t.Errorf("zero-revenue event matched revenue>0 profile")
	}
}

func TestMatchBotExclusionOverridesEverything(t *testing.T) {
	e := leadEvent()
	e.IsBot = true

	p := profile(1, func(p *model.PostbackProfile) {
		p.Filters.ExcludeBots = true
		p.Filters.CountryAllow = []string{"US"}
	})
	if got := Match(e, []model.PostbackProfile{p}); len(got) != 0 {
		t.Errorf("bot event matched a bot-excluding profile")
	}
}

func TestMatchOrderingAndFanOut(t *testing.T) {
	e := leadEvent()

	low := profile(1, func(p *model.PostbackProfile) { p.Priority = 10 })
	older := profile(2, func(p *model.PostbackProfile) {
		p.Priority = 50
		p.CreatedAt = time.Unix(1600000000, 0)
	})
	newer := profile(3, func(p *model.PostbackProfile) { p.Priority = 50 })
	high := profile(4, func(p *model.PostbackProfile) { p.Priority = 90 })

	got := Match(e, []model.PostbackProfile{high, newer, older, low})
	if len(got) != 4 {
		t.Fatalf("fan-out returned %d profiles, want 4", len(got))
	}
	wantOrder := []int64{1, 2, 3, 4}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: profile %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestMatchNoMatchesIsEmptyNotNilDelivery(t *testing.T) {
	// A filtered-out event produces no delivery at all, not a failed one.
	e := leadEvent()
	p := profile(1, func(p *model.PostbackProfile) { p.Filters.CountryAllow = []string{"DE"} })

	if got := Match(e, []model.PostbackProfile{p}); len(got) != 0 {
		t.Fatalf("expected empty match, got %d", len(got))
	}
}
