package macro

import (
	"strings"
	"testing"
	"time"

	"github.com/trafficgate/postback-gateway/internal/model"
)

func testEvent() model.Event {
	return model.Event{
		ClickID: "abc123",
		Type:    model.EventLead,
		Revenue: model.Money{Amount: 12.5, Currency: "USD"},
		Country: "US",
		Device:  "mobile",
		IP:      "198.51.100.7",
		Sub1:    "fb",
		Sub2:    "adset9",
		OfferID: "42",
	}
}

func TestResolve(t *testing.T) {
	e := testEvent()

	tests := []struct {
		name     string
		template string
		extra    map[string]string
		want     string
	}{
		{
			name:     "no placeholders returns template unchanged",
			template: "https://x.example.com/pb?fixed=1",
			want:     "https://x.example.com/pb?fixed=1",
		},
		{
			name:     "event fields",
			template: "{clickid}|{country}|{sub1}|{offer_id}",
			want:     "abc123|US|fb|42",
		},
		{
			name:     "revenue and payout share the amount",
			template: "{revenue}/{payout}/{currency}",
			want:     "12.5/12.5/USD",
		},
		{
			name:     "extra overrides win",
			template: "{status}",
			extra:    map[string]string{"status": "conversion"},
			want:     "conversion",
		},
		{
			name:     "unknown macro becomes empty, never literal",
			template: "a={no_such_macro}&b={sub2}",
			want:     "a=&b=adset9",
		},
		{
			name:     "lookup is case-sensitive",
			template: "{ClickID}{clickid}",
			want:     "abc123",
		},
		{
			name:     "empty template",
			template: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.template, e, tt.extra)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	e := testEvent()
	const tpl = "{clickid}-{sub1}-{revenue}"

	first := Resolve(tpl, e, nil)
	second := Resolve(tpl, e, nil)
	if first != second {
		t.Errorf("same inputs resolved differently: %q vs %q", first, second)
	}
}

func TestResolveTimestamp(t *testing.T) {
	old := now
	defer func() { now = old }()
	now = func() time.Time { return time.Unix(1700000000, 0) }

	got := Resolve("t={timestamp}", testEvent(), nil)
	if got != "t=1700000000" {
		t.Errorf("timestamp macro = %q, want t=1700000000", got)
	}

	// extra may pin the value, used by callers that need reproducibility
	got = Resolve("t={timestamp}", testEvent(), map[string]string{"timestamp": "7"})
	if got != "t=7" {
		t.Errorf("timestamp override = %q, want t=7", got)
	}
}

func TestResolveSinglePass(t *testing.T) {
	e := testEvent()
	e.Sub1 = "{clickid}" // hostile upstream value

	got := Resolve("v={sub1}", e, nil)
	if got != "v={clickid}" {
		t.Errorf("expansion was re-scanned: got %q", got)
	}
	if strings.Contains(got, "abc123") {
		t.Errorf("macro injection through event value: %q", got)
	}
}
