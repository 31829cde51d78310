// Package macro expands {placeholder} tokens in postback URL and body
// templates from an event's field set. Substitution is a single pass:
// an expansion is never re-scanned, so operator-controlled values cannot
// inject further macros.
package macro

import (
	"regexp"
	"strconv"
	"time"

	"github.com/trafficgate/postback-gateway/internal/logger"
	"github.com/trafficgate/postback-gateway/internal/model"
	"go.uber.org/zap"
)

// Token lookup is case-sensitive: {clickid} resolves, {ClickID} is an
// unknown macro and resolves to empty like any other.
var placeholderRe = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

// now is stubbed in tests.
var now = time.Now

// Resolve renders template against the event. extra entries override the
// event-derived values (the builder passes a pre-mapped {status} there).
// Unresolved placeholders become empty strings, never literal syntax:
// a malformed template must not leak {token} text to a third party.
func Resolve(template string, e model.Event, extra map[string]string) string {
	if template == "" {
		return ""
	}

	vals := values(e)
	for k, v := range extra {
		vals[k] = v
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if name == "timestamp" {
			if v, ok := vals[name]; ok {
				// test override
				return v
			}
			return strconv.FormatInt(now().Unix(), 10)
		}
		v, ok := vals[name]
		if !ok {
			logger.Log.Warn("unresolved macro", zap.String("macro", name))
			return ""
		}
		return v
	})
}

func values(e model.Event) map[string]string {
	revenue := formatAmount(e.Revenue.Amount)
	return map[string]string{
		"clickid":     e.ClickID,
		"event":       string(e.Type),
		"revenue":     revenue,
		"payout":      revenue,
		"currency":    e.Revenue.Currency,
		"offer_id":    e.OfferID,
		"partner_id":  e.PartnerID,
		"campaign_id": e.CampaignID,
		"flow_id":     e.FlowID,
		"country":     e.Country,
		"device":      e.Device,
		"ip":          e.IP,
		"sub1":        e.Sub1,
		"sub2":        e.Sub2,
		"sub3":        e.Sub3,
		"sub4":        e.Sub4,
		"sub5":        e.Sub5,
	}
}

func formatAmount(a float64) string {
	return strconv.FormatFloat(a, 'f', -1, 64)
}
