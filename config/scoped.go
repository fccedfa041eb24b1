package config

import (
	"strconv"
	"strings"
	"time"

	"boxoffice/entity"
)

const (
	KeyReservationHoldMinutes    = "RESERVATION_HOLD_MINUTES"
	KeyInvoiceNumberPattern      = "INVOICE_NUMBER_PATTERN"
	KeyReceiptNumberPattern      = "RECEIPT_NUMBER_PATTERN"
	KeyEnableWaitingList         = "ENABLE_WAITING_LIST"
	KeyWaitingListOfferMinutes   = "WAITING_LIST_OFFER_MINUTES"
	KeyOfflinePaymentDays        = "OFFLINE_PAYMENT_DAYS"
	KeyPaymentGatewayMinutes     = "PAYMENT_GATEWAY_TIMEOUT_MINUTES"
	KeyMandatoryAdditionalFields = "MANDATORY_ADDITIONAL_FIELDS"
)

var scopeRank = map[entity.SettingScope]int{
	entity.ScopeSystem:       0,
	entity.ScopeOrganization: 1,
	entity.ScopeEvent:        2,
	entity.ScopeCategory:     3,
}

// Scoped resolves settings by the most specific scope that defines them:
// category, then event, then organization, then system.
type Scoped struct {
	values map[string]string
}

// NewScoped expects the settings of a single scope chain, as returned by the store.
func NewScoped(settings []entity.Setting) Scoped {
	values := make(map[string]string, len(settings))
	ranks := make(map[string]int, len(settings))

	for _, s := range settings {
		rank := scopeRank[s.Scope]
		if current, ok := ranks[s.Key]; ok && current > rank {
			continue
		}
		ranks[s.Key] = rank
		values[s.Key] = s.Value
	}

	return Scoped{values: values}
}

func (s Scoped) String(key, defaultValue string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

func (s Scoped) Int(key string, defaultValue int) int {
	if v, err := strconv.Atoi(s.String(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func (s Scoped) Bool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(s.String(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func (s Scoped) Minutes(key string, defaultValue time.Duration) time.Duration {
	if v := s.Int(key, 0); v > 0 {
		return time.Duration(v) * time.Minute
	}
	return defaultValue
}

func (s Scoped) List(key string) []string {
	var out []string
	for _, v := range strings.Split(s.String(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
