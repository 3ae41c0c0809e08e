package models

import (
	"time"
)

// ===========================================
// ATTRIBUTION MODELS
// ===========================================

// AttributionModel identifies a credit-assignment rule.
type AttributionModel string

const (
	ModelLinear     AttributionModel = "linear"
	ModelTimeDecay  AttributionModel = "time_decay"
	ModelUShape     AttributionModel = "u_shape"
	ModelLastTouch  AttributionModel = "last_touch"
	ModelFirstTouch AttributionModel = "first_touch"
)

// ClickIDs carries platform click identifiers captured on a touchpoint.
type ClickIDs struct {
	Meta   string `json:"meta,omitempty"`   // fbclid
	Google string `json:"google,omitempty"` // gclid
	TikTok string `json:"tiktok,omitempty"` // ttclid
}

// IsZero reports whether no click identifier is set.
func (c ClickIDs) IsZero() bool {
	return c.Meta == "" && c.Google == "" && c.TikTok == ""
}

// TouchpointRecord is a single marketing-attributable interaction on a
// lead's journey. Immutable once created; weight stays 0 until an
// attribution model assigns credit.
type TouchpointRecord struct {
	Source     string    `json:"source"`
	Medium     string    `json:"medium"`
	Campaign   string    `json:"campaign"`
	Timestamp  time.Time `json:"timestamp"`
	Weight     float64   `json:"weight"`
	ClickIDs   ClickIDs  `json:"click_ids,omitempty"`
	GeoCountry string    `json:"geo_country,omitempty"`
}

// HasChannelData reports whether the touchpoint carries any channel
// identity at all. Records without source, medium and campaign are
// filtered out before any attribution model runs.
func (t TouchpointRecord) HasChannelData() bool {
	return t.Source != "" || t.Medium != "" || t.Campaign != ""
}

// ExternalIDs maps ad-platform click identifiers and CRM ids to a lead.
type ExternalIDs struct {
	Meta   string `json:"meta,omitempty"`
	Google string `json:"google,omitempty"`
	TikTok string `json:"tiktok,omitempty"`
	CRM    string `json:"crm,omitempty"`
}

// AttributionLedger is the durable per-lead touchpoint history. One
// document per lead, owned exclusively by the attribution bridge.
type AttributionLedger struct {
	LeadID      string             `json:"lead_id"`
	ExternalIDs ExternalIDs        `json:"external_ids"`
	Touchpoints []TouchpointRecord `json:"touchpoints"`
	LastSyncAt  time.Time          `json:"last_sync_at"`
}

// HasTouchpoint reports whether a record with the same timestamp and
// source is already present. Dedup key for idempotent event replay.
func (l *AttributionLedger) HasTouchpoint(ts time.Time, source string) bool {
	for _, tp := range l.Touchpoints {
		if tp.Source == source && tp.Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

// AttributionResult holds the weighted credit split for one conversion.
// Points is empty when the lead had no qualifying touchpoints; that is a
// legitimate "no attribution data" outcome, not an error.
type AttributionResult struct {
	LeadID        string             `json:"lead_id"`
	TransactionID string             `json:"transaction_id"`
	Model         AttributionModel   `json:"model"`
	Points        []TouchpointRecord `json:"points"`
	ComputedAt    time.Time          `json:"computed_at"`
}
