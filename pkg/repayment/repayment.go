// Package repayment triggers repayment charges and keeps the latest metadata snapshot for each
// entity.
package repayment

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/inbucket/courier/pkg/extension/event"
)

// Payment status values.
const (
	StatusSuccess = event.PaymentSuccess
	StatusPending = event.PaymentPending
	StatusFailed  = event.PaymentFailed
)

// Numeric timestamps at or above this value are milliseconds, below it seconds.
const msThreshold = 1e11

// keywordsSoftLimit is the recommended total length of all keywords.
const keywordsSoftLimit = 1000

// Request is a repayment charge with the metadata to store for the entity.
type Request struct {
	EntityName               string         `json:"entity_name" validate:"required"`
	EntityID                 string         `json:"entity_id" validate:"required,max=64"`
	EntityGroupID            string         `json:"entity_group_id" validate:"max=64"`
	DisplayName              string         `json:"display_name" validate:"max=50"`
	Description              string         `json:"description" validate:"max=2000"`
	LogoURL                  string         `json:"logo_url" validate:"omitempty,max=512,url"`
	Keywords                 []string       `json:"keywords"`
	RankingHint              *float64       `json:"ranking_hint" validate:"omitempty,notnan,gte=0,lte=100"`
	ExpirationTime           *float64       `json:"expiration_time" validate:"omitempty,notnan"`
	MetadataModificationTime *float64       `json:"metadata_modification_time" validate:"omitempty,notnan"`
	ActivityType             []string       `json:"activity_type"`
	IsPublicData             *bool          `json:"is_public_data"`
	Extras                   map[string]any `json:"extras"`
}

// Record is the metadata stored for an entity.
type Record struct {
	EntityID                 string         `json:"entity_id"`
	EntityName               string         `json:"entity_name"`
	EntityGroupID            string         `json:"entity_group_id,omitempty"`
	DisplayName              string         `json:"display_name"`
	Description              string         `json:"description"`
	LogoURL                  string         `json:"logo_url"`
	Keywords                 []string       `json:"keywords"`
	RankingHint              *float64       `json:"ranking_hint,omitempty"`
	ExpirationTime           *float64       `json:"expiration_time,omitempty"`
	MetadataModificationTime *float64       `json:"metadata_modification_time,omitempty"`
	ActivityType             []string       `json:"activity_type"`
	IsPublicData             *bool          `json:"is_public_data,omitempty"`
	Extras                   map[string]any `json:"extras,omitempty"`
	PaymentID                string         `json:"payment_id"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// Result is the outcome of Pay.  A failed charge is reported through Status, not an error.
type Result struct {
	Status      string    `json:"status"`
	PaymentID   string    `json:"payment_id"`
	EntityID    string    `json:"entity_id"`
	ProcessedAt time.Time `json:"processed_at"`
	Message     string    `json:"message"`
	Snapshot    *Record   `json:"snapshot"`
}

// Timestamp converts a numeric timestamp in seconds or milliseconds to a time.
func Timestamp(v float64) time.Time {
	if v >= msThreshold {
		v /= 1000
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Expired returns true if the record carries an expiration time at or before now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpirationTime != nil && !Timestamp(*r.ExpirationTime).After(now)
}

// newerThan reports whether r should be kept instead of next.  Only records that both carry a
// modification time are compared.
func (r *Record) newerThan(next *Record) bool {
	if r.MetadataModificationTime == nil || next.MetadataModificationTime == nil {
		return false
	}
	return Timestamp(*r.MetadataModificationTime).After(Timestamp(*next.MetadataModificationTime))
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Keywords = slices.Clone(r.Keywords)
	c.ActivityType = slices.Clone(r.ActivityType)
	c.Extras = maps.Clone(r.Extras)
	c.RankingHint = clonePtr(r.RankingHint)
	c.ExpirationTime = clonePtr(r.ExpirationTime)
	c.MetadataModificationTime = clonePtr(r.MetadataModificationTime)
	c.IsPublicData = clonePtr(r.IsPublicData)
	return &c
}

// record builds the snapshot stored for req.
func (req *Request) record(paymentID string, now time.Time) *Record {
	r := &Record{
		EntityID:                 req.EntityID,
		EntityName:               req.EntityName,
		EntityGroupID:            req.EntityGroupID,
		DisplayName:              req.DisplayName,
		Description:              req.Description,
		LogoURL:                  req.LogoURL,
		Keywords:                 req.Keywords,
		RankingHint:              req.RankingHint,
		ExpirationTime:           req.ExpirationTime,
		MetadataModificationTime: req.MetadataModificationTime,
		ActivityType:             req.ActivityType,
		IsPublicData:             req.IsPublicData,
		Extras:                   req.Extras,
		PaymentID:                paymentID,
		UpdatedAt:                now,
	}
	return r.Clone()
}

func (req *Request) keywordsLength() int {
	n := 0
	for _, k := range req.Keywords {
		n += len([]rune(k))
	}
	return n
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
