package service

import (
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/labsite-api/internal/models"
)

const (
	// ConsentRecordKey stores the JSON encoded preference record.
	ConsentRecordKey = "lab-patagonia-cookie-consent"
	// ConsentDateKey stores when the record was written, in epoch milliseconds.
	ConsentDateKey = "lab-patagonia-cookie-consent-date"
	// DefaultConsentRetention approximates six months as 6x30 days.
	DefaultConsentRetention = 6 * 30 * 24 * time.Hour
)

// ConsentStore is the visitor-local key/value storage consent lives in.
type ConsentStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// ConsentService drives the cookie consent lifecycle over a ConsentStore.
type ConsentService struct {
	retention time.Duration
	now       func() time.Time
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewConsentService constructs a ConsentService. A nil clock uses time.Now.
func NewConsentService(retention time.Duration, clock func() time.Time, metrics *MetricsService, logger *zap.Logger) *ConsentService {
	if retention <= 0 {
		retention = DefaultConsentRetention
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsentService{retention: retention, now: clock, metrics: metrics, logger: logger}
}

// Load derives the current state from the store. Expired or unreadable
// entries are cleared and reported as undetermined.
func (s *ConsentService) Load(store ConsentStore) models.ConsentState {
	rawRecord, hasRecord := store.Get(ConsentRecordKey)
	rawDate, hasDate := store.Get(ConsentDateKey)
	if !hasRecord && !hasDate {
		return undetermined()
	}

	record, recordErr := parseConsentRecord(rawRecord)
	decidedAt, dateErr := parseConsentDate(rawDate)
	if !hasRecord || !hasDate || recordErr != nil || dateErr != nil {
		s.logger.Debug("discarding unreadable consent", zap.Bool("record", hasRecord), zap.Bool("date", hasDate))
		s.clear(store)
		return undetermined()
	}

	if s.now().Sub(decidedAt) > s.retention {
		s.clear(store)
		s.metrics.RecordConsentDecision("expired")
		return undetermined()
	}

	return models.ConsentState{
		Status:     models.ConsentDecided,
		Record:     record,
		DecidedAt:  &decidedAt,
		ShowBanner: false,
	}
}

// AcceptAll grants every category.
func (s *ConsentService) AcceptAll(store ConsentStore) models.ConsentState {
	return s.decide(store, models.ConsentRecord{Essential: true, Analytics: true, Preferences: true}, "accept_all")
}

// RejectAll keeps only essential cookies.
func (s *ConsentService) RejectAll(store ConsentStore) models.ConsentState {
	return s.decide(store, models.ConsentRecord{Essential: true}, "reject_all")
}

// UpdatePreferences persists a granular choice. Essential is always stored as true.
func (s *ConsentService) UpdatePreferences(store ConsentStore, record models.ConsentRecord) models.ConsentState {
	record.Essential = true
	return s.decide(store, record, "custom")
}

// Reset forgets the decision so the banner is shown again.
func (s *ConsentService) Reset(store ConsentStore) models.ConsentState {
	s.clear(store)
	s.metrics.RecordConsentDecision("reset")
	return undetermined()
}

// HideBanner dismisses the banner without deciding. Nothing is persisted.
func (s *ConsentService) HideBanner(store ConsentStore) models.ConsentState {
	state := s.Load(store)
	state.ShowBanner = false
	return state
}

func (s *ConsentService) decide(store ConsentStore, record models.ConsentRecord, decision string) models.ConsentState {
	payload, err := json.Marshal(record)
	if err != nil {
		// a struct of bools always marshals
		s.logger.Error("encode consent record", zap.Error(err))
	}
	decidedAt := s.now()
	store.Set(ConsentRecordKey, string(payload))
	store.Set(ConsentDateKey, strconv.FormatInt(decidedAt.UnixMilli(), 10))
	s.metrics.RecordConsentDecision(decision)
	return models.ConsentState{
		Status:     models.ConsentDecided,
		Record:     &record,
		DecidedAt:  &decidedAt,
		ShowBanner: false,
	}
}

func (s *ConsentService) clear(store ConsentStore) {
	store.Remove(ConsentRecordKey)
	store.Remove(ConsentDateKey)
}

func undetermined() models.ConsentState {
	return models.ConsentState{Status: models.ConsentUndetermined, ShowBanner: true}
}

func parseConsentRecord(raw string) (*models.ConsentRecord, error) {
	var record models.ConsentRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	record.Essential = true
	return &record, nil
}

// parseConsentDate accepts epoch milliseconds or an RFC 3339 timestamp.
func parseConsentDate(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
