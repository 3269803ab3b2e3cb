package domain

import (
	"context"
	"errors"
	"time"
)

// ErrReferenceDataUnavailable is returned when the watchlist reference data
// cannot be read. Screening must fail loudly instead of degrading to a
// false Cleared.
var ErrReferenceDataUnavailable = errors.New("watchlist reference data unavailable")

type MatchStatus string

const (
	MatchStatusCleared  MatchStatus = "Cleared"
	MatchStatusReviewed MatchStatus = "Reviewed"
)

// WatchlistEntry is external reference data, read-only from the core's
// perspective.
type WatchlistEntry struct {
	BasicInformation BasicInformation `json:"basic_information"`
	Sanctions        []string         `json:"sanction_information"`
	AdverseNews      []string         `json:"adverse_news"`
}

type BasicInformation struct {
	EntityName  string `json:"entity_name"`
	Country     string `json:"country"`
	FullAddress string `json:"full_address"`
	SwiftCode   string `json:"swift_code"`
	EntityType  string `json:"entity_type"`
}

// Match is one candidate watchlist hit for a screened counterparty.
type Match struct {
	MatchName   string   `json:"match_name"`
	MatchScore  int      `json:"match_score"`
	Country     string   `json:"country"`
	FullAddress string   `json:"full_address"`
	SwiftCode   string   `json:"swift_code"`
	EntityType  string   `json:"entity_type"`
	Sanctions   []string `json:"sanctions"`
	AdverseNews []string `json:"adverse_news"`
}

type Result struct {
	EntityID       string      `json:"entity_id,omitempty"`
	EntityName     string      `json:"entity_name"`
	EntityType     string      `json:"entity_type,omitempty"`
	EntityAddress  string      `json:"entity_address,omitempty"`
	EntityCountry  string      `json:"entity_country,omitempty"`
	Status         MatchStatus `json:"match_status"`
	Matches        []Match     `json:"matches"`
	CheckTimestamp time.Time   `json:"check_timestamp"`
}

// Party is a transaction-linked counterparty to screen.
type Party struct {
	ID      string
	Name    string
	Country string
	Type    string
	Address string
}

type WatchlistRepository interface {
	Entries(ctx context.Context) ([]WatchlistEntry, error)
}
