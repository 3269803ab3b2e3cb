package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// similarityThreshold alone qualifies an entry as a candidate match.
	similarityThreshold = 75
	// reducedThreshold qualifies when the country bonus also applied.
	reducedThreshold = 60
	countryBonus     = 10
)

// Engine fuzzy-matches counterparty names against the sanctions watchlist.
// It is a pure read over the reference data: no mutation, no network.
type Engine struct {
	watchlist WatchlistRepository
	now       func() time.Time
}

func NewEngine(watchlist WatchlistRepository) *Engine {
	return &Engine{watchlist: watchlist, now: time.Now}
}

// Screen checks a single entity name (with optional country) against every
// watchlist entry and returns all candidate matches, best score first.
func (e *Engine) Screen(ctx context.Context, entityName, entityCountry string) (*Result, error) {
	result := &Result{
		EntityName:     entityName,
		EntityCountry:  entityCountry,
		Status:         MatchStatusCleared,
		Matches:        []Match{},
		CheckTimestamp: e.now().UTC(),
	}

	processedName := Normalize(entityName)
	if processedName == "" {
		return result, nil
	}

	entries, err := e.watchlist.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("screen %q: %w", entityName, err)
	}

	for _, entry := range entries {
		info := entry.BasicInformation
		similarity := Similarity(processedName, Normalize(info.EntityName))

		bonus := 0
		if entityCountry != "" && info.Country != "" &&
			strings.EqualFold(entityCountry, info.Country) {
			bonus = countryBonus
		}

		if similarity >= similarityThreshold || (similarity >= reducedThreshold && bonus > 0) {
			result.Matches = append(result.Matches, Match{
				MatchName:   info.EntityName,
				MatchScore:  similarity + bonus,
				Country:     info.Country,
				FullAddress: info.FullAddress,
				SwiftCode:   info.SwiftCode,
				EntityType:  info.EntityType,
				Sanctions:   entry.Sanctions,
				AdverseNews: entry.AdverseNews,
			})
		}
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].MatchScore > result.Matches[j].MatchScore
	})

	if len(result.Matches) > 0 {
		result.Status = MatchStatusReviewed
	}

	return result, nil
}

// ScreenMany screens a set of transaction-linked counterparties
// independently and keys the results by entity name.
func (e *Engine) ScreenMany(ctx context.Context, parties []Party) (map[string]*Result, error) {
	results := make(map[string]*Result, len(parties))
	for _, party := range parties {
		if party.Name == "" {
			continue
		}
		result, err := e.Screen(ctx, party.Name, party.Country)
		if err != nil {
			return nil, err
		}
		result.EntityID = party.ID
		result.EntityType = party.Type
		result.EntityAddress = party.Address
		results[party.Name] = result
	}
	return results, nil
}
