// Package hosts groups listings into operators so multi-property hosts can be prioritized.
package hosts

import (
	"sort"
	"strings"
	"unicode"

	"tourism-compliance/internal/models"
)

const occupiedNightsPerMonth = 15

// NormalizePhone returns a Senegalese number in +221XXXXXXXXX form. ok is false when raw
// does not reduce to a 9-digit mobile or fixed-line number.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "00221"):
		digits = digits[5:]
	case strings.HasPrefix(digits, "221"):
		digits = digits[3:]
	case strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}

	if len(digits) == 9 && (digits[0] == '7' || digits[0] == '3') {
		return "+221" + digits, true
	}
	return "", false
}

// HostKey identifies a host account on platforms that expose one.
func HostKey(l *models.ScrapedListing) (string, bool) {
	if l.HostID == "" {
		return "", false
	}
	if l.Platform != models.PlatformAirbnb && l.Platform != models.PlatformBooking {
		return "", false
	}
	return string(l.Platform) + ":" + l.HostID, true
}

// MatchedBy records which signal grouped a listing under an operator.
type MatchedBy string

const (
	ByPhone  MatchedBy = "phone"
	ByHostID MatchedBy = "host_id"
)

// Operator is a group of listings run by the same host.
type Operator struct {
	MatchedBy               MatchedBy         `json:"matchedBy"`
	Identifier              string            `json:"identifier"`
	Names                   []string          `json:"names"`
	Platforms               []models.Platform `json:"platforms"`
	ListingIDs              []string          `json:"listingIds"`
	ListingCount            int               `json:"listingCount"`
	CompliantCount          int               `json:"compliantCount"`
	AvgPricePerNight        float64           `json:"avgPricePerNight"`
	EstimatedMonthlyRevenue float64           `json:"estimatedMonthlyRevenue"`
}

// Group clusters listings by normalized phone first, then by host key for listings no
// phone group claimed. Operators are ordered by listing count, then identifier.
func Group(listings []models.ScrapedListing) []Operator {
	byPhone := map[string][]*models.ScrapedListing{}
	byHost := map[string][]*models.ScrapedListing{}

	for i := range listings {
		l := &listings[i]
		if phone, ok := NormalizePhone(l.HostPhone); ok {
			byPhone[phone] = append(byPhone[phone], l)
		}
		if key, ok := HostKey(l); ok {
			byHost[key] = append(byHost[key], l)
		}
	}

	claimed := map[string]bool{}
	var out []Operator

	for _, phone := range sortedKeys(byPhone) {
		group := byPhone[phone]
		for _, l := range group {
			claimed[l.ID] = true
		}
		out = append(out, summarize(ByPhone, phone, group))
	}

	for _, key := range sortedKeys(byHost) {
		var fresh []*models.ScrapedListing
		for _, l := range byHost[key] {
			if !claimed[l.ID] {
				fresh = append(fresh, l)
				claimed[l.ID] = true
			}
		}
		if len(fresh) > 0 {
			out = append(out, summarize(ByHostID, key, fresh))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ListingCount != out[j].ListingCount {
			return out[i].ListingCount > out[j].ListingCount
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}

// MultiProperty keeps operators with at least min listings.
func MultiProperty(ops []Operator, min int) []Operator {
	var out []Operator
	for _, op := range ops {
		if op.ListingCount >= min {
			out = append(out, op)
		}
	}
	return out
}

func summarize(by MatchedBy, identifier string, group []*models.ScrapedListing) Operator {
	names := map[string]bool{}
	platforms := map[models.Platform]bool{}
	op := Operator{MatchedBy: by, Identifier: identifier, ListingCount: len(group)}

	var total float64
	var priced int
	for _, l := range group {
		op.ListingIDs = append(op.ListingIDs, l.ID)
		if name := strings.TrimSpace(l.HostName); name != "" {
			names[name] = true
		}
		platforms[l.Platform] = true
		if l.IsCompliant {
			op.CompliantCount++
		}
		if l.PricePerNight != nil && *l.PricePerNight > 0 {
			total += *l.PricePerNight
			priced++
		}
	}

	for name := range names {
		op.Names = append(op.Names, name)
	}
	sort.Strings(op.Names)
	for p := range platforms {
		op.Platforms = append(op.Platforms, p)
	}
	sort.Slice(op.Platforms, func(i, j int) bool { return op.Platforms[i] < op.Platforms[j] })

	if priced > 0 {
		op.AvgPricePerNight = float64(int(total / float64(priced)))
		op.EstimatedMonthlyRevenue = op.AvgPricePerNight * float64(op.ListingCount) * occupiedNightsPerMonth
	}
	return op
}

func sortedKeys(m map[string][]*models.ScrapedListing) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
