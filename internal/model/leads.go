package model

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NewLeadsFromCandidates turns discovery results into blank Leads owned by
// projectID. Lead numbers continue from startNumber.
func NewLeadsFromCandidates(candidates []DiscoveryCandidate, projectID, city, country string, startNumber int, now time.Time) []Lead {
	if startNumber < 1 {
		startNumber = 1
	}
	leads := make([]Lead, len(candidates))
	for i, c := range candidates {
		leads[i] = Lead{
			DiscoveryCandidate: c,
			ID:                 uuid.New().String(),
			ProjectID:          projectID,
			GeneratedDate:      now,
			SearchCity:         city,
			SearchCountry:      country,
			LeadNumber:         startNumber + i,
			Status:             DefaultStatus,
			Stage:              StageNew,
		}
	}
	return leads
}

// NextLeadNumber returns one past the highest lead number in leads.
func NextLeadNumber(leads []Lead) int {
	max := 0
	for _, l := range leads {
		if l.LeadNumber > max {
			max = l.LeadNumber
		}
	}
	return max + 1
}

// FilterByStage returns the leads in stage. Leads without a stage count as
// New.
func FilterByStage(leads []Lead, stage PipelineStage) []Lead {
	var out []Lead
	for _, l := range leads {
		if l.effectiveStage() == stage {
			out = append(out, l)
		}
	}
	return out
}

// GroupByStage buckets leads by pipeline stage. Every stage has an entry.
func GroupByStage(leads []Lead) map[PipelineStage][]Lead {
	groups := make(map[PipelineStage][]Lead, len(Stages))
	for _, st := range Stages {
		groups[st] = nil
	}
	for _, l := range leads {
		st := l.effectiveStage()
		groups[st] = append(groups[st], l)
	}
	return groups
}

func (l *Lead) effectiveStage() PipelineStage {
	if l.Stage == "" {
		return StageNew
	}
	return l.Stage
}

// TotalDealValue sums the deal values of leads.
func TotalDealValue(leads []Lead) float64 {
	var total float64
	for _, l := range leads {
		total += l.DealValue
	}
	return total
}

// SortByQuality returns a copy of leads ordered by quality score, best first.
func SortByQuality(leads []Lead) []Lead {
	out := append([]Lead(nil), leads...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QualityScore > out[j].QualityScore
	})
	return out
}

// SortByDate returns a copy of leads ordered by generation date, newest first.
func SortByDate(leads []Lead) []Lead {
	out := append([]Lead(nil), leads...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedDate.After(out[j].GeneratedDate)
	})
	return out
}

// HasCompleteContact reports whether the lead has an email, a phone and a
// named contact.
func HasCompleteContact(l Lead) bool {
	return strings.TrimSpace(l.Email) != "" &&
		strings.TrimSpace(l.Phone) != "" &&
		strings.TrimSpace(l.ContactName) != ""
}

// Completeness is the percentage of the six outreach fields that are filled.
func Completeness(l Lead) int {
	fields := []string{l.Email, l.Phone, l.LinkedIn, l.ContactName, l.ContactTitle, l.Website}
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return int(float64(filled)/float64(len(fields))*100 + 0.5)
}

// IsRecent reports whether the lead was generated within the last seven days.
func IsRecent(l Lead, now time.Time) bool {
	return !l.GeneratedDate.Before(now.AddDate(0, 0, -7))
}

var foldCaser = cases.Fold()

// NormalizeKey folds case, strips diacritics and collapses whitespace so
// "Café  Rio" and "cafe rio" compare equal.
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(foldCaser.String(out)), " ")
}

// IsDuplicate reports whether two leads name the same business at the same
// address.
func IsDuplicate(a, b Lead) bool {
	return NormalizeKey(a.CompanyName) == NormalizeKey(b.CompanyName) &&
		NormalizeKey(a.Address) == NormalizeKey(b.Address)
}

// FindDuplicates groups leads that are duplicates of one another. Only
// groups with two or more members are returned, in first-seen order.
func FindDuplicates(leads []Lead) [][]Lead {
	index := make(map[string]int)
	var groups [][]Lead
	for _, l := range leads {
		key := NormalizeKey(l.CompanyName) + "\x00" + NormalizeKey(l.Address)
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], l)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []Lead{l})
	}

	var dups [][]Lead
	for _, g := range groups {
		if len(g) > 1 {
			dups = append(dups, g)
		}
	}
	return dups
}
