package feedback

import (
	"sort"
	"strings"
	"unicode"
)

// Issue kinds reported by the GapDetector.
const (
	IssueRepeatedLowScores = "repeated_low_scores"
	IssueFrequentlyMissing = "frequently_missing"
)

// lowScoreCeiling is the highest score still counted as a low rating.
const lowScoreCeiling = 2

// Issue is one recurring problem mined from the feedback log.
type Issue struct {
	Kind    string   `json:"kind"`
	Subject string   `json:"subject"`
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
}

// GapDetector mines the feedback log for recurring retrieval problems.
type GapDetector struct {
	minLowScores int
	minMissing   int
}

// NewGapDetector creates a detector. minLowScores is the query-count
// threshold for a keyword to become a repeated_low_scores issue;
// minMissing is the report-count threshold for frequently_missing.
func NewGapDetector(minLowScores, minMissing int) GapDetector {
	if minLowScores < 1 {
		minLowScores = 3
	}
	if minMissing < 1 {
		minMissing = 2
	}
	return GapDetector{minLowScores: minLowScores, minMissing: minMissing}
}

// Detect scans the records and returns the issues, most frequent first.
func (d GapDetector) Detect(records []Record) []Issue {
	lowQueries := make(map[string][]string)
	missing := make(map[string][]string)

	for _, r := range records {
		switch r.Kind {
		case KindRating:
			if r.Score > lowScoreCeiling {
				continue
			}
			for _, kw := range queryKeywords(r.Query) {
				lowQueries[kw] = append(lowQueries[kw], r.Query)
			}
		case KindGap:
			if r.MissingUnit != "" {
				missing[r.MissingUnit] = append(missing[r.MissingUnit], r.Query)
			}
		}
	}

	var issues []Issue
	for kw, queries := range lowQueries {
		distinct := dedupe(queries)
		if len(distinct) >= d.minLowScores {
			issues = append(issues, Issue{
				Kind:    IssueRepeatedLowScores,
				Subject: kw,
				Count:   len(distinct),
				Samples: sampleOf(distinct, 3),
			})
		}
	}
	for name, queries := range missing {
		if len(queries) >= d.minMissing {
			issues = append(issues, Issue{
				Kind:    IssueFrequentlyMissing,
				Subject: name,
				Count:   len(queries),
				Samples: sampleOf(dedupe(queries), 3),
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Count != issues[j].Count {
			return issues[i].Count > issues[j].Count
		}
		return issues[i].Subject < issues[j].Subject
	})
	return issues
}

func queryKeywords(query string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	seen := make(map[string]bool)
	for _, t := range tokens {
		if len(t) < 3 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func sampleOf(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
