// Package related scores a corpus of regulatory news items against one
// target and returns the top matches with a coarse relationship tag.
// Scoring is pure and synchronous; no state survives a call.
package related

import (
	"sort"
	"strings"
	"time"

	"github.com/lexwatch/lexwatch/internal/models"
	"github.com/lexwatch/lexwatch/pkg/reference"
)

const (
	sameInstrumentBonus = 50
	amendmentBonus      = 40
	crossReferenceBonus = 30
	sharedLabelBonus    = 5
	lexicalOverlapCap   = 20
	minScore            = 10

	recentWindow      = 30 * 24 * time.Hour
	recentBonus       = 10
	olderWindow       = 90 * 24 * time.Hour
	olderBonus        = 5
	minOverlapWordLen = 5
)

// amendmentTitle is the lexical signal that one act modifies another.
var amendmentTitle = []string{
	"amending", "amendment", "implementing", "supplementing",
	"delegated", "delegating", "corrigendum",
}

type Options struct {
	MaxResults int
	// Now anchors the recency bonus; zero means time.Now().
	Now time.Time
}

// FindRelated ranks corpus candidates against target, descending by score.
// At most MaxResults matches are returned, all scoring above the retention
// threshold. Ties keep input order, so repeated runs over an unchanged
// corpus yield identical output.
func FindRelated(target models.DocumentItem, corpus []models.DocumentItem, opts Options) []models.RelatedMatch {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	targetText := target.Text()
	targetRefs := reference.ExtractReferences(targetText)
	targetID, targetHasID := reference.ExtractInstrumentID(targetText)
	targetLabels := labelSet(target)
	targetWords := overlapWords(targetText)

	var matches []models.RelatedMatch
	for _, candidate := range corpus {
		if candidate.Key() == target.Key() {
			continue
		}

		candidateText := candidate.Text()
		candidateRefs := reference.ExtractReferences(candidateText)

		score := 0
		var rel models.Relationship

		if targetHasID {
			if id, ok := reference.ExtractInstrumentID(candidateText); ok && reference.SameInstrument(targetID, id) {
				score += sameInstrumentBonus
				rel = models.RelationSameRegulation
			}
		}

		if anyReferenceIn(targetRefs, candidateText, candidateRefs) {
			score += crossReferenceBonus
			if rel == "" {
				rel = models.RelationReferences
			}
		}
		candidateRefsInTarget := anyReferenceIn(candidateRefs, targetText, targetRefs)
		if candidateRefsInTarget {
			score += crossReferenceBonus
			if rel == "" {
				rel = models.RelationReferencedBy
			}
		}

		// The amendment tag wins over any relationship set above: a title
		// that says "amending" is the stronger signal about why the two
		// documents belong together.
		if candidateRefsInTarget && isAmendmentTitle(candidate.Title) {
			score += amendmentBonus
			rel = models.RelationAmendment
		}

		score += sharedLabelBonus * countShared(targetLabels, labelSet(candidate))

		overlap := lexicalOverlapCap
		if n := 2 * countShared(targetWords, overlapWords(candidateText)); n < overlap {
			overlap = n
		}
		score += overlap

		if !candidate.Published.IsZero() {
			age := now.Sub(candidate.Published)
			// Feeds sometimes carry future publication dates; treat them as
			// published right now.
			if age < 0 {
				age = 0
			}
			switch {
			case age <= recentWindow:
				score += recentBonus
			case age <= olderWindow:
				score += olderBonus
			}
		}

		if score <= minScore {
			continue
		}
		if rel == "" {
			rel = models.RelationRelated
		}
		matches = append(matches, models.RelatedMatch{
			Candidate:    candidate,
			Score:        score,
			Relationship: rel,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > opts.MaxResults {
		matches = matches[:opts.MaxResults]
	}
	return matches
}

// anyReferenceIn reports whether any of refs appears in the other
// document, either as a substring of its text or as a member of its own
// extracted reference set. The normalized citation drops the "(EU)" infix,
// so a pure substring test would miss the most common phrasing.
func anyReferenceIn(refs []string, text string, otherRefs []string) bool {
	if len(refs) == 0 {
		return false
	}
	otherSet := make(map[string]bool, len(otherRefs))
	for _, r := range otherRefs {
		otherSet[r] = true
	}
	for _, r := range refs {
		if otherSet[r] || strings.Contains(text, r) {
			return true
		}
	}
	return false
}

func isAmendmentTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, keyword := range amendmentTitle {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func labelSet(item models.DocumentItem) map[string]bool {
	labels := make(map[string]bool, len(item.Tags)+len(item.Categories))
	for _, t := range item.Tags {
		labels[strings.ToLower(t)] = true
	}
	for _, c := range item.Categories {
		labels[strings.ToLower(c)] = true
	}
	return labels
}

// overlapWords collects the lowercased words longer than four characters.
func overlapWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:()[]\"'")
		if len(w) >= minOverlapWordLen {
			words[w] = true
		}
	}
	return words
}

func countShared(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}
