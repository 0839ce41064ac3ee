package analysis

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/text/language"

	"walkability/internal/types"
)

// tonePriority orders candidate cards: a strength first, then the most
// severe problems.
var tonePriority = map[types.Tone]int{
	types.TonePositive: 0,
	types.ToneDanger:   1,
	types.ToneWarning:  2,
	types.ToneNeutral:  3,
}

// ToneFor classifies a category score. Obstruction is inverted: a low score
// means a cluttered path.
func ToneFor(c types.Category, score float64) types.Tone {
	if c == types.CategoryObstruction {
		switch {
		case score < 40:
			return types.ToneDanger
		case score < 60:
			return types.ToneWarning
		case score < 75:
			return types.ToneNeutral
		default:
			return types.TonePositive
		}
	}

	switch {
	case score >= 75:
		return types.TonePositive
	case score >= 60:
		return types.ToneNeutral
	case score >= 40:
		return types.ToneWarning
	default:
		return types.ToneDanger
	}
}

// CategoryAverages averages the present scores of each category. Categories
// with no observations are absent from the result.
func CategoryAverages(scores []types.SegmentScore) map[types.Category]float64 {
	sums := make(map[types.Category]float64)
	counts := make(map[types.Category]int)
	for _, s := range scores {
		for _, c := range types.Categories {
			if v, ok := s.Score(c); ok {
				sums[c] += v
				counts[c]++
			}
		}
	}

	avgs := make(map[types.Category]float64, len(counts))
	for c, n := range counts {
		avgs[c] = sums[c] / float64(n)
	}
	return avgs
}

// GenerateCards builds at most maxCards cards ordered by tone priority, ties
// kept in canonical category order.
func GenerateCards(scores []types.SegmentScore, lang language.Tag, maxCards int, confidence float64) []types.AnalysisCard {
	avgs := CategoryAverages(scores)

	cards := make([]types.AnalysisCard, 0, len(avgs))
	for _, c := range types.Categories {
		avg, ok := avgs[c]
		if !ok {
			continue
		}
		score := int(math.Round(avg))
		tone := ToneFor(c, float64(score))
		text := cardCopy(lang, c, tone)
		cards = append(cards, types.AnalysisCard{
			Category:    c,
			Title:       text.title,
			Description: text.description,
			Tone:        tone,
			Score:       score,
			Confidence:  confidence,
		})
	}

	slices.SortStableFunc(cards, func(a, b types.AnalysisCard) int {
		return tonePriority[a.Tone] - tonePriority[b.Tone]
	})
	if len(cards) > maxCards {
		cards = cards[:maxCards]
	}

	for i := range cards {
		cards[i].ID = cardID(cards[i].Category, i+1)
	}
	return cards
}

func cardID(c types.Category, rank int) string {
	prefix := string(c)
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return fmt.Sprintf("c_%s_%d", prefix, rank)
}
