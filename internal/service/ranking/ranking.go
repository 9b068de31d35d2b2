// Package ranking holds the composite relevance score used to order search
// results. The weights are fixed policy constants; the SQL expression the
// repository embeds in its queries and the Go reference implementation are
// both derived from them, so the two code paths cannot drift apart.
package ranking

import (
	"fmt"
	"math"

	"github.com/gastromap/discovery-api/internal/entity"
)

// Component weights. They sum to 1 so the score stays in [0, 1].
const (
	DistanceWeight     = 0.35
	QualityWeight      = 0.40
	SubscriptionWeight = 0.25
)

// Quality sub-weights. Rating dominates; review count acts as a confidence
// signal saturating at ReviewSaturation reviews.
const (
	ratingShare      = 0.7
	reviewShare      = 0.3
	maxRating        = 5.0
	ReviewSaturation = 200
)

// Establishments with no quality signals yet score zero on the quality
// component. A new listing has to earn rank through reviews; a paid tier
// still lets it surface through the subscription component.
var tierWeights = map[entity.SubscriptionTier]float64{
	entity.TierFree:    0.0,
	entity.TierPremium: 0.6,
	entity.TierElite:   1.0,
}

// TierWeight returns the subscription component for a tier. Unknown tiers
// rank as free.
func TierWeight(tier entity.SubscriptionTier) float64 {
	return tierWeights[tier]
}

// DistanceComponent maps a distance to [0, 1], closer meaning higher. The
// normalizer is the search radius for list view and the half-diagonal of the
// box for map view.
func DistanceComponent(distanceMeters, normalizerMeters float64) float64 {
	if normalizerMeters <= 0 {
		return 0
	}
	return 1 - math.Min(distanceMeters/normalizerMeters, 1)
}

// QualityComponent combines the average rating with a saturating review
// count. Nil signals are treated as lowest quality.
func QualityComponent(rating *float64, reviewCount *int) float64 {
	var r, n float64
	if rating != nil {
		r = *rating
	}
	if reviewCount != nil {
		n = float64(*reviewCount)
	}
	return r/maxRating*ratingShare + math.Min(n, ReviewSaturation)/ReviewSaturation*reviewShare
}

// Score is the in-process reference implementation of the composite score.
// The repository computes the identical expression inside the query; this
// form exists for tests and for verifying ordering invariants.
func Score(distanceMeters, normalizerMeters float64, rating *float64, reviewCount *int, tier entity.SubscriptionTier) float64 {
	return DistanceWeight*DistanceComponent(distanceMeters, normalizerMeters) +
		QualityWeight*QualityComponent(rating, reviewCount) +
		SubscriptionWeight*TierWeight(tier)
}

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two WGS84
// coordinates. Used to size the map-view normalizer (half the box diagonal)
// before the query runs.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// SQLExpression renders the score as a SQL expression over the given
// distance expression (meters) and normalizer placeholder. Column references
// assume the establishments table is in scope.
func SQLExpression(distanceExpr, normalizerExpr string) string {
	return fmt.Sprintf(
		"(%.2f * (1 - LEAST(%s / %s, 1))"+
			" + %.2f * (COALESCE(rating, 0) / %.1f * %.1f + LEAST(COALESCE(review_count, 0), %d) / %d.0 * %.1f)"+
			" + %.2f * (CASE subscription_tier WHEN 'elite' THEN 1.0 WHEN 'premium' THEN 0.6 ELSE 0.0 END))",
		DistanceWeight, distanceExpr, normalizerExpr,
		QualityWeight, maxRating, ratingShare, ReviewSaturation, ReviewSaturation, reviewShare,
		SubscriptionWeight,
	)
}
