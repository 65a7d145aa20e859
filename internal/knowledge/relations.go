package knowledge

import "math"

// RelationSemanticSimilarity is the fallback tag applied when no specific
// rule fires for a pair above the similarity threshold.
const RelationSemanticSimilarity = "semantic_similarity"

// Relation tags. A pair may carry several.
const (
	RelationRecalls           = "recalls"
	RelationSelfReference     = "self_reference"
	RelationBuildsOn          = "builds_on"
	RelationEvolves           = "evolves"
	RelationEmotionallyLinked = "emotionally_linked"
	RelationEmotionalShift    = "emotional_shift"
	RelationComfortZone       = "comfort_zone"
	RelationContradicts       = "contradicts"
	RelationBoundaryViolation = "boundary_violation"
	RelationHabitual          = "habitual"
	RelationReaffirms         = "reaffirms"
	RelationTopicCluster      = "topic_cluster"
	RelationTimeLinked        = "time_linked"
)

// relationRule pairs a tag with its predicate over (source, candidate)
// attributes. Rules are independent: each is evaluated on every pair, and
// order only determines tag order in the result.
type relationRule struct {
	tag   string
	match func(src, dst Attributes) bool
}

var relationRules = []relationRule{
	{RelationRecalls, func(src, dst Attributes) bool {
		return src.Disclosure && dst.Disclosure &&
			sharedTopicCount(src.Topics, dst.Topics) >= 1 &&
			src.LanguageStyle == "reflective" && dst.LanguageStyle == "reflective"
	}},
	{RelationSelfReference, func(src, dst Attributes) bool {
		return src.SelfAwareness && dst.SelfAwareness
	}},
	{RelationBuildsOn, buildsOn},
	{RelationEvolves, func(src, dst Attributes) bool {
		return buildsOn(src, dst) &&
			math.Abs(src.SentimentScore-dst.SentimentScore) > 0.5
	}},
	{RelationEmotionallyLinked, func(src, dst Attributes) bool {
		return src.EmotionalIntensity == dst.EmotionalIntensity &&
			sharedTopicCount(src.Topics, dst.Topics) >= 1
	}},
	{RelationEmotionalShift, func(src, dst Attributes) bool {
		return math.Abs(src.SentimentScore-dst.SentimentScore) > 0.6 &&
			sharedTopicCount(src.Topics, dst.Topics) >= 1
	}},
	{RelationComfortZone, func(src, dst Attributes) bool {
		return src.Ritual && src.EmotionalIntensity == IntensityLow &&
			src.SentimentScore >= 0 && dst.EmotionalIntensity == IntensityHigh
	}},
	{RelationContradicts, func(src, dst Attributes) bool {
		return src.SentimentScore*dst.SentimentScore < 0 &&
			sharedTopicCount(src.Topics, dst.Topics) >= 1
	}},
	{RelationBoundaryViolation, func(src, dst Attributes) bool {
		return src.BoundaryDiscussion && dst.EmotionalIntensity == IntensityHigh
	}},
	{RelationHabitual, func(src, dst Attributes) bool {
		return src.Ritual && dst.Ritual && sharedTopicCount(src.Topics, dst.Topics) >= 1
	}},
	{RelationReaffirms, func(src, dst Attributes) bool {
		return sharedTopicCount(src.Topics, dst.Topics) >= 1 &&
			math.Abs(src.SentimentScore-dst.SentimentScore) < 0.1 &&
			math.Abs(src.Importance-dst.Importance) < 0.1
	}},
	{RelationTopicCluster, func(src, dst Attributes) bool {
		return sharedTopicCount(src.Topics, dst.Topics) >= 2
	}},
	{RelationTimeLinked, func(src, dst Attributes) bool {
		srcT, okA := ParseTimestamp(src.Timestamp)
		dstT, okB := ParseTimestamp(dst.Timestamp)
		if !okA || !okB {
			// Malformed timestamps disable only this rule for the pair.
			return false
		}
		days := int(math.Abs(srcT.Sub(dstT).Hours()) / 24)
		return days > 0 && days <= 3
	}},
}

// buildsOn requires both memories to be recurring themes on a shared topic,
// with the candidate strictly older than the source. Timestamps are compared
// as parsed dates; pairs with unparseable timestamps never build on each
// other.
func buildsOn(src, dst Attributes) bool {
	if !src.RecurringTheme || !dst.RecurringTheme ||
		sharedTopicCount(src.Topics, dst.Topics) < 1 {
		return false
	}
	srcT, okA := ParseTimestamp(src.Timestamp)
	dstT, okB := ParseTimestamp(dst.Timestamp)
	return okA && okB && dstT.Before(srcT)
}

// ClassifyRelation evaluates every rule on the pair and returns the matching
// tags, falling back to ["semantic_similarity"] when none fire.
func ClassifyRelation(src, dst Attributes) []string {
	var tags []string
	for _, rule := range relationRules {
		if rule.match(src, dst) {
			tags = append(tags, rule.tag)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, RelationSemanticSimilarity)
	}
	return tags
}

func sharedTopicCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
			delete(set, t) // count distinct shared topics once
		}
	}
	return n
}
