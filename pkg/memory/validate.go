package memory

import "github.com/orneryd/stm/pkg/errs"

// Hard validation limits from the tool surface contract.
const (
	MaxContentLen  = 50_000
	MaxTagLen      = 100
	MaxTags        = 50
	MaxEntities    = 100
	MaxSourceLen   = 500
	MaxContextLen  = 1_000
	MaxTopK        = 100
	MinTopK        = 1
	MaxWindowDays  = 3650
	MinWindowDays  = 1
)

// ValidateContent checks a memory's content against the size limit.
func ValidateContent(content string) error {
	if len(content) > MaxContentLen {
		return errs.InvalidArgument("content", "exceeds maximum length of 50000 characters")
	}
	return nil
}

// ValidateTags checks tag count and per-tag length.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return errs.InvalidArgument("tags", "exceeds maximum of 50 tags")
	}
	for _, t := range tags {
		if len(t) > MaxTagLen {
			return errs.InvalidArgument("tags", "tag exceeds maximum length of 100 characters")
		}
	}
	return nil
}

// ValidateEntities checks entity count.
func ValidateEntities(entities []string) error {
	if len(entities) > MaxEntities {
		return errs.InvalidArgument("entities", "exceeds maximum of 100 entities")
	}
	return nil
}

// ValidateSource checks the optional source string length.
func ValidateSource(source string) error {
	if len(source) > MaxSourceLen {
		return errs.InvalidArgument("source", "exceeds maximum length of 500 characters")
	}
	return nil
}

// ValidateContext checks the optional context string length.
func ValidateContext(context string) error {
	if len(context) > MaxContextLen {
		return errs.InvalidArgument("context", "exceeds maximum length of 1000 characters")
	}
	return nil
}

// ValidateTopK checks the search top_k bound.
func ValidateTopK(topK int) error {
	if topK < MinTopK || topK > MaxTopK {
		return errs.InvalidArgument("top_k", "must be between 1 and 100")
	}
	return nil
}

// ValidateWindowDays checks the search window bound.
func ValidateWindowDays(days int) error {
	if days < MinWindowDays || days > MaxWindowDays {
		return errs.InvalidArgument("window_days", "must be between 1 and 3650")
	}
	return nil
}

// ValidateScoreThreshold checks a [0,1]-bounded score threshold.
func ValidateScoreThreshold(field string, v float64) error {
	if v < 0 || v > 1 {
		return errs.InvalidArgument(field, "must be between 0 and 1")
	}
	return nil
}
