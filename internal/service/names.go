package service

import (
	"fmt"
	"regexp"

	"filedrop/internal/domain"
)

var generatedPrefix = map[domain.Tier]*regexp.Regexp{
	domain.TierPublic:  regexp.MustCompile(`^uploads/[a-f0-9\-]+-`),
	domain.TierPrivate: regexp.MustCompile(`^private/[a-f0-9\-]+-`),
}

// DisplayName strips the tier prefix and the generated id from an object key.
func DisplayName(key string, tier domain.Tier) string {
	re, ok := generatedPrefix[tier]
	if !ok {
		re = generatedPrefix[domain.TierPublic]
	}
	return re.ReplaceAllString(key, "")
}

// FormatExpiry renders a duration in seconds using the largest whole unit.
func FormatExpiry(seconds int64) string {
	switch {
	case seconds < 60:
		return plural(seconds, "second")
	case seconds < 60*60:
		return plural(seconds/60, "minute")
	case seconds < 24*60*60:
		return plural(seconds/(60*60), "hour")
	default:
		return plural(seconds/(24*60*60), "day")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
