package model

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// StandingOvation is the sentinel stored in plays.rating for a standing
// ovation.  It outranks the numeric 0–5 moon scale.
const StandingOvation = "Standing Ovation"

// RatingKind tells the three shapes a rating can take apart.
type RatingKind uint8

const (
	Unrated RatingKind = iota
	Numeric
	Ovation
)

// String returns a lowercase name suitable for logs and JSON.
func (k RatingKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Ovation:
		return "standing_ovation"
	default:
		return "unrated"
	}
}

// MaxMoons is the top of the numeric moon scale.
const MaxMoons = 5

// ErrInvalidRating is returned by ValidateRating.
var ErrInvalidRating = errors.New(`rating must be empty, "Standing Ovation" or 0 to 5 in steps of 0.5`)

// Rating is the normalized form of the two columns the store keeps for a
// rating: the free-text rating string and the is_standing_ovation flag.
// Value is only meaningful when Kind is Numeric; it is the whole-moon part
// used for classification, while raw keeps the stored text (half moons
// included) so a save writes back exactly what was read.
type Rating struct {
	Kind  RatingKind
	Value int
	raw   string
}

// ParseRating folds the raw rating string and the standing ovation flag into
// a single Rating.  Either signal is enough for a standing ovation.  An empty
// string is unrated; anything else is numeric, read leniently (leading
// integer, unparsable text counts as 0).
func ParseRating(raw string, standingOvation bool) Rating {
	s := strings.TrimSpace(raw)
	if standingOvation || strings.EqualFold(s, StandingOvation) {
		return Rating{Kind: Ovation}
	}
	if s == "" {
		return Rating{Kind: Unrated}
	}
	return Rating{Kind: Numeric, Value: leadingInt(s), raw: s}
}

// NumericRating builds a whole-moon numeric rating.
func NumericRating(v int) Rating { return Rating{Kind: Numeric, Value: v, raw: strconv.Itoa(v)} }

// ValidateRating accepts what a client may store in plays.rating: empty,
// the standing ovation sentinel, or 0 to MaxMoons in half-moon steps.
func ValidateRating(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, StandingOvation) {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !(v >= 0 && v <= MaxMoons) || v*2 != math.Trunc(v*2) {
		return ErrInvalidRating
	}
	return nil
}

// IsRated reports whether any rating was given, including "0".
func (r Rating) IsRated() bool { return r.Kind != Unrated }

// IsStandingOvation reports whether r is the standing ovation sentinel.
func (r Rating) IsStandingOvation() bool { return r.Kind == Ovation }

// Score is the value used when ordering plays by rating.  Non-numeric
// ratings score 0.
func (r Rating) Score() int {
	if r.Kind == Numeric {
		return r.Value
	}
	return 0
}

// Raw returns the string stored in plays.rating.
func (r Rating) Raw() string {
	switch r.Kind {
	case Numeric:
		if r.raw != "" {
			return r.raw
		}
		return strconv.Itoa(r.Value)
	case Ovation:
		return StandingOvation
	default:
		return ""
	}
}

// leadingInt parses an optional sign followed by digits and ignores the rest,
// so "4" and "4.5" both read as 4.  No digits means 0.
func leadingInt(s string) int {
	i, neg := 0, false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	n, digits := 0, 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if n < 1_000_000 {
			n = n*10 + int(s[i]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0
	}
	if neg {
		return -n
	}
	return n
}
