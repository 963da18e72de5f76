package chatid

import (
	"errors"
	"strings"
)

// Separator joins the two participant ids of a conversation key.
const Separator = "-"

var ErrInvalidParticipant = errors.New("invalid participant id")

// Derive returns the canonical conversation key for a user/nutritionist pair.
// The two ids are sorted lexicographically before joining, so both
// participants compute the same key regardless of argument order.
func Derive(userID, nutritionistID string) (string, error) {
	if err := validate(userID); err != nil {
		return "", err
	}
	if err := validate(nutritionistID); err != nil {
		return "", err
	}

	lo, hi := userID, nutritionistID
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + Separator + hi, nil
}

func validate(id string) error {
	if id == "" {
		return ErrInvalidParticipant
	}
	// An id carrying the separator would make the joined key ambiguous.
	if strings.Contains(id, Separator) {
		return ErrInvalidParticipant
	}
	return nil
}
