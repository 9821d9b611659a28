package payment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referencePrefix = "crs"

var nonceRe = regexp.MustCompile(`^[0-9a-f]{16}$`)

// Reference identifies one checkout attempt. Its string form is
// crs-<courseID>-<buyerID>-<unixMillis>-<nonce>.
type Reference struct {
	CourseID uint
	BuyerID  uint
	IssuedAt time.Time
	Nonce    string
}

// NewReference returns a reference that is unique per call, even for the
// same course, buyer and millisecond.
func NewReference(courseID, buyerID uint, now time.Time) Reference {
	id := uuid.New()
	return Reference{
		CourseID: courseID,
		BuyerID:  buyerID,
		IssuedAt: now.UTC().Truncate(time.Millisecond),
		Nonce:    strings.ReplaceAll(id.String(), "-", "")[:16],
	}
}

func (r Reference) String() string {
	return fmt.Sprintf("%s-%d-%d-%d-%s", referencePrefix, r.CourseID, r.BuyerID, r.IssuedAt.UnixMilli(), r.Nonce)
}

// ParseReference validates every field of a reference produced by
// NewReference.
func ParseReference(s string) (Reference, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 5 || parts[0] != referencePrefix {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}

	courseID, err := parsePositiveID(parts[1])
	if err != nil {
		return Reference{}, fmt.Errorf("%w: course id: %v", ErrInvalidReference, err)
	}
	buyerID, err := parsePositiveID(parts[2])
	if err != nil {
		return Reference{}, fmt.Errorf("%w: buyer id: %v", ErrInvalidReference, err)
	}
	millis, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || millis <= 0 {
		return Reference{}, fmt.Errorf("%w: timestamp %q", ErrInvalidReference, parts[3])
	}
	if !nonceRe.MatchString(parts[4]) {
		return Reference{}, fmt.Errorf("%w: nonce %q", ErrInvalidReference, parts[4])
	}

	return Reference{
		CourseID: courseID,
		BuyerID:  buyerID,
		IssuedAt: time.UnixMilli(millis).UTC(),
		Nonce:    parts[4],
	}, nil
}

func parsePositiveID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return uint(v), nil
}
