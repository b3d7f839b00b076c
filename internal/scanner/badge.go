package scanner

import (
	"errors"
	"strconv"
	"strings"
)

// Badge codes wrap the employee id in a fixed vendor prefix and suffix so a
// stray barcode scan cannot be mistaken for one.
const (
	badgePrefix = "Alptraum"
	badgeSuffix = "Technologies"
)

// ErrBadBadge indicates input that is not a valid badge code.
var ErrBadBadge = errors.New("scanner: malformed badge code")

// EncodeBadge renders the badge code for an employee id.
func EncodeBadge(employeeID uint) string {
	return badgePrefix + strconv.FormatUint(uint64(employeeID), 10) + badgeSuffix
}

// DecodeBadge extracts the employee id from a scanned badge code.
func DecodeBadge(code string) (uint, error) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, badgePrefix) || !strings.HasSuffix(code, badgeSuffix) {
		return 0, ErrBadBadge
	}

	digits := code[len(badgePrefix) : len(code)-len(badgeSuffix)]
	if digits == "" {
		return 0, ErrBadBadge
	}

	id, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, ErrBadBadge
	}
	return uint(id), nil
}
