package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyCandidate is returned when a candidate line carries no identifier.
var ErrEmptyCandidate = errors.New("empty candidate")

var (
	numericRe = regexp.MustCompile(`^[0-9]+$`)
	idHashRe  = regexp.MustCompile(`^([0-9]+):(-?[0-9]+)$`)
	handleRe  = regexp.MustCompile(`^[A-Za-z0-9_]{4,}$`)
)

// Candidate is a prospective invitee. Exactly one of UserID or Username is set
// for recognised forms; anything else is kept only as Raw.
type Candidate struct {
	Raw        string
	UserID     int64
	AccessHash int64
	HasHash    bool
	Username   string
}

// ParseCandidate normalizes one of the accepted literal forms:
// numeric id, "id:accesshash", "@username" or a bare handle of at least 4 chars.
func ParseCandidate(s string) (Candidate, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Candidate{}, ErrEmptyCandidate
	}

	c := Candidate{Raw: raw}

	if m := idHashRe.FindStringSubmatch(raw); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Candidate{}, fmt.Errorf("parse candidate id %q: %w", raw, err)
		}
		hash, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return Candidate{}, fmt.Errorf("parse candidate access hash %q: %w", raw, err)
		}
		c.UserID, c.AccessHash, c.HasHash = id, hash, true
		return c, nil
	}

	if numericRe.MatchString(raw) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Candidate{}, fmt.Errorf("parse candidate id %q: %w", raw, err)
		}
		c.UserID = id
		return c, nil
	}

	if name, ok := strings.CutPrefix(raw, "@"); ok {
		if name != "" {
			c.Username = name
		}
		return c, nil
	}

	if handleRe.MatchString(raw) {
		c.Username = raw
	}
	return c, nil
}

// Key returns the stable lookup key used by the ledger and the exclusion cache.
func (c Candidate) Key() string {
	switch {
	case c.UserID != 0:
		return "id:" + strconv.FormatInt(c.UserID, 10)
	case c.Username != "":
		return "u:" + strings.ToLower(c.Username)
	default:
		return "raw:" + c.Raw
	}
}

// IsUsername reports whether the candidate is addressed by username.
func (c Candidate) IsUsername() bool {
	return c.UserID == 0 && c.Username != ""
}

func (c Candidate) String() string {
	if c.IsUsername() {
		return "@" + c.Username
	}
	if c.UserID != 0 {
		return strconv.FormatInt(c.UserID, 10)
	}
	return c.Raw
}
