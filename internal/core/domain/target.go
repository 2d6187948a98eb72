package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyTarget is returned when no destination group was given.
var ErrEmptyTarget = errors.New("empty target")

var peerIDRe = regexp.MustCompile(`^-?[0-9]+$`)

// Target is the destination group or channel of a run.
type Target struct {
	Raw      string
	Username string
	PeerID   int64
}

// ParseTarget accepts "@name", "t.me/name" links, numeric peer ids and
// anything else as a literal reference (private invite links, titles).
func ParseTarget(s string) (Target, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Target{}, ErrEmptyTarget
	}

	t := Target{Raw: raw}

	if peerIDRe.MatchString(raw) {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t.PeerID = id
			return t, nil
		}
	}

	name := raw
	for _, prefix := range []string{"https://", "http://"} {
		name = strings.TrimPrefix(name, prefix)
	}
	for _, host := range []string{"t.me/", "telegram.me/"} {
		if rest, ok := strings.CutPrefix(name, host); ok {
			name = strings.TrimSuffix(rest, "/")
			break
		}
	}
	name = strings.TrimPrefix(name, "@")

	// Invite hashes ("+abc", "joinchat/abc") have no public name.
	if handleRe.MatchString(name) {
		t.Username = name
	}
	return t, nil
}

// Key prefers the public username, then the numeric peer id, then the literal.
func (t Target) Key() string {
	switch {
	case t.Username != "":
		return "@" + strings.ToLower(t.Username)
	case t.PeerID != 0:
		return strconv.FormatInt(t.PeerID, 10)
	default:
		return t.Raw
	}
}

func (t Target) String() string {
	return t.Key()
}
