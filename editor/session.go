package editor

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ObjectRef binds a session to the calendar object it was opened from
type ObjectRef struct {
	UserID   string `msgpack:"user_id"`
	ObjectID string `msgpack:"object_id"`
	ETag     string `msgpack:"etag"`
}

// Session is the per-user editing state kept between requests. Owner is the
// user that opened it, empty for anonymous sessions.
//
// Overrides record the user's explicit choices keyed by occurrence instant
// (UnixNano). They survive "show more" because rows are renumbered when the
// horizon grows, instants are not.
type Session struct {
	ID         string         `msgpack:"id"`
	Owner      string         `msgpack:"owner"`
	RuleText   string         `msgpack:"rule_text"`
	Start      time.Time      `msgpack:"start"`
	Location   string         `msgpack:"location"`
	DateFormat string         `msgpack:"date_format"`
	Multiplier int            `msgpack:"multiplier"`
	Overrides  map[int64]bool `msgpack:"overrides"`
	ObjectRef  *ObjectRef     `msgpack:"object_ref"`
	CreatedAt  time.Time      `msgpack:"created_at"`
	UpdatedAt  time.Time      `msgpack:"updated_at"`
}

// TimeZone loads the session's location. Besides IANA names it accepts the
// fixed offset names produced for start times without a named zone.
func (s *Session) TimeZone() (*time.Location, error) {
	return loadLocation(s.Location)
}

// offsetPrefix starts the name of a zone known only by its UTC offset, as in "UTC+08:00"
const offsetPrefix = "UTC"

// offsetZone names loc after t's UTC offset when loc itself has no name,
// which is the case for times decoded from RFC 3339 text.
func offsetZone(loc *time.Location, t time.Time) *time.Location {
	if loc.String() != "" {
		return loc
	}

	_, offset := t.In(loc).Zone()
	sign := '+'
	abs := offset
	if abs < 0 {
		sign, abs = '-', -abs
	}
	name := fmt.Sprintf("%s%c%02d:%02d", offsetPrefix, sign, abs/3600, abs%3600/60)
	return time.FixedZone(name, offset)
}

func loadLocation(name string) (*time.Location, error) {
	if rest, ok := strings.CutPrefix(name, offsetPrefix); ok && rest != "" {
		if offset, ok := parseOffset(rest); ok {
			return time.FixedZone(name, offset), nil
		}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &Error{Type: ErrInvalidRequest, Message: fmt.Sprintf("unknown time zone %q", name), Err: err}
	}
	return loc, nil
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	cp := *s
	cp.Overrides = maps.Clone(s.Overrides)
	if s.ObjectRef != nil {
		ref := *s.ObjectRef
		cp.ObjectRef = &ref
	}
	return &cp
}

// override returns the user's explicit choice for an instant, if any
func (s *Session) override(instant time.Time) (excluded, ok bool) {
	excluded, ok = s.Overrides[instant.UnixNano()]
	return excluded, ok
}

// setOverride records the choice, dropping it when it equals the stored default
func (s *Session) setOverride(instant time.Time, excluded, stored bool) {
	key := instant.UnixNano()
	if excluded == stored {
		delete(s.Overrides, key)
		return
	}
	if s.Overrides == nil {
		s.Overrides = make(map[int64]bool)
	}
	s.Overrides[key] = excluded
}

// parseOffset reads "+hh:mm" or "-hh:mm" as seconds east of UTC
func parseOffset(s string) (int, bool) {
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return 0, false
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(s[4:6])
	if err != nil || minutes > 59 {
		return 0, false
	}
	offset := hours*3600 + minutes*60
	if s[0] == '-' {
		offset = -offset
	}
	return offset, true
}

// EncodeSession serializes a session snapshot for the session stores
func EncodeSession(s *Session) ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return data, nil
}

// DecodeSession restores a snapshot written by EncodeSession
func DecodeSession(data []byte) (*Session, error) {
	var s Session
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
