package tempo

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date used as snapshot and ledger key.
const DateLayout = "2006-01-02"

// State is the Tempo colour of a day, cheapest to most expensive.
type State int

const (
	Blue State = iota + 1
	White
	Red
)

// ParseFeedLabel maps the feed vocabulary (BLUE/WHITE/RED) to a State.
// Unknown labels report ok=false.
func ParseFeedLabel(s string) (State, bool) {
	switch s {
	case "BLUE":
		return Blue, true
	case "WHITE":
		return White, true
	case "RED":
		return Red, true
	default:
		return 0, false
	}
}

// Token is the French upper-case token published on MQTT.
// These values are part of the wire format.
func (s State) Token() string {
	switch s {
	case Blue:
		return "BLEU"
	case White:
		return "BLANC"
	case Red:
		return "ROUGE"
	default:
		return ""
	}
}

func parseToken(s string) (State, bool) {
	switch s {
	case "BLEU":
		return Blue, true
	case "BLANC":
		return White, true
	case "ROUGE":
		return Red, true
	default:
		return 0, false
	}
}

func (s State) String() string {
	switch s {
	case Blue:
		return "blue"
	case White:
		return "white"
	case Red:
		return "red"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Day is one dated Tempo colour. It is a comparable value.
type Day struct {
	Date  string
	State State
	t     time.Time
}

// NewDay builds a Day from an ISO date.
func NewDay(date string, state State) (Day, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return Day{}, fmt.Errorf("tempo: invalid date %q: %w", date, err)
	}
	return Day{Date: date, State: state, t: t}, nil
}

// Time is midnight UTC of the day.
func (d Day) Time() time.Time { return d.t }

// Render returns the French sentence announcing the day relative to now.
func (d Day) Render() string { return d.RenderAt(time.Now()) }

// RenderAt renders the day as seen at now: the current UTC date gets the
// "Aujourd'hui ... est" form, any other date "Demain ... sera".
func (d Day) RenderAt(now time.Time) string {
	prefix, verb := "Demain", "sera"
	if d.Date == now.UTC().Format(DateLayout) {
		prefix, verb = "Aujourd'hui", "est"
	}
	date := frenchDate(d.t)

	switch d.State {
	case White:
		return fmt.Sprintf("%s %s %s blanc 🏳️. Tarif intermédiaire.", prefix, date, verb)
	case Red:
		return fmt.Sprintf("%s %s %s rouge ♨️. Tarif maximal.", prefix, date, verb)
	default:
		return fmt.Sprintf("%s %s %s bleu 🌊. Tarif minimal.", prefix, date, verb)
	}
}

var (
	frWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}
	frMonths   = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}
)

// frenchDate formats t like "mercredi 25 décembre 2024".
func frenchDate(t time.Time) string {
	return fmt.Sprintf("%s %02d %s %d", frWeekdays[t.Weekday()], t.Day(), frMonths[t.Month()-1], t.Year())
}

// Payload encodes the day for the publish channel:
//
//	{'day' : '2024-12-25' , 'state' : 'ROUGE'}
func (d Day) Payload() string {
	return fmt.Sprintf("{'day' : '%s' , 'state' : '%s'}", d.Date, d.State.Token())
}

var rePayload = regexp.MustCompile(`^\{\s*'day'\s*:\s*'([0-9]{4}-[0-9]{2}-[0-9]{2})'\s*,\s*'state'\s*:\s*'([A-Z]+)'\s*\}$`)

// DecodePayload parses a publish-channel payload back into a Day.
func DecodePayload(s string) (Day, error) {
	m := rePayload.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Day{}, fmt.Errorf("tempo: malformed payload %q", s)
	}
	st, ok := parseToken(m[2])
	if !ok {
		return Day{}, fmt.Errorf("tempo: unknown state token %q", m[2])
	}
	return NewDay(m[1], st)
}
