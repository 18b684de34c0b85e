package timeutil

import (
	"fmt"
	"strings"
	"time"

	// embeds the IANA database so distroless images still resolve the reference zone
	_ "time/tzdata"
)

// DefaultZone is the wall-clock zone operators schedule in.
const DefaultZone = "America/Sao_Paulo"

const (
	// WallClockLayout is the zone-less storage form used by scheduled_for and lastupdate.
	WallClockLayout = "2006-01-02 15:04:05"
	// LocalISOLayout is the zone-less ISO form sent to the automation engine.
	LocalISOLayout = "2006-01-02T15:04:05"
)

// zoneLessLayouts are accepted for input without an offset, most specific first.
var zoneLessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	LocalISOLayout,
	"2006-01-02T15:04",
	WallClockLayout,
	"2006-01-02 15:04",
}

// LoadZone resolves an IANA zone name, defaulting to DefaultZone when empty.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", name, err)
	}
	return loc, nil
}

// MustLoadZone is LoadZone for static configuration.
func MustLoadZone(name string) *time.Location {
	loc, err := LoadZone(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// FormatWallClock renders t as wall-clock text in loc.
func FormatWallClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(WallClockLayout)
}

// FormatLocalISO renders t as zone-less ISO text in loc.
func FormatLocalISO(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(LocalISOLayout)
}

// Parse reads raw as an RFC3339 instant, or as wall-clock time in loc when no
// offset is present.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range zoneLessLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", raw)
}
