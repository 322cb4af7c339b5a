package models

import "time"

const (
	SeasonWinter = "winter"
	SeasonSpring = "spring"
	SeasonSummer = "summer"
	SeasonAutumn = "autumn"
)

var seasons = map[string]bool{
	SeasonWinter: true,
	SeasonSpring: true,
	SeasonSummer: true,
	SeasonAutumn: true,
}

// ValidSeason accepts the four seasons and "" (all year).
func ValidSeason(s string) bool {
	return s == "" || seasons[s]
}

// SeasonOf maps a date to its season: Dec-Feb winter, Mar-May spring,
// Jun-Aug summer, Sep-Nov autumn.
func SeasonOf(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}
