package features

import (
	"math"
	"time"

	"phish-feature-poc/evidence"
)

const yearDays = 365

// wholeDays floors to whole days, so a span of -1h counts as -1 day.
func wholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

func domainRegLen(ev *evidence.Evidence, now time.Time) int {
	if ev.Registration == nil || ev.Registration.Expires == nil {
		return 0
	}
	return b2i(wholeDays(ev.Registration.Expires.Sub(now)) <= yearDays)
}

func ageOfDomain(ev *evidence.Evidence, now time.Time) int {
	if ev.Registration == nil || ev.Registration.Created == nil {
		return 0
	}
	return b2i(wholeDays(now.Sub(*ev.Registration.Created)) <= yearDays)
}

func dnsRecording(ev *evidence.Evidence, _ time.Time) int {
	if ev.Registration == nil {
		return 0
	}
	return b2i(len(ev.Registration.NameServers) > 0)
}
