package features

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"phish-feature-poc/evidence"
)

// URL and host features. None of these touch the network.

const (
	longURLMin  = 54
	shortURLMax = 27
)

func usingIP(ev *evidence.Evidence, _ time.Time) int {
	return b2i(strings.IndexFunc(ev.Host, unicode.IsDigit) >= 0)
}

func longURL(ev *evidence.Evidence, _ time.Time) int {
	return b2i(utf8.RuneCountInString(ev.URL) >= longURLMin)
}

func shortURL(ev *evidence.Evidence, _ time.Time) int {
	return b2i(utf8.RuneCountInString(ev.URL) < shortURLMax)
}

func symbolCount(ev *evidence.Evidence, _ time.Time) int {
	n := 0
	for _, r := range ev.URL {
		if strings.ContainsRune("@-?=&", r) {
			n++
		}
	}
	return n
}

func prefixSuffix(ev *evidence.Evidence, _ time.Time) int {
	return b2i(strings.Contains(ev.Host, "-"))
}

// subDomains may be negative for single-label or empty hosts.
func subDomains(ev *evidence.Evidence, _ time.Time) int {
	return len(strings.Split(ev.Host, ".")) - 2
}

func https(ev *evidence.Evidence, _ time.Time) int {
	return b2i(ev.Parts.Scheme == "https")
}

func nonStdPort(ev *evidence.Evidence, _ time.Time) int {
	// An explicit port of 0 reads as no port.
	n, err := strconv.Atoi(ev.Parts.Port)
	return b2i(ev.Parts.Port != "" && (err != nil || n != 0))
}

func httpsDomainURL(ev *evidence.Evidence, _ time.Time) int {
	return b2i(strings.HasPrefix(ev.Host, "https"))
}

func abnormalURL(ev *evidence.Evidence, _ time.Time) int {
	return b2i(strings.Contains(ev.Parts.Path, "//"))
}
