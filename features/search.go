package features

import (
	"strings"
	"time"

	"phish-feature-poc/evidence"
)

// googleResultsPrefix marks a result that points back into the engine's own index.
const googleResultsPrefix = "https://www.google.com/"

func firstResult(ev *evidence.Evidence) (string, bool) {
	if ev.Search == nil || len(ev.Search.Results) == 0 {
		return "", false
	}
	return ev.Search.Results[0], true
}

func websiteTraffic(ev *evidence.Evidence, _ time.Time) int {
	r, ok := firstResult(ev)
	return b2i(ok && r != "")
}

func pageRank(ev *evidence.Evidence, _ time.Time) int {
	r, ok := firstResult(ev)
	return b2i(ok && strings.Contains(r, "rank"))
}

func googleIndex(ev *evidence.Evidence, _ time.Time) int {
	r, ok := firstResult(ev)
	return b2i(ok && strings.Contains(r, googleResultsPrefix))
}
