package features

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"phish-feature-poc/evidence"
)

// Page features. Each returns its Table default when no document was fetched.

func redirecting(ev *evidence.Evidence, _ time.Time) int {
	if ev.HTTP == nil {
		return 0
	}
	return b2i(ev.HTTP.Redirects >= 1)
}

func favicon(ev *evidence.Evidence, _ time.Time) int {
	doc := ev.Document()
	if doc == nil {
		return 1
	}
	link := doc.Find("link[rel]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		return strings.EqualFold(strings.TrimSpace(rel), "shortcut icon")
	}).First()
	if link.Length() == 0 {
		link = doc.Find("link[rel]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			rel, _ := s.Attr("rel")
			for _, tok := range strings.Fields(rel) {
				if strings.EqualFold(tok, "icon") {
					return true
				}
			}
			return false
		}).First()
	}
	href, ok := link.Attr("href")
	if !ok {
		return 1
	}
	return b2i(!strings.Contains(href, ".ico"))
}

// anyAttrContains reports whether some element matched by selector carries a
// non-empty attr containing needle.
func anyAttrContains(ev *evidence.Evidence, selector, attr, needle string) int {
	doc := ev.Document()
	if doc == nil {
		return 0
	}
	found := false
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr(attr)
		found = v != "" && strings.Contains(v, needle)
		return !found
	})
	return b2i(found)
}

func requestURL(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "form[action]", "action", "http")
}

func anchorURL(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "a[href]", "href", "http")
}

func linksInScriptTags(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "script[src]", "src", "http")
}

func serverFormHandler(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "form[action]", "action", "mailto")
}

func infoEmail(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "a[href]", "href", "mailto:")
}

func statusBarCust(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "script[src]", "src", "onmouseover")
}

func usingPopupWindow(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "script[src]", "src", "window.open")
}

func iframeRedirection(ev *evidence.Evidence, _ time.Time) int {
	return anyAttrContains(ev, "iframe[src]", "src", "http")
}

func websiteForwarding(ev *evidence.Evidence, _ time.Time) int {
	doc := ev.Document()
	if doc == nil {
		return 0
	}
	found := false
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		content, ok := s.Attr("content")
		found = ok && strings.EqualFold(strings.TrimSpace(equiv), "refresh") && strings.Contains(content, "http")
		return !found
	})
	return b2i(found)
}

func disableRightClick(ev *evidence.Evidence, _ time.Time) int {
	doc := ev.Document()
	if doc == nil {
		return 0
	}
	return b2i(doc.Find("body[oncontextmenu]").Length() > 0)
}

// linksPointingToPage counts anchors whose href is exactly the input URL,
// falling back to images whose src is when there are none. It is a count,
// not a flag.
func linksPointingToPage(ev *evidence.Evidence, _ time.Time) int {
	doc := ev.Document()
	if doc == nil || ev.URL == "" {
		return 0
	}
	if n := countAttrEquals(doc, "a[href]", "href", ev.URL); n > 0 {
		return n
	}
	return countAttrEquals(doc, "img[src]", "src", ev.URL)
}

func countAttrEquals(doc *goquery.Document, selector, attr, want string) int {
	return doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr(attr)
		return v == want
	}).Length()
}

func statsReport(ev *evidence.Evidence, _ time.Time) int {
	doc := ev.Document()
	if doc == nil {
		return 0
	}
	return b2i(doc.Find("meta[name]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		return strings.EqualFold(name, "alexa")
	}).Length() > 0)
}
