package evidence

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"
	"golang.org/x/net/publicsuffix"
)

// RegistryLookup returns the registration record for a host.
type RegistryLookup interface {
	Lookup(ctx context.Context, host string) (*Registration, error)
}

// whoisDateLayouts covers the formats registries commonly return.
var whoisDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02",
	"02-Jan-2006",
	"02-Jan-2006 15:04:05 MST",
	"2006.01.02",
	"2006.01.02 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"January 2 2006",
	"Mon Jan 2 15:04:05 MST 2006",
}

// WhoisLookup queries WHOIS servers and parses the raw response.
type WhoisLookup struct {
	query func(domain string) (string, error)
}

// NewWhoisLookup creates a lookup whose queries give up after timeout.
func NewWhoisLookup(timeout time.Duration) *WhoisLookup {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := whois.NewClient().SetTimeout(timeout)
	return &WhoisLookup{query: func(domain string) (string, error) {
		return client.Whois(domain)
	}}
}

// NewWhoisLookupFunc builds a lookup around a custom raw query, e.g. a
// canned response in tests or a WHOIS proxy.
func NewWhoisLookupFunc(query func(domain string) (string, error)) *WhoisLookup {
	return &WhoisLookup{query: query}
}

// Lookup implements RegistryLookup.
func (w *WhoisLookup) Lookup(ctx context.Context, host string) (*Registration, error) {
	domain := RegistrableDomain(host)
	if domain == "" {
		return nil, fmt.Errorf("no domain in host %q", host)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type answer struct {
		raw string
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		raw, err := w.query(domain)
		ch <- answer{raw, err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("whois %s: %w", domain, ctx.Err())
	case a := <-ch:
		if a.err != nil {
			return nil, fmt.Errorf("whois %s: %w", domain, a.err)
		}
		raw = a.raw
	}

	return ParseWhois(domain, raw)
}

// ParseWhois extracts registration dates and name servers from a raw WHOIS answer.
func ParseWhois(domain, raw string) (*Registration, error) {
	info, err := parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse whois %s: %w", domain, err)
	}
	if info.Domain == nil {
		return nil, fmt.Errorf("parse whois %s: no domain section", domain)
	}

	reg := &Registration{Domain: domain}
	reg.Created = whoisDate(info.Domain.CreatedDateInTime, info.Domain.CreatedDate)
	reg.Expires = whoisDate(info.Domain.ExpirationDateInTime, info.Domain.ExpirationDate)
	for _, ns := range info.Domain.NameServers {
		ns = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(ns), "."))
		if ns != "" {
			reg.NameServers = append(reg.NameServers, ns)
		}
	}
	return reg, nil
}

// whoisDate prefers the date the parser already decoded and falls back to
// whoisDateLayouts for formats it does not know.
func whoisDate(parsed *time.Time, raw string) *time.Time {
	if parsed != nil && !parsed.IsZero() {
		t := *parsed
		return &t
	}
	if t, ok := parseWhoisDate(raw); ok {
		return &t
	}
	return nil
}

func parseWhoisDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range whoisDateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RegistrableDomain reduces an authority to the name a registry knows about,
// e.g. "login.example.co.uk:8443" -> "example.co.uk". IP addresses and names
// without a public suffix are returned as-is.
func RegistrableDomain(authority string) string {
	host := Hostname(authority)
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
