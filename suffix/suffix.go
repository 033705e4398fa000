// Package suffix resolves host names against a public suffix list.
package suffix

import (
	"fmt"
	"net"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// Annotation is the registered-domain breakdown of a host,
// e.g. www.example.co.uk -> {example.co.uk, co.uk, www}.
type Annotation struct {
	RegisteredDomain string
	TopLevelDomain   string
	Subdomain        string
}

// List is a parsed public suffix list. It is never modified after Load and is
// safe to share between goroutines.
type List struct {
	rules *publicsuffix.List
	path  string
}

// Load parses the list file at path, including the private-domain section.
func Load(path string) (*List, error) {
	rules, err := publicsuffix.NewListFromFile(path, &publicsuffix.ParserOption{PrivateDomains: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load public suffix list %s: %w", path, err)
	}
	if rules.Size() == 0 {
		return nil, fmt.Errorf("public suffix list %s contains no rules", path)
	}
	return &List{rules: rules, path: path}, nil
}

// Path is the file the list was loaded from.
func (l *List) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Size is the number of rules in the list.
func (l *List) Size() int {
	if l == nil {
		return 0
	}
	return l.rules.Size()
}

// Lookup annotates host. It reports false for a nil list, an IP literal, a bare
// public suffix or a host no rule matches.
func (l *List) Lookup(host string) (Annotation, bool) {
	if l == nil {
		return Annotation{}, false
	}

	host = strings.ToLower(strings.TrimSuffix(strings.Trim(host, "[]"), "."))
	if host == "" || net.ParseIP(host) != nil {
		return Annotation{}, false
	}

	name, err := publicsuffix.ParseFromListWithOptions(l.rules, host, &publicsuffix.FindOptions{IgnorePrivate: false})
	if err != nil || name == nil || name.SLD == "" {
		return Annotation{}, false
	}

	return Annotation{
		RegisteredDomain: name.SLD + "." + name.TLD,
		TopLevelDomain:   name.TLD,
		Subdomain:        name.TRD,
	}, true
}
