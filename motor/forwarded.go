package motor

import (
	"net"
	"strconv"
	"strings"
)

// forwardedElement is the first element of an RFC 7239 Forwarded header.
type forwardedElement struct {
	For   string
	Host  string
	Proto string
	By    string
}

// parseForwarded reads the first element of the first Forwarded header value.
// Parameter names are case-insensitive; values may be quoted.
func parseForwarded(value string) (forwardedElement, bool) {
	var elem forwardedElement
	found := false

	first, _ := splitUnquoted(value, ',')
	for _, pair := range splitAllUnquoted(first, ';') {
		name, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		val = unquote(strings.TrimSpace(val))
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "for":
			elem.For = val
		case "host":
			elem.Host = val
		case "proto":
			elem.Proto = strings.ToLower(val)
		case "by":
			elem.By = val
		default:
			continue
		}
		found = true
	}
	return elem, found
}

// forwardedNode turns a for= node ("192.0.2.43", "[2001:db8::1]:4711", "_hidden")
// into an address, an IP if it is one, and a port if it is numeric.
func forwardedNode(node string) (address, ip string, port int) {
	address = node
	host := node
	if h, p, err := net.SplitHostPort(node); err == nil {
		host = h
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	host = strings.Trim(host, "[]")
	if parsed := net.ParseIP(host); parsed != nil {
		address = host
		ip = parsed.String()
	}
	return address, ip, port
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		return strings.ReplaceAll(s, `\"`, `"`)
	}
	return s
}

// splitUnquoted splits s at the first sep that is outside double quotes.
func splitUnquoted(s string, sep byte) (string, string) {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}

func splitAllUnquoted(s string, sep byte) []string {
	var parts []string
	for s != "" {
		var part string
		part, s = splitUnquoted(s, sep)
		parts = append(parts, part)
	}
	return parts
}
