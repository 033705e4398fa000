package model

// Network describes how the request reached us.
type Network struct {
	// Type is the address family, "ipv4" or "ipv6"
	Type string

	// Transport is "tcp" or "udp"
	Transport string

	// IANANumber is the IP protocol number matching Transport
	IANANumber *int

	// Protocol is the application protocol, "http" unless the agent reported a scheme
	Protocol string

	// Direction is "ingress" for directly captured requests
	Direction string
}

// URL is the request URL split into ECS fields.
type URL struct {
	// Original is the request target exactly as sent
	Original string

	// Full is the reconstructed absolute URL
	Full string

	Scheme   string
	Domain   string
	Port     int
	Path     string
	Query    string
	Fragment string

	// RegisteredDomain, TopLevelDomain and Subdomain are only set when a public suffix list is loaded
	RegisteredDomain string
	TopLevelDomain   string
	Subdomain        string
}
