package relay

import "fmt"

// Format selects how a successful peer body is rendered.
type Format string

const (
	// FormatArrow renders "<id> -> <body>".
	FormatArrow Format = "arrow"
	// FormatLabeled renders "<id>. Response from Microservice B: <body>".
	FormatLabeled Format = "labeled"
)

// ParseFormat accepts the names used in configuration.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatArrow, FormatLabeled:
		return f, nil
	}
	return "", fmt.Errorf("unknown relay format %q", s)
}

// Identity is what a running instance says about itself in responses and logs.
type Identity struct {
	ServiceID string
	Format    Format
}

// Success renders the relayed peer body.
func (id Identity) Success(body []byte) string {
	if id.Format == FormatLabeled {
		return id.ServiceID + ". Response from Microservice B: " + string(body)
	}
	return id.ServiceID + " -> " + string(body)
}

// Failure is the fixed body sent when the peer could not be reached.
func (id Identity) Failure() string {
	return id.ServiceID + ". Failed to fetch data from Microservice B"
}
