package data

import "net"

// CountryLookup defines the interface for IP-to-country resolution.
type CountryLookup interface {
	// LookupCountry returns the ISO 3166-1 alpha-2 country code for the
	// given IP address. An empty code with a nil error means the address
	// is not in the geo database; errors are reserved for real lookup
	// failures.
	LookupCountry(ip net.IP) (string, error)

	// Close releases any resources held by the lookup implementation.
	Close() error
}
