// Package geoip resolves client IPs to ISO country codes using a local
// MaxMind database. Lookups are optional everywhere: a nil *Resolver is
// valid and resolves everything to the empty string.
package geoip

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
	"github.com/pkg/errors"
)

// Resolver wraps an open MaxMind database.
type Resolver struct {
	reader *maxminddb.Reader
}

// Open opens the MaxMind database at path.
func Open(path string) (*Resolver, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open geoip database")
	}
	return &Resolver{reader: reader}, nil
}

// Close closes the underlying database.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	return r.reader.Close()
}

// Country returns the ISO 3166-1 country code for the passed IP, or "" if
// the resolver is disabled, the IP is unparseable, or the IP is unknown.
func (r *Resolver) Country(ipStr string) string {
	if r == nil {
		return ""
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	if err := r.reader.Lookup(ip, &record); err != nil {
		return ""
	}
	return record.Country.ISOCode
}
