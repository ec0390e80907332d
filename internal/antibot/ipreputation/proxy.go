package ipreputation

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// ProxyDetector flags addresses that belong to VPNs, public proxies, Tor exits
// or hosting ranges.
type ProxyDetector interface {
	IsAnonymous(ip string) bool
}

// NoProxyDetector is used when no anonymous-IP database is configured.
type NoProxyDetector struct{}

func (NoProxyDetector) IsAnonymous(string) bool { return false }

// GeoIPDetector answers from a MaxMind GeoIP2 Anonymous-IP database.
type GeoIPDetector struct {
	reader *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIPDetector, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open anonymous-ip database: %w", err)
	}
	return &GeoIPDetector{reader: reader}, nil
}

func (d *GeoIPDetector) IsAnonymous(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	rec, err := d.reader.AnonymousIP(parsed)
	if err != nil {
		return false
	}
	return rec.IsAnonymous || rec.IsAnonymousVPN || rec.IsPublicProxy || rec.IsTorExitNode || rec.IsHostingProvider
}

func (d *GeoIPDetector) Close() error {
	return d.reader.Close()
}
