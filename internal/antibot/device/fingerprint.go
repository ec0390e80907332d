package device

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/mssola/useragent"

	"wishguard/internal/antibot/models"
)

const (
	HeaderScreenResolution = "X-Screen-Resolution"
	HeaderTimezone         = "X-Timezone"
	HeaderPlatformHint     = "Sec-CH-UA-Platform"
)

// AttributesFromRequest collects the fingerprint inputs from request headers.
// When the client sends no platform hint, the platform parsed from the
// User-Agent is used instead.
func AttributesFromRequest(r *http.Request) models.DeviceAttributes {
	ua := r.Header.Get("User-Agent")
	platform := strings.Trim(strings.TrimSpace(r.Header.Get(HeaderPlatformHint)), `"`)
	if platform == "" && ua != "" {
		platform = useragent.New(ua).OS()
	}
	return models.DeviceAttributes{
		UserAgent:        ua,
		AcceptLanguage:   r.Header.Get("Accept-Language"),
		AcceptEncoding:   r.Header.Get("Accept-Encoding"),
		Platform:         platform,
		ScreenResolution: strings.TrimSpace(r.Header.Get(HeaderScreenResolution)),
		Timezone:         strings.TrimSpace(r.Header.Get(HeaderTimezone)),
	}
}

// Fingerprint hashes the identity attributes into a 64-char hex SHA-256.
// Fields are sorted by name and length-prefixed, so ("a|b", "") and ("a", "b|")
// cannot collide regardless of content.
func Fingerprint(attrs models.DeviceAttributes) string {
	fields := map[string]string{
		"accept_encoding": attrs.AcceptEncoding,
		"accept_language": attrs.AcceptLanguage,
		"platform":        attrs.Platform,
		"user_agent":      attrs.UserAgent,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := fields[k]
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ClientInfo is the parsed view of a User-Agent shown in the debug snapshot.
type ClientInfo struct {
	Browser string `json:"browser"`
	Version string `json:"version"`
	OS      string `json:"os"`
	Mobile  bool   `json:"mobile"`
	BotHint bool   `json:"bot_hint"`
}

// ParseClient parses a User-Agent with mssola/useragent.
func ParseClient(ua string) ClientInfo {
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	return ClientInfo{
		Browser: name,
		Version: version,
		OS:      parsed.OS(),
		Mobile:  parsed.Mobile(),
		BotHint: parsed.Bot(),
	}
}
