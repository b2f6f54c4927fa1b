package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// DeviceName derives a display name from a User-Agent. Order matters: iPad
// and Android tablets also advertise "Mobile".
func DeviceName(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "Unknown Device"
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "android"):
		return "Android Device"
	case strings.Contains(ua, "mobile"):
		return "Mobile Device"
	case strings.Contains(ua, "windows"):
		return "Windows PC"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		return "Mac"
	case strings.Contains(ua, "linux"):
		return "Linux PC"
	default:
		return "Unknown Device"
	}
}

var (
	versionPattern = regexp.MustCompile(`\d+(\.\d+)*`)
	idPattern      = regexp.MustCompile(`[a-fA-F0-9]{8,}`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// NormalizeUserAgent strips version numbers and embedded identifiers so a
// browser update does not change the device fingerprint.
func NormalizeUserAgent(userAgent string) string {
	normalized := idPattern.ReplaceAllString(userAgent, "ID")
	normalized = versionPattern.ReplaceAllString(normalized, "X")
	return strings.TrimSpace(spacePattern.ReplaceAllString(normalized, " "))
}

// DeviceFingerprint identifies a client that sent no explicit device id.
func DeviceFingerprint(userAgent, clientIP string) string {
	sum := sha256.Sum256([]byte(NormalizeUserAgent(userAgent) + ":" + clientIP))
	return hex.EncodeToString(sum[:])
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
