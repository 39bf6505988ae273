package observability

import (
	"net"
	"net/http"
	"strings"

	"chat-realtime/internal/telemetry"
)

// ClientMeta is what a request says about the calling device.
type ClientMeta struct {
	DeviceID  string
	IP        string
	RequestID string
}

// ClientMetaFromRequest reads device, address and request id. Browsers cannot set
// headers on a websocket handshake, so the device id may also arrive as ?device_id.
func ClientMetaFromRequest(r *http.Request) ClientMeta {
	deviceID := r.Header.Get("X-Device-Id")
	if deviceID == "" {
		deviceID = r.URL.Query().Get("device_id")
	}

	requestID := telemetry.RequestIDFrom(r.Context())
	if requestID == "" {
		requestID = r.Header.Get("X-Request-Id")
	}

	return ClientMeta{DeviceID: deviceID, IP: clientIP(r), RequestID: requestID}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
