package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientIPContextKey はリクエストコンテキストに解決済みのクライアントIPを格納するためのキー。
var clientIPContextKey = contextKey("client_ip")

// NewClientIPMiddleware はリクエスト元IPを解決してコンテキストに格納するミドルウェアを返す。
// X-Forwarded-Forは接続元が信頼するプロキシの場合のみ参照し、
// 右端から信頼するプロキシを除いた最初のアドレスを採用する。
func NewClientIPMiddleware(trusted []netip.Prefix) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			ctx := context.WithValue(r.Context(), clientIPContextKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP はリクエスト元のIPアドレスを返す。
// NewClientIPMiddlewareを通っていればその解決結果を、なければ接続元アドレスを返す。
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	remote := remoteHost(r)
	if len(trusted) == 0 || !isTrusted(remote, trusted) {
		return remote
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			// 不正な値以降は偽装の可能性があるため、直前に確認できたアドレスで打ち切る
			break
		}
		if !isTrusted(hop, trusted) {
			return addr.Unmap().String()
		}
		remote = addr.Unmap().String()
	}
	return remote
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
