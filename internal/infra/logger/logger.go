package logger

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns a singleton zap.Logger configured for structured logging.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		lg, err = cfg.Build()
	})

	return lg, err
}

// WithContext attaches request scoped fields to the logger.
func WithContext(ctx context.Context) *zap.Logger {
	if lg == nil {
		lz, _ := zap.NewDevelopment()
		return lz
	}

	if ctx == nil {
		return lg
	}

	return lg.With(zap.String("request_id", RequestIDFromContext(ctx)))
}

// ContextWithRequestID stores id on ctx for loggers and outcome records.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored on ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail keeps the first 3 characters and the domain.
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	matches := emailRegex.FindStringSubmatch(email)
	if len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	parts := strings.SplitN(email, "@", 2)
	if len(parts) == 2 {
		return "***@" + parts[1]
	}

	return "***"
}

// MaskIP keeps the first 2 octets of an IPv4 address or the first 4 groups of
// an IPv6 address.
// Example: 192.168.1.100 -> 192.168.*.*
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if strings.Contains(ip, ".") {
		parts := strings.Split(ip, ".")
		if len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}

	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}

	return "***"
}

// MaskAccount keeps the 0x prefix, the next 4 and the last 4 hex digits.
// Example: 0x52908400098527886E0F7030069857D2E4169EE7 -> 0x5290***9EE7
func MaskAccount(account string) string {
	if account == "" {
		return ""
	}
	body := strings.TrimPrefix(strings.TrimPrefix(account, "0x"), "0X")
	if len(body) <= 8 {
		return "0x***"
	}
	return "0x" + body[:4] + "***" + body[len(body)-4:]
}

// MaskDID keeps the DID method and the last 6 characters of the
// method-specific identifier.
// Example: did:key:z2dmzD81cgPx8Vki7JbuuMmFYrWPgYoytykUZ3eyqht1j9Kbp -> did:key:***j9Kbp
func MaskDID(did string) string {
	if did == "" {
		return ""
	}
	idx := strings.LastIndex(did, ":")
	if idx < 0 {
		return maskTail(did, 6)
	}
	return did[:idx+1] + maskTail(did[idx+1:], 6)
}

func maskTail(s string, keep int) string {
	if len(s) <= keep {
		return "***"
	}
	return "***" + s[len(s)-keep:]
}
