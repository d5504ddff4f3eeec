package credential

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/pkg/clock"
)

// Reason names why a token was rejected
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonMissing   Reason = "missing"
	ReasonMalformed Reason = "malformed"
	ReasonDecode    Reason = "decode"
	ReasonExpired   Reason = "expired"
)

// Claims is the subset of token claims the client reports on
type Claims struct {
	UserID     string
	CustomerID string
	ExpiresAt  time.Time
}

// Result is the outcome of Guard.Validate
type Result struct {
	Valid  bool
	Reason Reason
	Err    error
	Claims Claims
}

// LogValue renders the result for debug logging without the token itself.
func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Bool("valid", r.Valid)}
	if r.Reason != ReasonNone {
		attrs = append(attrs, slog.String("reason", string(r.Reason)))
	}
	if r.Claims.UserID != "" {
		attrs = append(attrs, slog.String("user_id", r.Claims.UserID))
	}
	if r.Claims.CustomerID != "" {
		attrs = append(attrs, slog.String("customer_id", r.Claims.CustomerID))
	}
	if !r.Claims.ExpiresAt.IsZero() {
		attrs = append(attrs, slog.Time("exp", r.Claims.ExpiresAt))
	}
	return slog.GroupValue(attrs...)
}

// Guard validates token structure and expiry
type Guard struct {
	clock  clock.Clock
	parser *jwt.Parser
}

// NewGuard creates a Guard reading time from clk; nil means the real clock.
func NewGuard(clk clock.Clock) *Guard {
	if clk == nil {
		clk = clock.Real()
	}
	return &Guard{clock: clk, parser: jwt.NewParser()}
}

// Validate checks that token has three segments, that the claims segment
// decodes to a JSON object, and that exp, when present, is in the future.
func (g *Guard) Validate(token string) Result {
	if token == "" {
		return reject(ReasonMissing, errors.WrapInvalid(errors.ErrNoIdentity, "Guard", "Validate", "read token"))
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return reject(ReasonMalformed, errors.WrapInvalid(
			fmt.Errorf("%w: %d segments", errors.ErrMalformedToken, len(parts)),
			"Guard", "Validate", "split token"))
	}

	raw, err := g.parser.DecodeSegment(parts[1])
	if err != nil {
		return reject(ReasonDecode, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrTokenDecode, err),
			"Guard", "Validate", "decode claims segment"))
	}

	var claims jwt.MapClaims
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil || claims == nil {
		if err == nil {
			err = fmt.Errorf("claims segment is not an object")
		}
		return reject(ReasonDecode, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrTokenDecode, err),
			"Guard", "Validate", "parse claims"))
	}

	result := Result{Claims: extractClaims(claims)}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		result.Reason = ReasonDecode
		result.Err = errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrTokenDecode, err),
			"Guard", "Validate", "read exp claim")
		return result
	}
	if exp != nil {
		result.Claims.ExpiresAt = exp.Time
		if !exp.Time.After(g.clock.Now()) {
			result.Reason = ReasonExpired
			result.Err = errors.WrapInvalid(errors.ErrTokenExpired, "Guard", "Validate", "check expiry")
			return result
		}
	}

	result.Valid = true
	return result
}

func reject(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

func extractClaims(claims jwt.MapClaims) Claims {
	return Claims{
		UserID:     claimString(claims["user_id"]),
		CustomerID: claimString(claims["customer_id"]),
	}
}

func claimString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
