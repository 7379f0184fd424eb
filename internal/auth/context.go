package auth

import (
	"context"

	"fleetgate/internal/policy"
)

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the per-request identity: resolved from the token and refreshed
// against the user and session rows by the middleware, so role changes and
// deactivation take effect without waiting for token expiry.
type Claims struct {
	Subject   string
	Email     string
	Role      policy.Role
	ViewAs    *policy.Role
	CompanyID *string
	JTI       string
}

// View builds the point-of-view for this request.
func (c Claims) View() policy.View {
	return policy.View{Actual: c.Role, ViewAs: c.ViewAs}
}

// EffectiveRole is shorthand for c.View().EffectiveRole().
func (c Claims) EffectiveRole() policy.Role {
	return c.View().EffectiveRole()
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}
