// Package userctx carries the authenticated principal through request contexts.
package userctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type userKey struct{}
type companyKey struct{}
type userTypeKey struct{}

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID snowflake.ID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFromContext returns the authenticated user ID, if set.
func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, userKey{})
}

// WithCompanyID stores the acting company ID in the context.
func WithCompanyID(ctx context.Context, companyID snowflake.ID) context.Context {
	return context.WithValue(ctx, companyKey{}, companyID)
}

// CompanyIDFromContext returns the acting company ID, if set.
// Users without a company association never have one.
func CompanyIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, companyKey{})
}

// WithUserType stores the principal's role class in the context.
func WithUserType(ctx context.Context, userType string) context.Context {
	return context.WithValue(ctx, userTypeKey{}, strings.ToUpper(strings.TrimSpace(userType)))
}

// UserTypeFromContext returns the principal's role class, if set.
func UserTypeFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(userTypeKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func idFromContext(ctx context.Context, key any) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(key).(type) {
	case snowflake.ID:
		if typed == 0 {
			return 0, false
		}
		return typed, true
	case int64:
		if typed == 0 {
			return 0, false
		}
		return snowflake.ID(typed), true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err != nil || parsed == 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
