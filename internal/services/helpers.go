package services

import (
	"context"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeName(value string) string {
	return strings.TrimSpace(value)
}

func normalizeCode(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
