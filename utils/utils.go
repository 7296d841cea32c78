// Package utils provides utility functions for the application.
package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

// NilIfEmpty returns nil for blank strings so optional columns stay NULL
func NilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// ValueOr dereferences p or returns def when p is nil or empty
func ValueOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// ShortEndpoint trims a push endpoint for log lines
func ShortEndpoint(endpoint string) string {
	if len(endpoint) <= 60 {
		return endpoint
	}
	return endpoint[:60] + "..."
}
