// Copyright 2024-2026 Aiku AI

package relay

import "strings"

// UserID is the platform-assigned Telegram user ID.
type UserID = int64

// NormalizeChannel converts user input or a chat username into the registry
// key: surrounding whitespace and one leading "@" are removed and the result
// is lowercased, since Telegram usernames are case-insensitive.
func NormalizeChannel(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "@")
	return strings.ToLower(strings.TrimSpace(name))
}

