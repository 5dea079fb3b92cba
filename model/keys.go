// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import "strings"

// Cache key families live in one place so invalidation prefixes cannot
// drift from the keys they are meant to cover.

const (
	// ChannelListPrefix covers every cached channel listing regardless of
	// the search query folded into the key.
	ChannelListPrefix = "channels:"

	contentListPrefix = "content:"
)

// ChannelListKey is the cache key for a channel search result.
func ChannelListKey(query string) string {
	return ChannelListPrefix + query
}

// ContentListKey is the cache key for one page of a channel's content.
func ContentListKey(channelID, page string) string {
	return contentListPrefix + channelID + ":" + page
}

// ContentListPrefix covers every cached content page of one channel. It is
// the prefix dropped when the channel's listings go stale after a mutation.
func ContentListPrefix(channelID string) string {
	return contentListPrefix + channelID + ":"
}

// ParseChannelListKey recovers the search query from a channel listing key.
func ParseChannelListKey(key string) (query string, ok bool) {
	return strings.CutPrefix(key, ChannelListPrefix)
}

// ParseContentListKey recovers the channel and page from a content listing
// key.
func ParseContentListKey(key string) (channelID, page string, ok bool) {
	rest, ok := strings.CutPrefix(key, contentListPrefix)
	if !ok {
		return "", "", false
	}
	channelID, page, ok = strings.Cut(rest, ":")
	if !ok || channelID == "" {
		return "", "", false
	}
	return channelID, page, true
}
