// Copyright 2024-2026 Aiku AI

package mtproto

import (
	"time"

	"github.com/gotd/td/tg"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

// toChannelEvent converts a new-message update. Service messages and empty
// placeholders return ok=false.
func toChannelEvent(e tg.Entities, msg tg.MessageClass) (relay.ChannelEvent, bool) {
	m, ok := msg.(*tg.Message)
	if !ok {
		return relay.ChannelEvent{}, false
	}
	return relay.ChannelEvent{
		ChatUsername: peerUsername(e, m.PeerID),
		MessageID:    m.ID,
		Text:         m.Message,
		Date:         time.Unix(int64(m.Date), 0),
	}, true
}

// peerUsername resolves the public username of the chat a message was posted
// in. Chats without one, including basic groups, yield "".
func peerUsername(e tg.Entities, peer tg.PeerClass) string {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		if ch, ok := e.Channels[p.ChannelID]; ok {
			return pickUsername(ch.Username, ch.Usernames)
		}
	case *tg.PeerUser:
		if u, ok := e.Users[p.UserID]; ok {
			return pickUsername(u.Username, u.Usernames)
		}
	}
	return ""
}

// pickUsername prefers the primary username and falls back to the first
// active collectible one.
func pickUsername(primary string, extra []tg.Username) string {
	if primary != "" {
		return primary
	}
	for _, u := range extra {
		if u.Active {
			return u.Username
		}
	}
	return ""
}
