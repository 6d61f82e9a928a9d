// Package chat answers now-playing questions in Twitch chat.
//
// StartSongResponder joins TWITCH_CHANNEL as TWITCH_BOT_USERNAME and replies to
// !song, !np and !track with the track the tracker currently shows in the
// Telegram channel. Replies are rate limited per channel by a short cooldown.
//
// The IRC client needs an OAuth token with chat:read and chat:edit scopes; the
// "oauth:" prefix is added when missing. The responder is skipped when any of
// the three settings is empty.
package chat
