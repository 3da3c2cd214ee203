package telegram

// Webhook payload types, limited to the fields the redemption flow reads.
// Unknown fields in provider payloads are ignored.

// Update is a Bot API webhook update.
type Update struct {
	UpdateID   int64              `json:"update_id"`
	ChatMember *ChatMemberUpdated `json:"chat_member,omitempty"`
}

// ChatMemberUpdated reports a change of a member's status in a chat.
type ChatMemberUpdated struct {
	Chat          Chat            `json:"chat"`
	From          User            `json:"from"`
	Date          int64           `json:"date"`
	OldChatMember ChatMember      `json:"old_chat_member"`
	NewChatMember ChatMember      `json:"new_chat_member"`
	InviteLink    *ChatInviteLink `json:"invite_link,omitempty"`
}

// Chat identifies a Telegram chat.
type Chat struct {
	ID int64 `json:"id"`
}

// User identifies a Telegram user.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// ChatMember is a user together with their membership status.
type ChatMember struct {
	User   User   `json:"user"`
	Status string `json:"status"`
}

// ChatInviteLink is the invite link a member joined through.
type ChatInviteLink struct {
	InviteLink string `json:"invite_link"`
}

// IsPositiveMembership reports whether a chat member status means the user is
// in the chat. Anything else (left, kicked, restricted, ...) is not a redemption.
func IsPositiveMembership(status string) bool {
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}
