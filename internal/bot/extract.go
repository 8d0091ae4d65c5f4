package bot

import (
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
)

// ExtractText resolves the plain-text body of an inbound message. The
// content envelope is polymorphic; resolution order is fixed: plain
// conversation body, extended-text body, image caption, video caption.
// The first non-empty variant wins and is returned trimmed. Messages
// without any text variant yield the empty string.
func ExtractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}

	candidates := []string{
		msg.GetConversation(),
		msg.GetExtendedTextMessage().GetText(),
		msg.GetImageMessage().GetCaption(),
		msg.GetVideoMessage().GetCaption(),
	}
	for _, candidate := range candidates {
		if candidate != "" {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}
