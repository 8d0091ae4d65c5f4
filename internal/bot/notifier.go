package bot

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/log"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/whatsapp"
)

const (
	welcomeTemplate = "Welcome to %s, @%s 🎉"
	goodbyeTemplate = "Goodbye @%s 👋"
)

// Notifier announces group membership changes. Each affected participant
// is announced independently; a failed send never blocks the remaining
// participants or later events.
type Notifier struct {
	session Session
}

func NewNotifier(session Session) *Notifier {
	return &Notifier{session: session}
}

func (n *Notifier) HandleGroupInfo(ctx context.Context, evt *events.GroupInfo) {
	if len(evt.Join) == 0 && len(evt.Leave) == 0 {
		return
	}

	name := n.groupName(ctx, evt.JID)

	for _, member := range evt.Join {
		body := fmt.Sprintf(welcomeTemplate, name, whatsapp.DecomposeJID(member.String()))
		if err := n.session.SendMentions(ctx, evt.JID, body, []types.JID{member}); err != nil {
			log.Print(nil).WithError(err).Error("Failed to send welcome for @" + member.User + " in " + evt.JID.String())
		}
	}
	for _, member := range evt.Leave {
		body := fmt.Sprintf(goodbyeTemplate, whatsapp.DecomposeJID(member.String()))
		if err := n.session.SendMentions(ctx, evt.JID, body, []types.JID{member}); err != nil {
			log.Print(nil).WithError(err).Error("Failed to send goodbye for @" + member.User + " in " + evt.JID.String())
		}
	}
}

// groupName resolves the group's display name, falling back to the group
// identity's local part when metadata is unavailable. Announcements are
// best-effort, so the error is logged rather than propagated.
func (n *Notifier) groupName(ctx context.Context, gjid types.JID) string {
	meta, err := n.session.GroupInfo(ctx, gjid)
	if err != nil {
		log.Print(nil).WithError(err).Warn("Group name fetch failed for " + gjid.String())
		return gjid.User
	}
	if meta.Name == "" {
		return gjid.User
	}
	return meta.Name
}
