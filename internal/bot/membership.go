package bot

import (
	"context"

	"go.mau.fi/whatsmeow/types"
)

// GroupAdmins fetches fresh group metadata and returns the set of
// administrator identities, keyed by non-AD JID string. Participants may
// surface as LID, phone-number JID or both depending on their privacy
// settings, so every known alias of an admin is added to the set.
//
// Errors from the metadata fetch propagate to the caller; authorization
// decisions depend on this result and must not default to allow.
func GroupAdmins(ctx context.Context, session Session, gjid types.JID) (map[string]struct{}, error) {
	meta, err := session.GroupInfo(ctx, gjid)
	if err != nil {
		return nil, err
	}

	admins := make(map[string]struct{})
	for _, participant := range meta.Participants {
		if !participant.IsAdmin && !participant.IsSuperAdmin {
			continue
		}
		admins[participant.JID.ToNonAD().String()] = struct{}{}
		if !participant.LID.IsEmpty() {
			admins[participant.LID.ToNonAD().String()] = struct{}{}
		}
		if !participant.PhoneNumber.IsEmpty() {
			admins[participant.PhoneNumber.ToNonAD().String()] = struct{}{}
		}
	}
	return admins, nil
}
