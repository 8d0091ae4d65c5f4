package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

func TestNotifier_WelcomesEachJoinedParticipant(t *testing.T) {
	group := groupJID("123456789-111")
	p1 := userJID("100")
	p2 := userJID("200")

	session := &fakeSession{
		groupInfo: func(types.JID) (*types.GroupInfo, error) {
			return groupMeta("Gopher Hangout", nil, nil), nil
		},
	}
	notifier := NewNotifier(session)

	notifier.HandleGroupInfo(context.Background(), &events.GroupInfo{
		JID:  group,
		Join: []types.JID{p1, p2},
	})

	require.Len(t, session.mentions, 2)
	assert.Equal(t, "Welcome to Gopher Hangout, @100 🎉", session.mentions[0].text)
	assert.Equal(t, []types.JID{p1}, session.mentions[0].mentions)
	assert.Equal(t, "Welcome to Gopher Hangout, @200 🎉", session.mentions[1].text)
	assert.Equal(t, []types.JID{p2}, session.mentions[1].mentions)
}

func TestNotifier_GoodbyeForEachLeftParticipant(t *testing.T) {
	group := groupJID("123456789-111")
	p1 := userJID("100")

	session := &fakeSession{
		groupInfo: func(types.JID) (*types.GroupInfo, error) {
			return groupMeta("Gopher Hangout", nil, nil), nil
		},
	}
	notifier := NewNotifier(session)

	notifier.HandleGroupInfo(context.Background(), &events.GroupInfo{
		JID:   group,
		Leave: []types.JID{p1},
	})

	require.Len(t, session.mentions, 1)
	assert.Equal(t, "Goodbye @100 👋", session.mentions[0].text)
	assert.Equal(t, []types.JID{p1}, session.mentions[0].mentions)
}

func TestNotifier_SendFailureDoesNotBlockNextParticipant(t *testing.T) {
	group := groupJID("123456789-111")

	session := &fakeSession{
		groupInfo: func(types.JID) (*types.GroupInfo, error) {
			return groupMeta("Gopher Hangout", nil, nil), nil
		},
		mentionErr: func(call int) error {
			if call == 0 {
				return errors.New("send failed")
			}
			return nil
		},
	}
	notifier := NewNotifier(session)

	notifier.HandleGroupInfo(context.Background(), &events.GroupInfo{
		JID:  group,
		Join: []types.JID{userJID("100"), userJID("200")},
	})

	require.Len(t, session.mentions, 2)
	assert.Contains(t, session.mentions[1].text, "@200")
}

func TestNotifier_GroupNameFallsBackToLocalPart(t *testing.T) {
	group := groupJID("123456789-111")

	session := &fakeSession{
		groupInfo: func(types.JID) (*types.GroupInfo, error) {
			return nil, errors.New("upstream unavailable")
		},
	}
	notifier := NewNotifier(session)

	notifier.HandleGroupInfo(context.Background(), &events.GroupInfo{
		JID:  group,
		Join: []types.JID{userJID("100")},
	})

	require.Len(t, session.mentions, 1)
	assert.Equal(t, "Welcome to 123456789-111, @100 🎉", session.mentions[0].text)
}

func TestNotifier_NoSendsWithoutChanges(t *testing.T) {
	session := &fakeSession{}
	notifier := NewNotifier(session)

	notifier.HandleGroupInfo(context.Background(), &events.GroupInfo{JID: groupJID("123456789-111")})

	assert.Empty(t, session.mentions)
	assert.Empty(t, session.texts)
}
