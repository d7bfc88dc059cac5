package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/realtime"
)

func TestToggleReactionReturnsToOriginalState(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	ws, general := e.workspace(t, alice, "Acme")
	e.addMember(t, ws, bob, models.RoleMember)
	scope := models.ChannelScope(general.ID)
	msg := e.send(t, alice, ws, scope, "ship it")

	countFor := func(emoji string) int {
		page, err := e.svc.ListMessages(ctx, alice, scope, PageRequest{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		for _, g := range page.Items[0].Reactions {
			if g.Emoji == emoji {
				return g.Count
			}
		}
		return 0
	}

	_, err := e.svc.ToggleReaction(ctx, alice, msg.ID, "🎉")
	require.NoError(t, err)
	before := countFor("👍")

	reacted, err := e.svc.ToggleReaction(ctx, bob, msg.ID, "👍")
	require.NoError(t, err)
	assert.True(t, reacted)
	assert.Equal(t, before+1, countFor("👍"))

	reacted, err = e.svc.ToggleReaction(ctx, bob, msg.ID, "👍")
	require.NoError(t, err)
	assert.False(t, reacted)
	assert.Equal(t, before, countFor("👍"))
	assert.Equal(t, 1, countFor("🎉"))

	types := e.pub.types()
	assert.Equal(t, realtime.EventReactionToggled, types[len(types)-1])
}

func TestToggleReactionGuards(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	ws, _ := e.workspace(t, alice, "Acme")
	e.addMember(t, ws, bob, models.RoleMember)
	secrets, err := e.svc.CreateChannel(ctx, alice, ws.ID, "secrets", "", true)
	require.NoError(t, err)
	msg := e.send(t, alice, ws, models.ChannelScope(secrets.ID), "classified")

	_, err = e.svc.ToggleReaction(ctx, bob, msg.ID, "👀")
	assertCode(t, apperr.CodeForbidden, err)
	_, err = e.svc.ToggleReaction(ctx, alice, msg.ID, "  ")
	assertCode(t, apperr.CodeInvalidArgument, err)
	_, err = e.svc.ToggleReaction(ctx, alice, uuid.New(), "👀")
	assertCode(t, apperr.CodeNotFound, err)

	require.NoError(t, e.svc.DeleteMessage(ctx, alice, msg.ID))
	_, err = e.svc.ToggleReaction(ctx, alice, msg.ID, "👀")
	assertCode(t, apperr.CodeNotFound, err)
}

func TestGroupReactions(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	m := uuid.New()
	groups := GroupReactions([]models.Reaction{
		{MessageID: m, UserID: u1, Emoji: "👍"},
		{MessageID: m, UserID: u2, Emoji: "🎉"},
		{MessageID: m, UserID: u3, Emoji: "👍"},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, ReactionGroup{Emoji: "👍", Count: 2, UserIDs: []uuid.UUID{u1, u3}}, groups[0])
	assert.Equal(t, ReactionGroup{Emoji: "🎉", Count: 1, UserIDs: []uuid.UUID{u2}}, groups[1])

	assert.Empty(t, GroupReactions(nil))
	assert.NotNil(t, GroupReactions(nil))
}
