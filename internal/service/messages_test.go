package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/realtime"
)

func TestEditMessage(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	ws, general := e.workspace(t, alice, "Acme")
	e.addMember(t, ws, bob, models.RoleAdmin)

	msg := e.send(t, alice, ws, models.ChannelScope(general.ID), "hello #general")
	edited, err := e.svc.EditMessage(ctx, alice, msg.ID, "hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", edited.Text)
	assert.Equal(t, alice.UserID, edited.SenderID)
	require.NotNil(t, edited.EditedAt)

	// even an admin cannot edit someone else's words
	_, err = e.svc.EditMessage(ctx, bob, msg.ID, "pwned")
	assertCode(t, apperr.CodeForbidden, err)

	stored, err := e.store.Messages().GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", stored.Text)
	assert.NotNil(t, stored.EditedAt)

	_, err = e.svc.EditMessage(ctx, alice, msg.ID, "   ")
	assertCode(t, apperr.CodeInvalidArgument, err)

	assert.Equal(t, []string{realtime.EventMessageCreated, realtime.EventMessageUpdated}, e.pub.types())
}

func TestThreadReplies(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	ws, general := e.workspace(t, alice, "Acme")
	e.addMember(t, ws, bob, models.RoleMember)
	scope := models.ChannelScope(general.ID)

	root := e.send(t, alice, ws, scope, "lunch?")
	reply, err := e.svc.SendMessage(ctx, bob, SendMessageInput{
		WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "yes", ParentMessageID: &root.ID,
	})
	require.NoError(t, err)

	count, err := e.svc.GetThreadCount(ctx, alice, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	page, err := e.svc.ListMessages(ctx, alice, scope, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{root.ID}, messageIDs(page.Items))
	assert.Equal(t, 1, page.Items[0].ReplyCount)

	// replying to the reply lands in the root thread
	nested, err := e.svc.SendMessage(ctx, alice, SendMessageInput{
		WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "where?", ParentMessageID: &reply.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, nested.ParentMessageID)
	assert.Equal(t, root.ID, *nested.ParentMessageID)

	thread, err := e.svc.GetThreadMessages(ctx, bob, root.ID, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{reply.ID, nested.ID}, messageIDs(thread.Items))
	require.NotNil(t, thread.Items[0].Sender)
	assert.Equal(t, "bob", thread.Items[0].Sender.DisplayName)
}

func TestReplyParentMustBeInSameConversation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	ws, general := e.workspace(t, alice, "Acme")
	random, err := e.svc.CreateChannel(ctx, alice, ws.ID, "random", "", false)
	require.NoError(t, err)
	root := e.send(t, alice, ws, models.ChannelScope(general.ID), "root")

	_, err = e.svc.SendMessage(ctx, alice, SendMessageInput{
		WorkspaceID: ws.ID, ChannelID: &random.ID, Text: "x", ParentMessageID: &root.ID,
	})
	assertCode(t, apperr.CodeInvalidReference, err)

	missing := uuid.New()
	_, err = e.svc.SendMessage(ctx, alice, SendMessageInput{
		WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "x", ParentMessageID: &missing,
	})
	assertCode(t, apperr.CodeNotFound, err)

	require.NoError(t, e.svc.DeleteMessage(ctx, alice, root.ID))
	_, err = e.svc.SendMessage(ctx, alice, SendMessageInput{
		WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "x", ParentMessageID: &root.ID,
	})
	assertCode(t, apperr.CodeNotFound, err)
}

func TestSoftDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	ws, general := e.workspace(t, alice, "Acme")
	e.addMember(t, ws, bob, models.RoleMember)
	e.addMember(t, ws, carol, models.RoleMember)
	scope := models.ChannelScope(general.ID)

	root := e.send(t, alice, ws, scope, "root")
	keep, err := e.svc.SendMessage(ctx, bob, SendMessageInput{WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "keep", ParentMessageID: &root.ID})
	require.NoError(t, err)
	drop, err := e.svc.SendMessage(ctx, bob, SendMessageInput{WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "drop", ParentMessageID: &root.ID})
	require.NoError(t, err)

	assertCode(t, apperr.CodeForbidden, e.svc.DeleteMessage(ctx, carol, drop.ID))
	require.NoError(t, e.svc.DeleteMessage(ctx, bob, drop.ID))
	assertCode(t, apperr.CodeNotFound, e.svc.DeleteMessage(ctx, bob, drop.ID))

	thread, err := e.svc.GetThreadMessages(ctx, alice, root.ID, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{keep.ID}, messageIDs(thread.Items))
	count, err := e.svc.GetThreadCount(ctx, alice, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := e.store.Messages().GetByID(ctx, drop.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Deleted())

	// the owner may remove anyone's message; the thread outlives its root
	require.NoError(t, e.svc.DeleteMessage(ctx, alice, root.ID))
	page, err := e.svc.ListMessages(ctx, alice, scope, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	thread, err = e.svc.GetThreadMessages(ctx, alice, root.ID, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{keep.ID}, messageIDs(thread.Items))

	_, err = e.svc.EditMessage(ctx, alice, root.ID, "undo")
	assertCode(t, apperr.CodeNotFound, err)
}

func TestPaginationOrdering(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	ws, general := e.workspace(t, alice, "Acme")
	scope := models.ChannelScope(general.ID)

	root := e.send(t, alice, ws, scope, "root")
	var sent []uuid.UUID
	for i := 0; i < 7; i++ {
		sent = append(sent, e.send(t, alice, ws, scope, "m").ID)
	}
	var replies []uuid.UUID
	for i := 0; i < 5; i++ {
		r, err := e.svc.SendMessage(ctx, alice, SendMessageInput{WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "r", ParentMessageID: &root.ID})
		require.NoError(t, err)
		replies = append(replies, r.ID)
	}

	var got []MessageView
	req := PageRequest{Limit: 3}
	pages := 0
	for {
		page, err := e.svc.ListMessages(ctx, alice, scope, req)
		require.NoError(t, err)
		got = append(got, page.Items...)
		pages++
		if page.IsDone {
			break
		}
		req.Cursor = page.ContinueCursor
	}
	assert.Equal(t, 3, pages)
	require.Len(t, got, 8)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].CreatedAt.After(got[i].CreatedAt), "timeline must be strictly newest first")
	}
	assert.Equal(t, sent[len(sent)-1], got[0].ID)
	assert.Equal(t, root.ID, got[len(got)-1].ID)

	var thread []uuid.UUID
	req = PageRequest{Limit: 2}
	for {
		page, err := e.svc.GetThreadMessages(ctx, alice, root.ID, req)
		require.NoError(t, err)
		thread = append(thread, messageIDs(page.Items)...)
		if page.IsDone {
			break
		}
		req.Cursor = page.ContinueCursor
	}
	assert.Equal(t, replies, thread)
}

func TestPageRequestBounds(t *testing.T) {
	assert.Equal(t, DefaultPageSize, PageRequest{}.size())
	assert.Equal(t, MaxPageSize, PageRequest{Limit: 1000}.size())
	assert.Equal(t, 7, PageRequest{Limit: 7}.size())

	e := newTestEnv(t)
	_, err := e.svc.ListMessages(context.Background(), e.user(t, "alice"), models.ChannelScope(uuid.New()), PageRequest{Cursor: "not a cursor"})
	assertCode(t, apperr.CodeInvalidArgument, err)
}

func TestSendValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	ws, general := e.workspace(t, alice, "Acme")
	other, otherGeneral := e.workspace(t, alice, "Other")
	dmID := uuid.New()

	cases := map[string]struct {
		in   SendMessageInput
		want apperr.Code
	}{
		"no scope":        {SendMessageInput{WorkspaceID: ws.ID, Text: "x"}, apperr.CodeInvalidArgument},
		"both scopes":     {SendMessageInput{WorkspaceID: ws.ID, ChannelID: &general.ID, DMID: &dmID, Text: "x"}, apperr.CodeInvalidArgument},
		"empty":           {SendMessageInput{WorkspaceID: ws.ID, ChannelID: &general.ID, Text: "  "}, apperr.CodeInvalidArgument},
		"too long":        {SendMessageInput{WorkspaceID: ws.ID, ChannelID: &general.ID, Text: strings.Repeat("a", MaxTextLen+1)}, apperr.CodeInvalidArgument},
		"bad attachment":  {SendMessageInput{WorkspaceID: ws.ID, ChannelID: &general.ID, Attachments: []models.Attachment{{StorageRef: "../etc/passwd"}}}, apperr.CodeInvalidArgument},
		"wrong workspace": {SendMessageInput{WorkspaceID: other.ID, ChannelID: &general.ID, Text: "x"}, apperr.CodeInvalidReference},
		"unknown channel": {SendMessageInput{WorkspaceID: ws.ID, ChannelID: &dmID, Text: "x"}, apperr.CodeNotFound},
		"unknown dm":      {SendMessageInput{WorkspaceID: ws.ID, DMID: &dmID, Text: "x"}, apperr.CodeNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.SendMessage(ctx, alice, tc.in)
			assertCode(t, tc.want, err)
		})
	}

	// right workspace, right channel
	_, err := e.svc.SendMessage(ctx, alice, SendMessageInput{WorkspaceID: other.ID, ChannelID: &otherGeneral.ID, Text: strings.Repeat("é", MaxTextLen)})
	require.NoError(t, err)
}

func TestAttachmentURLsAreSnapshottedBestEffort(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	ws, general := e.workspace(t, alice, "Acme")

	good, err := e.svc.GenerateUploadURL(ctx, alice)
	require.NoError(t, err)
	bad, err := e.svc.GenerateUploadURL(ctx, alice)
	require.NoError(t, err)
	e.blob.broken[bad.StorageRef] = true

	msg, err := e.svc.SendMessage(ctx, alice, SendMessageInput{
		WorkspaceID: ws.ID,
		ChannelID:   &general.ID,
		Attachments: []models.Attachment{
			{StorageRef: good.StorageRef, Name: "a.png", ContentType: "image/png", Size: 10},
			{StorageRef: bad.StorageRef, Name: "b.pdf", ContentType: "application/pdf", Size: 20},
		},
		LinkPreviews: []models.LinkPreview{{URL: "https://example.com", Title: "Example"}},
	})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "https://blob.test/get/"+good.StorageRef, msg.Attachments[0].URL)
	assert.Empty(t, msg.Attachments[1].URL)
	assert.Empty(t, msg.Text)

	// later breakage does not change what was stored
	e.blob.broken[good.StorageRef] = true
	stored, err := e.store.Messages().GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://blob.test/get/"+good.StorageRef, stored.Attachments[0].URL)
	assert.Equal(t, "Example", stored.LinkPreviews[0].Title)
}

func TestCallerSuppliedAttachmentURLIsIgnored(t *testing.T) {
	ctx := context.Background()
	for name, withBlob := range map[string]bool{"resolution fails": true, "no blob store": false} {
		t.Run(name, func(t *testing.T) {
			e := newTestEnv(t, func(d *Deps) {
				if !withBlob {
					d.Blob = nil
				}
			})
			alice := e.user(t, "alice")
			ws, general := e.workspace(t, alice, "Acme")
			ref := "uploads/" + uuid.NewString()
			e.blob.broken[ref] = true

			msg, err := e.svc.SendMessage(ctx, alice, SendMessageInput{
				WorkspaceID: ws.ID,
				ChannelID:   &general.ID,
				Attachments: []models.Attachment{{StorageRef: ref, Name: "x.png", URL: "https://evil.example/phish"}},
			})
			require.NoError(t, err)
			assert.Empty(t, msg.Attachments[0].URL)

			stored, err := e.store.Messages().GetByID(ctx, msg.ID)
			require.NoError(t, err)
			assert.Empty(t, stored.Attachments[0].URL)
		})
	}
}

func TestPinning(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	ws, general := e.workspace(t, alice, "Acme")
	e.addMember(t, ws, bob, models.RoleMember)
	scope := models.ChannelScope(general.ID)
	first := e.send(t, alice, ws, scope, "first")
	second := e.send(t, alice, ws, scope, "second")

	pinned, err := e.svc.TogglePin(ctx, bob, first.ID)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned)
	require.NotNil(t, pinned.PinnedBy)
	assert.Equal(t, bob.UserID, *pinned.PinnedBy)
	_, err = e.svc.TogglePin(ctx, alice, second.ID)
	require.NoError(t, err)

	list, err := e.svc.GetPinned(ctx, bob, scope)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second.ID, first.ID}, messageIDs(list))

	unpinned, err := e.svc.TogglePin(ctx, alice, first.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.Pinned)
	list, err = e.svc.GetPinned(ctx, bob, scope)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second.ID}, messageIDs(list))
}

func TestDMMessaging(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	ws, _ := e.workspace(t, alice, "Acme")
	e.addMember(t, ws, bob, models.RoleMember)
	e.addMember(t, ws, carol, models.RoleMember)

	dm, err := e.svc.CreateDM(ctx, alice, ws.ID, []uuid.UUID{bob.UserID})
	require.NoError(t, err)
	scope := models.DMScope(dm.ID)
	msg := e.send(t, bob, ws, scope, "psst")
	assert.Equal(t, dm.ID, *msg.DMID)

	page, err := e.svc.ListMessages(ctx, alice, scope, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{msg.ID}, messageIDs(page.Items))

	page, err = e.svc.ListMessages(ctx, carol, scope, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	_, err = e.svc.SendMessage(ctx, carol, SendMessageInput{WorkspaceID: ws.ID, DMID: &dm.ID, Text: "hi"})
	assertCode(t, apperr.CodeForbidden, err)

	// a participant who leaves the workspace loses the conversation
	require.NoError(t, e.svc.RemoveWorkspaceMember(ctx, bob, ws.ID, bob.UserID))
	page, err = e.svc.ListMessages(ctx, bob, scope, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

type stubResolver struct{ calls [][]string }

func (r *stubResolver) Resolve(ctx context.Context, urls []string) []models.LinkPreview {
	r.calls = append(r.calls, urls)
	return []models.LinkPreview{{URL: urls[0], Title: "stub"}}
}

func TestResolveLinkPreviews(t *testing.T) {
	resolver := &stubResolver{}
	e := newTestEnv(t, func(d *Deps) { d.Previews = resolver })
	ctx := context.Background()

	_, err := e.svc.ResolveLinkPreviews(ctx, e.user(t, "alice"), nil)
	require.NoError(t, err)
	assert.Empty(t, resolver.calls)

	_, err = e.svc.ResolveLinkPreviews(ctx, auth.Anonymous, []string{"https://example.com"})
	assertCode(t, apperr.CodeUnauthenticated, err)

	got, err := e.svc.ResolveLinkPreviews(ctx, e.user(t, "bob"), []string{"https://example.com"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "stub", got[0].Title)
}
