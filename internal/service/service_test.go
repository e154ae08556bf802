package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/gateway"
	"github.com/naperu/wabarelay/internal/media"
	"github.com/naperu/wabarelay/internal/repository"
	"github.com/naperu/wabarelay/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu         sync.Mutex
	configured bool
	upload     bool
	sendErr    error
	media      map[string][]byte
	sent       []gateway.OutboundMessage
	uploaded   []string
	fetched    []string
}

func (f *fakeGateway) Configured() bool { return f.configured }
func (f *fakeGateway) CanUpload() bool { return f.upload }

func (f *fakeGateway) Send(_ context.Context, msg gateway.OutboundMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("wamid.out.%d", len(f.sent)), nil
}

func (f *fakeGateway) FetchMedia(_ context.Context, id string) ([]byte, string, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	data, ok := f.media[id]
	if !ok {
		return nil, "", fmt.Errorf("media %s: %w", id, domain.ErrUpstream)
	}
	return data, "image/png", nil
}

func (f *fakeGateway) UploadMedia(_ context.Context, filePath, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, filePath)
	return "media-up-1", nil
}

func (f *fakeGateway) sentMessages() []gateway.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.OutboundMessage(nil), f.sent...)
}

type fakeGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *fakeGuard) Claim(_ context.Context, id string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[id] {
		return false, nil
	}
	g.seen[id] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, id)
	return nil
}

type fixture struct {
	repos *repository.Repositories
	gw    *fakeGateway
	hub   *ws.Hub
	root  string
	svc   *Services
}

func newFixture(t *testing.T, gw *fakeGateway, guard DeliveryGuard, opts Options) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := media.NewStore(media.Config{Root: root, BaseURL: "http://relay.test"}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	repos := repository.NewMemoryRepositories()
	hub := ws.NewHub(8, zap.NewNop())
	return &fixture{
		repos: repos,
		gw:    gw,
		hub:   hub,
		root:  root,
		svc:   NewServices(repos, store, gw, hub, guard, opts, zap.NewNop()),
	}
}

func textDelivery(from, wamid, body string) *gateway.WebhookPayload {
	return &gateway.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []gateway.WebhookEntry{{
			Changes: []gateway.WebhookChange{{
				Value: gateway.WebhookValue{
					Messages: []gateway.InboundMessage{{
						From:      from,
						ID:        wamid,
						Timestamp: "1700000000",
						Type:      "text",
						Text:      &gateway.InboundText{Body: body},
					}},
				},
			}},
		}},
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeEvent(t *testing.T, raw []byte) (string, domain.MessageView) {
	t.Helper()
	var env struct {
		Event string             `json:"event"`
		Data  domain.MessageView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	return env.Event, env.Data
}

func TestInboundTextCreatesChatAndMessage(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()

	msg, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "hi"))
	require.NoError(t, err)
	require.NotNil(t, msg)

	chat, err := f.repos.Chat.GetByWaID(ctx, "5551")
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, 1, chat.UnreadCount)
	assert.Equal(t, "hi", chat.LastMessage)

	msgs, err := f.repos.Message.ListByChat(ctx, "5551")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "5551", msgs[0].Sender)
	assert.Equal(t, "hi", *msgs[0].Content)
	assert.Equal(t, domain.StatusReceived, msgs[0].Status)
	assert.Equal(t, "wamid.1", *msgs[0].WabaMessageID)
	assert.Equal(t, int64(1700000000), msgs[0].Timestamp.Unix())
}

func TestUnreadAccounting(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()

	_, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "one"))
	require.NoError(t, err)
	_, err = f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.2", "two"))
	require.NoError(t, err)

	chat, _ := f.repos.Chat.GetByWaID(ctx, "5551")
	assert.Equal(t, 2, chat.UnreadCount)

	_, err = f.svc.Outbound.Send(ctx, OutboundRequest{ChatWaID: "5551", Content: "reply"})
	require.NoError(t, err)
	chat, _ = f.repos.Chat.GetByWaID(ctx, "5551")
	assert.Equal(t, 2, chat.UnreadCount)
	assert.Equal(t, "reply", chat.LastMessage)

	views, err := f.svc.Chat.GetMessages(ctx, "5551")
	require.NoError(t, err)
	assert.Len(t, views, 3)
	chat, _ = f.repos.Chat.GetByWaID(ctx, "5551")
	assert.Equal(t, 0, chat.UnreadCount)
}

func TestLiveViewerReceivesInboundOnce(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	_, early := f.hub.Subscribe()

	msg, err := f.svc.Inbound.Process(context.Background(), textDelivery("5551", "wamid.1", "hi"))
	require.NoError(t, err)

	select {
	case raw := <-early:
		event, view := decodeEvent(t, raw)
		assert.Equal(t, ws.EventNewMessage, event)
		assert.Equal(t, msg.ID, view.ID)
		assert.Equal(t, "5551", view.ChatID)
		assert.Equal(t, "hi", *view.Content)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	assert.Len(t, early, 0)

	_, late := f.hub.Subscribe()
	assert.Len(t, late, 0)
}

func TestSameImageTwiceSharesOneFile(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()
	data := pngBytes(t)

	first, err := f.svc.Chat.SaveMessage(ctx, SaveRequest{ChatWaID: "5551", FileData: data, FileName: "cat.png"})
	require.NoError(t, err)
	second, err := f.svc.Chat.SaveMessage(ctx, SaveRequest{ChatWaID: "5551", FileData: data, FileName: "cat.png"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	require.NotNil(t, first.File)
	assert.Equal(t, *first.File, *second.File)

	entries, err := os.ReadDir(filepath.Join(f.root, media.TemporalDir, domain.CategoryImages))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".jpg", filepath.Ext(entries[0].Name()))

	msgs, _ := f.repos.Message.ListByChat(ctx, "5551")
	assert.Len(t, msgs, 2)
}

func TestBlockedChatRejectsWrites(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()

	_, err := f.repos.Chat.GetOrCreate(ctx, "5551")
	require.NoError(t, err)
	blocked, err := f.svc.Chat.Toggle(ctx, "5551", repository.FlagBlocked)
	require.NoError(t, err)
	require.True(t, blocked)

	_, err = f.svc.Chat.SaveMessage(ctx, SaveRequest{ChatWaID: "5551", Content: "hello"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "hi"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	msgs, err := f.repos.Message.ListByChat(ctx, "5551")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	chat, _ := f.repos.Chat.GetByWaID(ctx, "5551")
	assert.Equal(t, 0, chat.UnreadCount)
}

func TestDuplicateDeliveryIsSkipped(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, &fakeGuard{seen: map[string]bool{}}, Options{})
	ctx := context.Background()

	first, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "hi"))
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "hi"))
	require.NoError(t, err)
	assert.Nil(t, again)

	msgs, _ := f.repos.Message.ListByChat(ctx, "5551")
	assert.Len(t, msgs, 1)
}

func TestFailedDeliveryReleasesClaim(t *testing.T) {
	guard := &fakeGuard{seen: map[string]bool{}}
	f := newFixture(t, &fakeGateway{}, guard, Options{})

	payload := textDelivery("5551", "wamid.9", "")
	payload.Entry[0].Changes[0].Value.Messages[0].Type = "image"
	_, err := f.svc.Inbound.Process(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrBadInput)
	assert.False(t, guard.seen["wamid.9"])
}

func TestUnsupportedAndStatusOnlyDeliveries(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()

	payload := textDelivery("5551", "wamid.1", "")
	payload.Entry[0].Changes[0].Value.Messages[0].Type = "sticker"
	_, err := f.svc.Inbound.Process(ctx, payload)
	assert.ErrorIs(t, err, domain.ErrBadInput)
	f.svc.Inbound.HandleWebhook(ctx, payload)

	receipts := &gateway.WebhookPayload{Entry: []gateway.WebhookEntry{{
		Changes: []gateway.WebhookChange{{Value: gateway.WebhookValue{
			Statuses: []gateway.StatusUpdate{{ID: "wamid.out.1", Status: "delivered"}},
		}}},
	}}}
	msg, err := f.svc.Inbound.Process(ctx, receipts)
	assert.NoError(t, err)
	assert.Nil(t, msg)

	chats, _ := f.repos.Chat.List(ctx)
	assert.Empty(t, chats)
}

func TestInboundImageIsStaged(t *testing.T) {
	gw := &fakeGateway{media: map[string][]byte{"media-1": pngBytes(t)}}
	f := newFixture(t, gw, nil, Options{})

	payload := textDelivery("5551", "wamid.1", "")
	in := &payload.Entry[0].Changes[0].Value.Messages[0]
	in.Type, in.Text = "image", nil
	in.Image = &gateway.InboundMedia{ID: "media-1", MimeType: "image/png"}

	msg, err := f.svc.Inbound.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "[image]", *msg.Content)
	require.NotNil(t, msg.File)
	assert.Contains(t, *msg.File, "http://relay.test/uploads/temporalFiles/images/")
	assert.Equal(t, ".jpg", filepath.Ext(*msg.File))
}

func TestInboundMediaDownloadFailure(t *testing.T) {
	f := newFixture(t, &fakeGateway{media: map[string][]byte{}}, nil, Options{})

	payload := textDelivery("5551", "wamid.1", "")
	in := &payload.Entry[0].Changes[0].Value.Messages[0]
	in.Type, in.Text = "document", nil
	in.Document = &gateway.InboundMedia{ID: "missing", Filename: "a.pdf"}

	_, err := f.svc.Inbound.Process(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	msgs, err := f.repos.Message.ListByChat(context.Background(), "5551")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBlockedChatMediaIsNotFetched(t *testing.T) {
	gw := &fakeGateway{media: map[string][]byte{"media-1": pngBytes(t)}}
	f := newFixture(t, gw, nil, Options{})
	ctx := context.Background()

	_, err := f.repos.Chat.GetOrCreate(ctx, "5551")
	require.NoError(t, err)
	_, err = f.svc.Chat.Toggle(ctx, "5551", repository.FlagBlocked)
	require.NoError(t, err)

	payload := textDelivery("5551", "wamid.1", "")
	in := &payload.Entry[0].Changes[0].Value.Messages[0]
	in.Type, in.Text = "image", nil
	in.Image = &gateway.InboundMedia{ID: "media-1", MimeType: "image/png"}

	_, err = f.svc.Inbound.Process(ctx, payload)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, gw.fetched)

	msgs, err := f.repos.Message.ListByChat(ctx, "5551")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	images, err := os.ReadDir(filepath.Join(f.root, media.TemporalDir, domain.CategoryImages))
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestSendThroughGateway(t *testing.T) {
	gw := &fakeGateway{configured: true}
	f := newFixture(t, gw, nil, Options{SelfID: "me"})
	ctx := context.Background()

	inbound, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.in.1", "question"))
	require.NoError(t, err)

	sent, err := f.svc.Outbound.Send(ctx, OutboundRequest{ChatWaID: "5551", Content: "answer", ReferenceID: inbound.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSentToWABA, sent.Status)
	assert.Equal(t, "me", sent.Sender)
	assert.Equal(t, "wamid.out.1", *sent.WabaMessageID)
	assert.Equal(t, inbound.ID, *sent.ReferenceContent)

	out := gw.sentMessages()
	require.Len(t, out, 1)
	assert.Equal(t, "text", out[0].Type)
	assert.Equal(t, "answer", out[0].Text.Body)
	require.NotNil(t, out[0].Context)
	assert.Equal(t, "wamid.in.1", out[0].Context.MessageID)
}

func TestGatewayFailureStoresNothing(t *testing.T) {
	gw := &fakeGateway{configured: true, sendErr: fmt.Errorf("status 500: %w", domain.ErrUpstream)}
	f := newFixture(t, gw, nil, Options{})
	ctx := context.Background()

	msg, err := f.svc.Outbound.Send(ctx, OutboundRequest{ChatWaID: "5551", Content: "hi"})
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	msgs, _ := f.repos.Message.ListByChat(ctx, "5551")
	assert.Empty(t, msgs)
}

func TestSendRequiresContent(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	_, err := f.svc.Outbound.Send(context.Background(), OutboundRequest{ChatWaID: "5551"})
	assert.ErrorIs(t, err, domain.ErrBadInput)
	_, err = f.svc.Outbound.Send(context.Background(), OutboundRequest{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrBadInput)
	_, err = f.svc.Outbound.Send(context.Background(), OutboundRequest{ChatWaID: "5551", Content: " \n\t "})
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestBlankCaptionIsStoredAsNull(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})

	msg, err := f.svc.Chat.SaveMessage(context.Background(), SaveRequest{
		ChatWaID: "5551", Content: "   ", FileData: pngBytes(t), FileName: "cat.png",
	})
	require.NoError(t, err)
	assert.Nil(t, msg.Content)
	require.NotNil(t, msg.File)

	padded, err := f.svc.Outbound.Send(context.Background(), OutboundRequest{ChatWaID: "5551", Content: "  hi  "})
	require.NoError(t, err)
	require.NotNil(t, padded.Content)
	assert.Equal(t, "hi", *padded.Content)
}

func TestMediaSentByUploadedID(t *testing.T) {
	gw := &fakeGateway{configured: true, upload: true}
	f := newFixture(t, gw, nil, Options{UploadMedia: true})

	msg, err := f.svc.Chat.SaveMessage(context.Background(), SaveRequest{
		ChatWaID: "5551", Content: "look", FileData: pngBytes(t), FileName: "cat.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "look", *msg.Content)

	out := gw.sentMessages()
	require.Len(t, out, 1)
	assert.Equal(t, domain.MessageTypeImage, out[0].Type)
	require.NotNil(t, out[0].Image)
	assert.Equal(t, "media-up-1", out[0].Image.ID)
	assert.Empty(t, out[0].Image.Link)
	assert.Equal(t, "look", out[0].Image.Caption)
	assert.Len(t, gw.uploaded, 1)
}

func TestAutoReplyDoesNotCountAsUnread(t *testing.T) {
	gw := &fakeGateway{configured: true}
	f := newFixture(t, gw, nil, Options{AutoReplyText: "thanks, we will answer soon"})
	ctx := context.Background()

	_, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "hi"))
	require.NoError(t, err)

	out := gw.sentMessages()
	require.Len(t, out, 1)
	assert.Equal(t, "5551", out[0].To)

	chat, _ := f.repos.Chat.GetByWaID(ctx, "5551")
	assert.Equal(t, 1, chat.UnreadCount)
	msgs, _ := f.repos.Message.ListByChat(ctx, "5551")
	assert.Len(t, msgs, 2)
}

func TestReactLastWriteWins(t *testing.T) {
	gw := &fakeGateway{configured: true}
	f := newFixture(t, gw, nil, Options{})
	ctx := context.Background()

	inbound, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "hi"))
	require.NoError(t, err)

	_, err = f.svc.Chat.React(ctx, inbound.ID, "me", "hello")
	assert.ErrorIs(t, err, domain.ErrBadInput)

	for _, e := range []string{"👍", "🔥", "😂"} {
		_, err = f.svc.Chat.React(ctx, inbound.ID, "me", e)
		require.NoError(t, err)
	}
	msg, err := f.repos.Message.GetByID(ctx, inbound.ID)
	require.NoError(t, err)
	require.Len(t, msg.Reactions, 1)
	assert.Equal(t, domain.Reaction{User: "me", Emoji: "😂"}, msg.Reactions[0])

	msg, err = f.svc.Chat.React(ctx, inbound.ID, "me", "")
	require.NoError(t, err)
	assert.Empty(t, msg.Reactions)

	out := gw.sentMessages()
	require.Len(t, out, 4)
	assert.Equal(t, "reaction", out[3].Type)
	assert.Equal(t, "wamid.1", out[3].Reaction.MessageID)
	assert.Equal(t, "", out[3].Reaction.Emoji)

	_, err = f.svc.Chat.React(ctx, "nope", "me", "👍")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidEmoji(t *testing.T) {
	assert.True(t, ValidEmoji("👍"))
	assert.False(t, ValidEmoji("👍👍"))
	assert.False(t, ValidEmoji("ok"))
	assert.False(t, ValidEmoji(""))
}

func TestDeleteOnlyBySender(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()
	_, events := f.hub.Subscribe()

	sent, err := f.svc.Outbound.Send(ctx, OutboundRequest{ChatWaID: "5551", Content: "oops"})
	require.NoError(t, err)
	<-events

	_, err = f.svc.Chat.DeleteMessage(ctx, sent.ID, "5551")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	deleted, err := f.svc.Chat.DeleteMessage(ctx, sent.ID, "me")
	require.NoError(t, err)
	assert.Equal(t, domain.Tombstone, *deleted.Content)
	assert.Equal(t, sent.Timestamp.UnixMilli(), deleted.Timestamp.UnixMilli())

	event, view := decodeEvent(t, <-events)
	assert.Equal(t, ws.EventMessageDeleted, event)
	assert.Equal(t, sent.ID, view.ID)
}

func TestGroupParticipants(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()

	err := f.svc.Chat.AddParticipant(ctx, "group-1", "5551")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.repos.Chat.GetOrCreate(ctx, "5559")
	require.NoError(t, err)
	err = f.svc.Chat.AddParticipant(ctx, "5559", "5551")
	assert.ErrorIs(t, err, domain.ErrBadInput)

	_, err = f.repos.Chat.CreateGroup(ctx, "group-1", "Team")
	require.NoError(t, err)
	err = f.svc.Chat.AddParticipant(ctx, "group-1", "5551")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.repos.Contact.Upsert(ctx, &domain.Contact{WaID: "5551", Name: "Ana"}))
	require.NoError(t, f.svc.Chat.AddParticipant(ctx, "group-1", "5551"))
	assert.ErrorIs(t, f.svc.Chat.AddParticipant(ctx, "group-1", "5551"), domain.ErrBadInput)

	chats, err := f.svc.Chat.ListChats(ctx)
	require.NoError(t, err)
	var group *domain.ChatView
	for i := range chats {
		if chats[i].WaID == "group-1" {
			group = &chats[i]
		}
	}
	require.NotNil(t, group)
	assert.Equal(t, "Team", group.Name)
	require.Len(t, group.Participants, 1)
	assert.Equal(t, "Ana", group.Participants[0].Name)

	require.NoError(t, f.svc.Chat.RemoveParticipant(ctx, "group-1", "5551"))
	assert.ErrorIs(t, f.svc.Chat.RemoveParticipant(ctx, "group-1", "5551"), domain.ErrNotFound)
}

func TestListChatsUsesContactNames(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	ctx := context.Background()
	require.NoError(t, f.repos.Contact.Upsert(ctx, &domain.Contact{WaID: "5551", Name: "Ana", IsOnline: true}))

	_, err := f.svc.Inbound.Process(ctx, textDelivery("5551", "wamid.1", "hi"))
	require.NoError(t, err)
	_, err = f.svc.Inbound.Process(ctx, textDelivery("5552", "wamid.2", "yo"))
	require.NoError(t, err)

	chats, err := f.svc.Chat.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	names := map[string]string{}
	for _, c := range chats {
		names[c.WaID] = c.Name
	}
	assert.Equal(t, "Ana", names["5551"])
	assert.Equal(t, "5552", names["5552"])

	contacts, err := f.svc.Contact.List(ctx)
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}

func TestToggleMissingChat(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, nil, Options{})
	_, err := f.svc.Chat.Toggle(context.Background(), "404", repository.FlagPinned)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
