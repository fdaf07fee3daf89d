package tgops

import (
	"reflect"
	"testing"

	"github.com/gotd/td/tg"
)

func TestBuildDialogs(t *testing.T) {
	t.Parallel()

	user := &tg.User{ID: 100, FirstName: "Bob", AccessHash: 7}
	user.SetUsername("bob")
	chat := &tg.Chat{ID: 200, Title: "Old Group"}
	megagroup := &tg.Channel{ID: 1450445959, AccessHash: 9, Title: "Big Group", Megagroup: true}
	broadcast := &tg.Channel{ID: 300, AccessHash: 8, Title: "News"}
	broadcast.SetUsername("news")
	broadcast.Broadcast = true

	batch := &tg.MessagesDialogs{
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 100}, TopMessage: 5, UnreadCount: 2},
			&tg.Dialog{Peer: &tg.PeerChat{ChatID: 200}, TopMessage: 6},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 1450445959}, TopMessage: 7, UnreadCount: 10},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 300}, TopMessage: 8},
		},
		Messages: []tg.MessageClass{
			&tg.Message{ID: 5, PeerID: &tg.PeerUser{UserID: 100}, Date: 1700000000},
			&tg.MessageService{ID: 6, PeerID: &tg.PeerChat{ChatID: 200}, Date: 1700000100},
		},
		Chats: []tg.ChatClass{chat, megagroup, broadcast},
		Users: []tg.UserClass{user},
	}

	got := buildDialogs(batch, 10)
	want := []Dialog{
		{ID: 100, Title: "Bob", Username: "bob", IsUser: true, UnreadCount: 2, LastMessageDate: "2023-11-14T22:13:20Z"},
		{ID: -200, Title: "Old Group", IsGroup: true, LastMessageDate: "2023-11-14T22:15:00Z"},
		{ID: -1001450445959, Title: "Big Group", IsGroup: true, UnreadCount: 10},
		{ID: -1000000000300, Title: "News", Username: "news", IsChannel: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildDialogs mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestBuildDialogsRespectsLimit(t *testing.T) {
	t.Parallel()

	batch := &tg.MessagesDialogs{
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 1}},
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 2}},
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 3}},
		},
		Users: []tg.UserClass{
			&tg.User{ID: 1}, &tg.User{ID: 2}, &tg.User{ID: 3},
		},
	}

	if got := buildDialogs(batch, 2); len(got) != 2 {
		t.Fatalf("expected 2 dialogs, got %d", len(got))
	}
}

func TestBuildDialogsSkipsUnknownEntities(t *testing.T) {
	t.Parallel()

	batch := &tg.MessagesDialogs{
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 404}},
			&tg.DialogFolder{},
		},
	}

	if got := buildDialogs(batch, 10); len(got) != 0 {
		t.Fatalf("expected no dialogs, got %+v", got)
	}
}
