package tgops

import (
	"reflect"
	"testing"

	"github.com/gotd/td/tg"
)

func TestWindow(t *testing.T) {
	t.Parallel()

	all := []Member{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []int64
	}{
		{name: "full list without limit", offset: 0, limit: 0, want: []int64{1, 2, 3, 4}},
		{name: "skip one take two", offset: 1, limit: 2, want: []int64{2, 3}},
		{name: "offset to the end", offset: 3, limit: 0, want: []int64{4}},
		{name: "offset past the end", offset: 10, limit: 5, want: []int64{}},
		{name: "limit past the end", offset: 2, limit: 100, want: []int64{3, 4}},
		{name: "negative offset treated as zero", offset: -3, limit: 1, want: []int64{1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := window(all, tc.offset, tc.limit)
			ids := make([]int64, 0, len(got))
			for _, member := range got {
				ids = append(ids, member.ID)
			}
			if !reflect.DeepEqual(ids, tc.want) {
				t.Fatalf("window(%d, %d) = %v, want %v", tc.offset, tc.limit, ids, tc.want)
			}
		})
	}
}

func TestChannelParticipantUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		participant tg.ChannelParticipantClass
		wantID      int64
		wantAdmin   bool
		wantOK      bool
	}{
		{name: "plain member", participant: &tg.ChannelParticipant{UserID: 10}, wantID: 10, wantOK: true},
		{name: "self", participant: &tg.ChannelParticipantSelf{UserID: 11}, wantID: 11, wantOK: true},
		{name: "creator is admin", participant: &tg.ChannelParticipantCreator{UserID: 12}, wantID: 12, wantAdmin: true, wantOK: true},
		{name: "admin", participant: &tg.ChannelParticipantAdmin{UserID: 13}, wantID: 13, wantAdmin: true, wantOK: true},
		{name: "banned is skipped", participant: &tg.ChannelParticipantBanned{}, wantOK: false},
		{name: "left is skipped", participant: &tg.ChannelParticipantLeft{}, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			id, admin, ok := channelParticipantUser(tc.participant)
			if ok != tc.wantOK || id != tc.wantID || admin != tc.wantAdmin {
				t.Fatalf("got (%d, %v, %v), want (%d, %v, %v)", id, admin, ok, tc.wantID, tc.wantAdmin, tc.wantOK)
			}
		})
	}
}

func TestMemberFromUser(t *testing.T) {
	t.Parallel()

	user := &tg.User{
		ID:        42,
		FirstName: "Alice",
		LastName:  "Liddell",
		Bot:       false,
		Contact:   true,
		Verified:  true,
	}
	user.SetUsername("alice")

	got := memberFromUser(user, true)
	want := Member{
		ID:         42,
		Username:   "alice",
		FirstName:  "Alice",
		LastName:   "Liddell",
		IsAdmin:    true,
		IsContact:  true,
		IsVerified: true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("memberFromUser = %+v, want %+v", got, want)
	}
}
