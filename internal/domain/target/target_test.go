package target_test

import (
	"encoding/json"
	"testing"

	"telegram-accounts/internal/domain/target"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want target.Ref
	}{
		{name: "botAPIStyle", raw: "-1001450445959", want: target.Ref{ID: 1450445959}},
		{name: "numericString", raw: "1450445959", want: target.Ref{ID: 1450445959}},
		{name: "username", raw: "some_group", want: target.Ref{Username: "some_group"}},
		{name: "usernameWithAt", raw: "@some_group", want: target.Ref{Username: "some_group"}},
		{name: "negativeChatID", raw: "-200123", want: target.Ref{ID: -200123}},
		{name: "whitespace", raw: "  some_group  ", want: target.Ref{Username: "some_group"}},
		{name: "empty", raw: "", want: target.Ref{}},
		{name: "dashOnly", raw: "-", want: target.Ref{Username: "-"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := target.Parse(tc.raw); got != tc.want {
				t.Fatalf("Parse(%q) = %#v, want %#v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   int64
		want int64
	}{
		{in: -1001450445959, want: 1450445959},
		{in: 1450445959, want: 1450445959},
		{in: -200123, want: -200123},
		{in: 0, want: 0},
	}

	for _, tc := range cases {
		if got := target.NormalizeID(tc.in); got != tc.want {
			t.Fatalf("NormalizeID(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// Нормализация обязана быть идемпотентной: повторный прогон результата через
// Parse/NormalizeID ничего не меняет.
func TestParseIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"-1001450445959", "1450445959", "some_group", "-200123", "@handle"}
	for _, in := range inputs {
		first := target.Parse(in)
		second := target.Parse(first.String())
		if second != first {
			t.Fatalf("Parse not idempotent for %q: first %#v, second %#v", in, first, second)
		}
		if first.ID != 0 && target.NormalizeID(first.ID) != first.ID {
			t.Fatalf("NormalizeID not idempotent for %q: %d", in, first.ID)
		}
	}
}

func TestMarkChannelRoundTrip(t *testing.T) {
	t.Parallel()

	ids := []int64{1450445959, 1, 9999999999}
	for _, id := range ids {
		marked := target.MarkChannel(id)
		if got := target.NormalizeID(marked); got != id {
			t.Fatalf("NormalizeID(MarkChannel(%d)) = %d", id, got)
		}
	}
}

func TestRefUnmarshalJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want target.Ref
	}{
		{name: "jsonNumber", body: `{"group": 1450445959}`, want: target.Ref{ID: 1450445959}},
		{name: "jsonMarkedNumber", body: `{"group": -1001450445959}`, want: target.Ref{ID: 1450445959}},
		{name: "jsonString", body: `{"group": "some_group"}`, want: target.Ref{Username: "some_group"}},
		{name: "jsonNumericString", body: `{"group": "-1001450445959"}`, want: target.Ref{ID: 1450445959}},
		{name: "jsonNull", body: `{"group": null}`, want: target.Ref{}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var payload struct {
				Group target.Ref `json:"group"`
			}
			if err := json.Unmarshal([]byte(tc.body), &payload); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.body, err)
			}
			if payload.Group != tc.want {
				t.Fatalf("got %#v, want %#v", payload.Group, tc.want)
			}
		})
	}
}
