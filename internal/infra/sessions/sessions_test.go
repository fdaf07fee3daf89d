package sessions_test

import (
	"context"
	"reflect"
	"testing"

	tdsession "github.com/gotd/td/session"

	"telegram-accounts/internal/infra/config"
	"telegram-accounts/internal/infra/sessions"
)

func TestFromConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  config.Config
		want map[string]string
	}{
		{
			name: "jsonMapping",
			cfg:  config.Config{SessionsJSON: `{"test5":"AAA","acc2":"BBB"}`},
			want: map[string]string{"test5": "AAA", "acc2": "BBB"},
		},
		{
			name: "jsonSkipsEmptyAndNonString",
			cfg:  config.Config{SessionsJSON: `{"a":"AAA","b":"","c":123,"":"DDD","d":"  "}`},
			want: map[string]string{"a": "AAA"},
		},
		{
			name: "malformedJSONFallsBack",
			cfg: config.Config{
				SessionsJSON:  `{"broken"`,
				SessionString: "SINGLE",
				AccountName:   "test5",
			},
			want: map[string]string{"test5": "SINGLE"},
		},
		{
			name: "nonObjectJSONFallsBack",
			cfg: config.Config{
				SessionsJSON:  `["not", "an", "object"]`,
				SessionString: "SINGLE",
				AccountName:   "acc",
			},
			want: map[string]string{"acc": "SINGLE"},
		},
		{
			name: "mappingWinsOverFallback",
			cfg: config.Config{
				SessionsJSON:  `{"a":"AAA"}`,
				SessionString: "SINGLE",
				AccountName:   "acc",
			},
			want: map[string]string{"a": "AAA"},
		},
		{
			name: "fallbackDefaultName",
			cfg:  config.Config{SessionString: "SINGLE"},
			want: map[string]string{"default": "SINGLE"},
		},
		{
			name: "nothingConfigured",
			cfg:  config.Config{},
			want: map[string]string{},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := sessions.FromConfig(&tc.cfg)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("FromConfig() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	data := &tdsession.Data{
		DC:        2,
		Addr:      "149.154.167.50:443",
		AuthKey:   []byte{1, 2, 3, 4},
		AuthKeyID: []byte{5, 6, 7, 8},
	}

	credential, err := sessions.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := sessions.Decode(credential)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.DC != data.DC || decoded.Addr != data.Addr {
		t.Fatalf("Decode() = %#v, want %#v", decoded, data)
	}
	if !reflect.DeepEqual(decoded.AuthKey, data.AuthKey) {
		t.Fatalf("auth key mismatch: %v != %v", decoded.AuthKey, data.AuthKey)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, credential := range []string{"", "   ", "definitely-not-a-session"} {
		if _, err := sessions.Decode(credential); err == nil {
			t.Fatalf("Decode(%q) succeeded, want error", credential)
		}
	}
}

func TestStorageRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	data := &tdsession.Data{DC: 4, Addr: "149.154.167.91:443", AuthKey: []byte{9, 9, 9}}

	credential, err := sessions.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	store, err := sessions.Storage(ctx, credential)
	if err != nil {
		t.Fatalf("Storage: %v", err)
	}

	exported, err := sessions.Export(ctx, store)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	decoded, err := sessions.Decode(exported)
	if err != nil {
		t.Fatalf("Decode exported: %v", err)
	}
	if decoded.DC != data.DC || decoded.Addr != data.Addr {
		t.Fatalf("round trip mismatch: %#v != %#v", decoded, data)
	}
}
