package app

import "testing"

func TestSuggestIdentity(t *testing.T) {
	enrolled := []string{"alice", "bob", "christopher"}

	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{"phonetic near miss", "alyce", "alice"},
		{"typo", "chrisopher", "christopher"},
		{"exact match excluded", "bob", ""},
		{"nothing close", "zzzzqq", ""},
		{"empty input", "  ", ""},
		{"case insensitive", "ALYCE", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := suggestIdentity(tt.requested, enrolled); got != tt.want {
				t.Errorf("suggestIdentity(%q) = %q, want %q", tt.requested, got, tt.want)
			}
		})
	}
}

func TestSuggestIdentityEmptyRegistry(t *testing.T) {
	if got := suggestIdentity("alice", nil); got != "" {
		t.Errorf("suggestIdentity with no enrolled identities = %q, want empty", got)
	}
}

func TestSuggestIdentityPhoneticNearMiss(t *testing.T) {
	// "alise" sounds like "alice" but is a weak pure-string match, so the
	// phonetic stage must carry it.
	got := suggestIdentity("alise", []string{"alice", "bob"})
	if got != "alice" {
		t.Errorf("suggestIdentity(\"alise\") = %q, want %q", got, "alice")
	}
}
