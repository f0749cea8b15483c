package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "prefs", "commune.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	const alice = "0xAbC0000000000000000000000000000000000001"

	if _, err := s.Get(ctx, alice, KeyLanguage); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.Set(ctx, alice, KeyLanguage, "vi"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, alice, KeyLanguage, "en"); err != nil {
		t.Fatal(err)
	}
	// lookups ignore address case
	got, err := s.Get(ctx, "0xabc0000000000000000000000000000000000001", KeyLanguage)
	if err != nil || got != "en" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := s.Set(ctx, alice, EmojiKey("chore:42-3"), "🧽"); err != nil {
		t.Fatal(err)
	}
	all, err := s.All(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["emoji:chore:42-3"] != "🧽" {
		t.Errorf("All = %v", all)
	}

	// empty value clears
	if err := s.Set(ctx, alice, KeyLanguage, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, alice, KeyLanguage); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v after clear", err)
	}
}

func TestStore_Validation(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{KeyLanguage, "en", false},
		{EmojiKey("task:9"), "🔧", false},
		{"emoji:", "x", true},
		{"theme", "dark", true},
		{KeyLanguage, string(make([]byte, 65)), true},
	}
	for _, tt := range tests {
		err := s.Set(ctx, "0x1", tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commune.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "0x1", KeyLanguage, "en"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got, _ := s.Get(ctx, "0x1", KeyLanguage); got != "en" {
		t.Errorf("Get after reopen = %q", got)
	}
}
