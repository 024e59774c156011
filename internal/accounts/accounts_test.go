package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/euras-play/backend/internal/store"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"abcd-1234", "ABCD1234"},
		{"  AB cd 99 ", "ABCD99"},
		{"a!b@c#1$", "ABC1"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGeneratedKeyShapes(t *testing.T) {
	pk := GenerateProfileKey()
	sk := GenerateSecurityKey()
	if len(pk) != ProfileKeyLength {
		t.Errorf("Profile key length %d, want %d", len(pk), ProfileKeyLength)
	}
	if len(sk) != SecurityKeyLength {
		t.Errorf("Security key length %d, want %d", len(sk), SecurityKeyLength)
	}
	// Keys are already in normalized form
	if NormalizeKey(pk) != pk {
		t.Errorf("Profile key not normalized: %q", pk)
	}
	if GenerateProfileKey() == pk {
		t.Errorf("Profile keys repeat")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	securityKey := "SECRETKEY1"
	stored, err := svc.Register(ctx, User{
		ID:         "u1",
		Username:   "Alpha",
		ProfileKey: "profile-key-0001",
		Balance:    50,
	}, securityKey)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if stored.ProfileKey != "PROFILEKEY0001" {
		t.Errorf("Profile key not normalized: %q", stored.ProfileKey)
	}
	if stored.SecurityKeyHash == securityKey || stored.SecurityKeyHash == "" {
		t.Errorf("Security key stored in the clear or missing")
	}

	// Login accepts un-normalized key input
	user, err := svc.LoginWithKeys(ctx, "profile key 0001", "secret-key-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != "u1" || user.Balance != 50 {
		t.Errorf("Wrong account returned: %+v", user)
	}

	if _, err := svc.LoginWithKeys(ctx, "PROFILEKEY0001", "WRONGKEY99"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Wrong security key: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.LoginWithKeys(ctx, "NOSUCHKEY", securityKey); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Unknown profile key: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestGetAndFindByWallet(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_, err := svc.Register(ctx, User{
		ID:           "u1",
		Username:     "Alpha",
		ProfileKey:   GenerateProfileKey(),
		ActiveWallet: "wallet-addr-1",
		Wallets:      []Wallet{{Address: "wallet-addr-1", Provider: "Test", AddedAt: 1}},
		OwnedItemIDs: []string{"skin_gold"},
	}, GenerateSecurityKey())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(user.Wallets) != 1 || user.Wallets[0].Address != "wallet-addr-1" {
		t.Errorf("Wallets lost: %+v", user.Wallets)
	}
	if len(user.OwnedItemIDs) != 1 || user.OwnedItemIDs[0] != "skin_gold" {
		t.Errorf("Inventory lost: %+v", user.OwnedItemIDs)
	}

	byWallet, err := svc.FindByWallet(ctx, "wallet-addr-1")
	if err != nil {
		t.Fatalf("FindByWallet failed: %v", err)
	}
	if byWallet.ID != "u1" {
		t.Errorf("FindByWallet returned %s", byWallet.ID)
	}
	if _, err := svc.FindByWallet(ctx, "unknown-addr"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListenStreamsBalanceChanges(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	if _, err := svc.Register(ctx, User{ID: "u1", Username: "Alpha", ProfileKey: GenerateProfileKey(), Balance: 10}, GenerateSecurityKey()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var got []float64
	unsub, err := svc.Listen(ctx, "u1", func(u *User) {
		got = append(got, u.Balance)
	})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer unsub()

	if err := st.Set(ctx, UserCollection, "u1", store.Doc{"balance": 35.0}, true); err != nil {
		t.Fatalf("Balance update failed: %v", err)
	}

	if len(got) != 2 || got[0] != 10 || got[1] != 35 {
		t.Errorf("Expected balances [10 35], got %v", got)
	}
}
