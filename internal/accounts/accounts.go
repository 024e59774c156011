package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/euras-play/backend/internal/store"
)

// UserCollection is the document collection holding account records.
const UserCollection = "users"

// Key lengths for the portal's login credentials.
const (
	ProfileKeyLength  = 16
	SecurityKeyLength = 10
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid profile or security key")
)

// Wallet is one linked wallet address.
type Wallet struct {
	Address  string `json:"address"`
	Provider string `json:"provider"`
	AddedAt  int64  `json:"addedAt"`
}

// User is the portal account record: identity, login keys, linked wallets
// and the balance the wager ledger adjusts.
type User struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	ProfileKey      string   `json:"profileKey"`
	SecurityKeyHash string   `json:"securityKeyHash"`
	Wallets         []Wallet `json:"wallets"`
	ActiveWallet    string   `json:"activeWallet"`
	Balance         float64  `json:"balance"`
	Avatar          string   `json:"avatar"`
	OwnedItemIDs    []string `json:"ownedItemIds"`
	// Equipped maps a cosmetic slot (e.g. "cardBack") to an owned item id.
	Equipped map[string]string `json:"equipped"`
}

// Service reads and writes user documents.
type Service struct {
	st store.Store
}

func NewService(st store.Store) *Service {
	return &Service{st: st}
}

// NormalizeKey canonicalizes a login key: uppercase, alphanumerics only.
func NormalizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Register creates or updates the user record, hashing the supplied plain
// security key. Returns the stored user.
func (s *Service) Register(ctx context.Context, user User, plainSecurityKey string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeKey(plainSecurityKey)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash security key: %w", err)
	}
	user.ProfileKey = NormalizeKey(user.ProfileKey)
	user.SecurityKeyHash = string(hash)

	if err := s.st.Set(ctx, UserCollection, user.ID, userToDoc(&user), true); err != nil {
		return nil, err
	}
	return &user, nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	doc, ok, err := s.st.Get(ctx, UserCollection, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return userFromDoc(id, doc), nil
}

// FindByWallet looks up the account whose active wallet is address.
func (s *Service) FindByWallet(ctx context.Context, address string) (*User, error) {
	docs, err := s.st.Query(ctx, store.Query{
		Collection: UserCollection,
		Filters: []store.Filter{
			{Field: "activeWallet", Op: store.OpEqual, Value: address},
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return userFromDoc(docs[0].ID, docs[0].Data), nil
}

// LoginWithKeys authenticates the profile-key/security-key pair and returns
// the matching account.
func (s *Service) LoginWithKeys(ctx context.Context, profileKey, securityKey string) (*User, error) {
	docs, err := s.st.Query(ctx, store.Query{
		Collection: UserCollection,
		Filters: []store.Filter{
			{Field: "profileKey", Op: store.OpEqual, Value: NormalizeKey(profileKey)},
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrInvalidCredentials
	}

	user := userFromDoc(docs[0].ID, docs[0].Data)
	if bcrypt.CompareHashAndPassword([]byte(user.SecurityKeyHash), []byte(NormalizeKey(securityKey))) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Listen pushes the full user record on every change (balance, inventory).
func (s *Service) Listen(ctx context.Context, id string, fn func(*User)) (store.UnsubscribeFunc, error) {
	return s.st.Subscribe(ctx, UserCollection, id, func(c store.Change) {
		if c.Kind == store.ChangeRemoved || c.Data == nil {
			return
		}
		fn(userFromDoc(c.ID, c.Data))
	})
}

// GenerateProfileKey returns a fresh 16-character login key.
func GenerateProfileKey() string {
	return generateKey(ProfileKeyLength)
}

// GenerateSecurityKey returns a fresh 10-character secret key.
func GenerateSecurityKey() string {
	return generateKey(SecurityKeyLength)
}

func generateKey(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

func userToDoc(u *User) store.Doc {
	wallets := make([]any, 0, len(u.Wallets))
	for _, w := range u.Wallets {
		wallets = append(wallets, map[string]any{
			"address":  w.Address,
			"provider": w.Provider,
			"addedAt":  float64(w.AddedAt),
		})
	}
	owned := make([]any, 0, len(u.OwnedItemIDs))
	for _, id := range u.OwnedItemIDs {
		owned = append(owned, id)
	}
	equipped := make(map[string]any, len(u.Equipped))
	for slot, item := range u.Equipped {
		equipped[slot] = item
	}
	return store.Doc{
		"id":              u.ID,
		"username":        u.Username,
		"profileKey":      u.ProfileKey,
		"securityKeyHash": u.SecurityKeyHash,
		"wallets":         wallets,
		"activeWallet":    u.ActiveWallet,
		"balance":         u.Balance,
		"avatar":          u.Avatar,
		"ownedItemIds":    owned,
		"equipped":        equipped,
	}
}

func userFromDoc(id string, doc store.Doc) *User {
	u := &User{ID: id}
	u.Username, _ = doc["username"].(string)
	u.ProfileKey, _ = doc["profileKey"].(string)
	u.SecurityKeyHash, _ = doc["securityKeyHash"].(string)
	u.ActiveWallet, _ = doc["activeWallet"].(string)
	u.Avatar, _ = doc["avatar"].(string)
	if b, ok := doc["balance"].(float64); ok {
		u.Balance = b
	}
	if wallets, ok := doc["wallets"].([]any); ok {
		for _, v := range wallets {
			w, _ := v.(map[string]any)
			var wallet Wallet
			wallet.Address, _ = w["address"].(string)
			wallet.Provider, _ = w["provider"].(string)
			if at, ok := w["addedAt"].(float64); ok {
				wallet.AddedAt = int64(at)
			}
			u.Wallets = append(u.Wallets, wallet)
		}
	}
	if owned, ok := doc["ownedItemIds"].([]any); ok {
		for _, v := range owned {
			if item, ok := v.(string); ok {
				u.OwnedItemIDs = append(u.OwnedItemIDs, item)
			}
		}
	}
	if equipped, ok := doc["equipped"].(map[string]any); ok {
		u.Equipped = make(map[string]string, len(equipped))
		for slot, v := range equipped {
			if item, ok := v.(string); ok {
				u.Equipped[slot] = item
			}
		}
	}
	return u
}
