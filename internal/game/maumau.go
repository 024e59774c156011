package game

import "fmt"

// MauMauHandSize is the opening hand dealt to each player.
const MauMauHandSize = 7

// MauMau is the shared table state of a two-player Mau-Mau round: each hand,
// the face-down draw pile and the discard pile (top card last). CurrentSuit
// tracks the suit in force, which diverges from the top card after a Jack.
type MauMau struct {
	Hands       map[string][]Card `json:"hands"`
	DrawPile    []Card            `json:"drawPile"`
	DiscardPile []Card            `json:"discardPile"`
	CurrentSuit Suit              `json:"currentSuit"`
	PendingDraw int               `json:"pendingDraw"` // accumulated 7-penalty cards
}

// DealMauMau shuffles a fresh deck and deals the opening hands plus the
// starting discard.
func DealMauMau(players [2]string) (*MauMau, error) {
	deck := NewDeck()
	b := &MauMau{Hands: make(map[string][]Card, 2)}

	for _, p := range players {
		hand, err := deck.DrawMultiple(MauMauHandSize)
		if err != nil {
			return nil, fmt.Errorf("deal mau-mau: %w", err)
		}
		b.Hands[p] = hand
	}

	top, err := deck.Draw()
	if err != nil {
		return nil, fmt.Errorf("deal mau-mau: %w", err)
	}
	b.DiscardPile = []Card{top}
	b.CurrentSuit = top.Suit
	b.DrawPile = deck.GetCards()
	return b, nil
}

// Top returns the active discard card, nil on an empty pile.
func (b *MauMau) Top() *Card {
	if len(b.DiscardPile) == 0 {
		return nil
	}
	return &b.DiscardPile[len(b.DiscardPile)-1]
}

// CanPlay reports whether card is a legal play for player right now.
func (b *MauMau) CanPlay(player string, card Card) bool {
	if !b.holds(player, card) {
		return false
	}
	// A pending 7-penalty can only be answered with another 7.
	if b.PendingDraw > 0 && card.Rank != Seven {
		return false
	}
	return card.CanPlayOn(b.Top(), b.CurrentSuit)
}

// Play moves card from player's hand onto the discard pile. declaredSuit is
// honored only for a Jack.
func (b *MauMau) Play(player string, card Card, declaredSuit Suit) error {
	if !b.CanPlay(player, card) {
		return fmt.Errorf("illegal play %s: %w", card, ErrInvalidCard)
	}

	b.removeFromHand(player, card)
	b.DiscardPile = append(b.DiscardPile, card)

	switch card.Rank {
	case Jack:
		if declaredSuit != "" {
			b.CurrentSuit = declaredSuit
		} else {
			b.CurrentSuit = card.Suit
		}
	case Seven:
		b.CurrentSuit = card.Suit
		b.PendingDraw += 2
	default:
		b.CurrentSuit = card.Suit
	}
	return nil
}

// DrawInto moves n cards from the draw pile into player's hand, reshuffling
// the discard when the pile runs dry.
func (b *MauMau) DrawInto(player string, n int) error {
	for i := 0; i < n; i++ {
		if len(b.DrawPile) == 0 {
			b.recycleDiscard()
		}
		if len(b.DrawPile) == 0 {
			return ErrDeckEmpty
		}
		card := b.DrawPile[len(b.DrawPile)-1]
		b.DrawPile = b.DrawPile[:len(b.DrawPile)-1]
		b.Hands[player] = append(b.Hands[player], card)
	}
	return nil
}

// Out reports whether player has shed their whole hand (the win condition).
func (b *MauMau) Out(player string) bool {
	return len(b.Hands[player]) == 0
}

// HandPoints counts the losing hand for scoring displays.
func (b *MauMau) HandPoints(player string) int {
	total := 0
	for _, c := range b.Hands[player] {
		total += c.PointValue()
	}
	return total
}

func (b *MauMau) holds(player string, card Card) bool {
	for _, c := range b.Hands[player] {
		if c == card {
			return true
		}
	}
	return false
}

func (b *MauMau) removeFromHand(player string, card Card) {
	hand := b.Hands[player]
	for i, c := range hand {
		if c == card {
			b.Hands[player] = append(hand[:i], hand[i+1:]...)
			return
		}
	}
}

func (b *MauMau) recycleDiscard() {
	if len(b.DiscardPile) <= 1 {
		return
	}
	deck := &Deck{}
	deck.SetCards(nil)
	deck.ReshuffleFrom(b.DiscardPile)
	b.DrawPile = deck.GetCards()
	b.DiscardPile = b.DiscardPile[len(b.DiscardPile)-1:]
}
