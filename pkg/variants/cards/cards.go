// Package cards is a shedding game: players take turns throwing a card that
// matches the top of the discard pile by rank or suit, or draw one. The
// first player to empty their hand wins; everyone still holding cards loses.
package cards

import (
	"context"
	_ "embed"
	"math/rand"
	"sync"
	"time"

	"github.com/razzie/razroom/pkg/razroom"
)

//go:embed schema.json
var schemaJSON []byte

const (
	ParamCardsOnHand = "cards_on_hand"

	ActionThrow = "throw"
	ActionDraw  = "draw"

	sharedDraw    = "draw"
	sharedDiscard = "discard"
	sharedLosers  = "losers"
)

type Variant struct {
	schema razroom.Schema
	mtx    sync.Mutex
	rng    *rand.Rand
}

func New() *Variant {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded deals from a deterministic shuffle.
func NewSeeded(seed int64) *Variant {
	return &Variant{
		schema: razroom.MustParseSchema(schemaJSON),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (v *Variant) Name() string {
	return "cards"
}

func (v *Variant) Schema() razroom.Schema {
	return v.schema
}

func (v *Variant) shuffle(cards []string) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

func (v *Variant) Setup(ctx context.Context, t *razroom.Table) error {
	cfg, err := t.Config(ctx)
	if err != nil {
		return err
	}
	v.mtx.Lock()
	deck := NewDeck(v.rng)
	v.mtx.Unlock()

	chairs, err := t.Chairs(ctx)
	if err != nil {
		return err
	}
	n := cfg.Int(ParamCardsOnHand)
	for _, c := range chairs {
		dealt := append([]string{}, deck[:n]...)
		deck = deck[n:]
		if err := t.SetVariantState(ctx, c, dealt); err != nil {
			return err
		}
	}
	if err := t.SetShared(ctx, sharedDiscard, deck[:1]); err != nil {
		return err
	}
	return t.SetShared(ctx, sharedDraw, deck[1:])
}

func hand(ctx context.Context, t *razroom.Table, c razroom.Chair) ([]string, error) {
	var cards []string
	_, err := t.VariantState(ctx, c, &cards)
	return cards, err
}

func pile(ctx context.Context, t *razroom.Table, name string) ([]string, error) {
	var cards []string
	_, err := t.Shared(ctx, name, &cards)
	return cards, err
}

func top(ctx context.Context, t *razroom.Table) (string, error) {
	discard, err := pile(ctx, t, sharedDiscard)
	if err != nil || len(discard) == 0 {
		return "", err
	}
	return discard[len(discard)-1], nil
}

func (v *Variant) Play(ctx context.Context, t *razroom.Table, chair razroom.Chair, action, move string) (bool, error) {
	cur, ok, err := t.CurrentPlayer(ctx)
	if err != nil || !ok || cur != chair {
		return false, err
	}
	switch action {
	case ActionThrow:
		return v.throw(ctx, t, chair, move)
	case ActionDraw:
		return v.draw(ctx, t, chair)
	}
	return false, nil
}

func (v *Variant) throw(ctx context.Context, t *razroom.Table, chair razroom.Chair, card string) (bool, error) {
	cards, err := hand(ctx, t, chair)
	if err != nil {
		return false, err
	}
	onTop, err := top(ctx, t)
	if err != nil {
		return false, err
	}
	if !Matches(card, onTop) {
		return false, nil
	}
	cards, ok := remove(cards, card)
	if !ok {
		return false, nil
	}
	if err := t.SetVariantState(ctx, chair, cards); err != nil {
		return false, err
	}
	if _, err := t.AppendShared(ctx, sharedDiscard, card); err != nil {
		return false, err
	}
	if _, err := t.AddPoints(ctx, chair, 1); err != nil {
		return false, err
	}
	if len(cards) == 0 {
		return true, nil
	}
	_, err = t.AdvanceTurn(ctx)
	return true, err
}

func (v *Variant) draw(ctx context.Context, t *razroom.Table, chair razroom.Chair) (bool, error) {
	drawPile, err := pile(ctx, t, sharedDraw)
	if err != nil {
		return false, err
	}
	if len(drawPile) == 0 {
		if drawPile, err = v.reshuffle(ctx, t); err != nil || len(drawPile) == 0 {
			return false, err
		}
	}
	card := drawPile[len(drawPile)-1]
	if err := t.SetShared(ctx, sharedDraw, drawPile[:len(drawPile)-1]); err != nil {
		return false, err
	}
	cards, err := hand(ctx, t, chair)
	if err != nil {
		return false, err
	}
	if err := t.SetVariantState(ctx, chair, append(cards, card)); err != nil {
		return false, err
	}
	_, err = t.AdvanceTurn(ctx)
	return true, err
}

// reshuffle turns everything under the top card of the discard pile into a
// new draw pile.
func (v *Variant) reshuffle(ctx context.Context, t *razroom.Table) ([]string, error) {
	discard, err := pile(ctx, t, sharedDiscard)
	if err != nil || len(discard) <= 1 {
		return nil, err
	}
	drawPile := append([]string{}, discard[:len(discard)-1]...)
	v.shuffle(drawPile)
	if err := t.SetShared(ctx, sharedDiscard, discard[len(discard)-1:]); err != nil {
		return nil, err
	}
	return drawPile, t.SetShared(ctx, sharedDraw, drawPile)
}

func (v *Variant) emptyHand(ctx context.Context, t *razroom.Table) (bool, error) {
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range chairs {
		cards, err := hand(ctx, t, c)
		if err != nil {
			return false, err
		}
		if len(cards) == 0 {
			return true, nil
		}
	}
	return false, nil
}

// stalled reports that the player to move can neither throw nor draw.
func (v *Variant) stalled(ctx context.Context, t *razroom.Table) (bool, error) {
	drawLen, err := t.SharedLen(ctx, sharedDraw)
	if err != nil || drawLen > 0 {
		return false, err
	}
	discardLen, err := t.SharedLen(ctx, sharedDiscard)
	if err != nil || discardLen > 1 {
		return false, err
	}
	cur, ok, err := t.CurrentPlayer(ctx)
	if err != nil || !ok {
		return false, err
	}
	throws, err := throwable(ctx, t, cur)
	return len(throws) == 0, err
}

func throwable(ctx context.Context, t *razroom.Table, c razroom.Chair) ([]string, error) {
	cards, err := hand(ctx, t, c)
	if err != nil {
		return nil, err
	}
	onTop, err := top(ctx, t)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, card := range cards {
		if Matches(card, onTop) {
			out = append(out, card)
		}
	}
	return out, nil
}

func (v *Variant) IsRoundOver(ctx context.Context, t *razroom.Table) (bool, error) {
	empty, err := v.emptyHand(ctx, t)
	if err != nil || empty {
		return empty, err
	}
	return v.stalled(ctx, t)
}

// IsDraw is true for a stalled round nobody won.
func (v *Variant) IsDraw(ctx context.Context, t *razroom.Table) (bool, error) {
	empty, err := v.emptyHand(ctx, t)
	if err != nil || empty {
		return false, err
	}
	return v.stalled(ctx, t)
}

func (v *Variant) SelectLosers(ctx context.Context, t *razroom.Table) error {
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return err
	}
	losers := []razroom.Chair{}
	for _, c := range chairs {
		cards, err := hand(ctx, t, c)
		if err != nil {
			return err
		}
		if len(cards) > 0 {
			losers = append(losers, c)
		}
	}
	return t.SetShared(ctx, sharedLosers, losers)
}

func (v *Variant) LosingDisplayNames(ctx context.Context, t *razroom.Table) ([]string, error) {
	var losers []razroom.Chair
	if _, err := t.Shared(ctx, sharedLosers, &losers); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(losers))
	for _, c := range losers {
		name, err := t.DisplayName(ctx, c)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// LegalMoves lists "throw <card>" for every matching card and "draw" while
// a card can be drawn.
func (v *Variant) LegalMoves(ctx context.Context, t *razroom.Table, chair razroom.Chair) ([]string, error) {
	cur, ok, err := t.CurrentPlayer(ctx)
	if err != nil || !ok || cur != chair {
		return nil, err
	}
	throws, err := throwable(ctx, t, chair)
	if err != nil {
		return nil, err
	}
	moves := make([]string, 0, len(throws)+1)
	for _, card := range throws {
		moves = append(moves, ActionThrow+" "+card)
	}
	drawLen, err := t.SharedLen(ctx, sharedDraw)
	if err != nil {
		return nil, err
	}
	discardLen, err := t.SharedLen(ctx, sharedDiscard)
	if err != nil {
		return nil, err
	}
	if drawLen > 0 || discardLen > 1 {
		moves = append(moves, ActionDraw)
	}
	return moves, nil
}

// Board is the public view of a card round.
type Board struct {
	DrawPile    int                   `json:"draw_pile"`
	DiscardPile int                   `json:"discard_pile"`
	Top         string                `json:"top"`
	Hands       map[razroom.Chair]int `json:"hands"`
}

func (v *Variant) View(ctx context.Context, t *razroom.Table) (any, error) {
	view := &Board{Top: "--", Hands: make(map[razroom.Chair]int)}
	var err error
	if view.DrawPile, err = t.SharedLen(ctx, sharedDraw); err != nil {
		return nil, err
	}
	if view.DiscardPile, err = t.SharedLen(ctx, sharedDiscard); err != nil {
		return nil, err
	}
	if onTop, err := top(ctx, t); err != nil {
		return nil, err
	} else if onTop != "" {
		view.Top = onTop
	}
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range chairs {
		cards, err := hand(ctx, t, c)
		if err != nil {
			return nil, err
		}
		view.Hands[c] = len(cards)
	}
	return view, nil
}
