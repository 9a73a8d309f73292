package signal

import (
	"errors"
	"fmt"

	"github.com/hanane-support/H-ATS/internal/entity"
)

var (
	ErrInvalidSignal = errors.New("invalid signal")
)

type transition struct {
	prev   entity.Position
	action entity.Action
	next   entity.Position
}

var transitionTable = map[transition]entity.OrderIntent{
	{entity.PositionFlat, entity.ActionBuy, entity.PositionLong}:    entity.IntentOpenLong,
	{entity.PositionLong, entity.ActionBuy, entity.PositionLong}:    entity.IntentSplitOpenLong,
	{entity.PositionLong, entity.ActionSell, entity.PositionFlat}:   entity.IntentCloseLong,
	{entity.PositionLong, entity.ActionSell, entity.PositionLong}:   entity.IntentSplitCloseLong,
	{entity.PositionShort, entity.ActionBuy, entity.PositionLong}:   entity.IntentReverseOpenLong,
	{entity.PositionFlat, entity.ActionSell, entity.PositionShort}:  entity.IntentOpenShort,
	{entity.PositionShort, entity.ActionSell, entity.PositionShort}: entity.IntentSplitOpenShort,
	{entity.PositionShort, entity.ActionBuy, entity.PositionFlat}:   entity.IntentCloseShort,
	{entity.PositionShort, entity.ActionBuy, entity.PositionShort}:  entity.IntentSplitCloseShort,
	{entity.PositionLong, entity.ActionSell, entity.PositionShort}:  entity.IntentReverseOpenShort,
}

// ResolveIntent maps a (previous position, action, new position) triple to an order intent.
// Valid triples outside the table resolve to IntentNone.
func ResolveIntent(prev, action, next string) (entity.OrderIntent, error) {
	key := transition{
		prev:   entity.Position(prev),
		action: entity.Action(action),
		next:   entity.Position(next),
	}

	if !key.prev.Valid() {
		return entity.IntentNone, fmt.Errorf("%w: unknown previous position %q", ErrInvalidSignal, prev)
	}
	if !key.action.Valid() {
		return entity.IntentNone, fmt.Errorf("%w: unknown action %q", ErrInvalidSignal, action)
	}
	if !key.next.Valid() {
		return entity.IntentNone, fmt.Errorf("%w: unknown position %q", ErrInvalidSignal, next)
	}

	intent, ok := transitionTable[key]
	if !ok {
		return entity.IntentNone, nil
	}

	return intent, nil
}
