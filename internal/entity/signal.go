package entity

type Position string

const (
	PositionFlat  Position = "flat"
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

func (p Position) Valid() bool {
	switch p {
	case PositionFlat, PositionLong, PositionShort:
		return true
	}
	return false
}

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

type OrderIntent string

const (
	IntentOpenLong         OrderIntent = "open_long"
	IntentSplitOpenLong    OrderIntent = "split_open_long"
	IntentCloseLong        OrderIntent = "close_long"
	IntentSplitCloseLong   OrderIntent = "split_close_long"
	IntentReverseOpenLong  OrderIntent = "reverse_open_long"
	IntentOpenShort        OrderIntent = "open_short"
	IntentSplitOpenShort   OrderIntent = "split_open_short"
	IntentCloseShort       OrderIntent = "close_short"
	IntentSplitCloseShort  OrderIntent = "split_close_short"
	IntentReverseOpenShort OrderIntent = "reverse_open_short"
	IntentNone             OrderIntent = "none"
)
