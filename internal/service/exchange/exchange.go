package exchange

import "github.com/hanane-support/H-ATS/internal/entity"

var (
	GlobalExchangeRegistry = make(map[entity.ExchangeName]entity.ExchangeFactory)
)

func RegisterExchange(name entity.ExchangeName, factory entity.ExchangeFactory) {
	GlobalExchangeRegistry[name] = factory
}
