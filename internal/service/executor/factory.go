package executor

import (
	"context"

	"github.com/hanane-support/H-ATS/internal/entity"
)

// Factory builds one OrderExecutor per webhook from the operator's stored credentials.
type Factory struct {
	store     entity.CredentialStore
	exchanges map[entity.ExchangeName]entity.ExchangeFactory
	configs   map[entity.ExchangeName]Config
}

func NewFactory(store entity.CredentialStore, exchanges map[entity.ExchangeName]entity.ExchangeFactory, configs map[entity.ExchangeName]Config) *Factory {
	return &Factory{
		store:     store,
		exchanges: exchanges,
		configs:   configs,
	}
}

func (f *Factory) Supports(exchangeName entity.ExchangeName) bool {
	_, ok := f.exchanges[exchangeName]
	return ok
}

func (f *Factory) New(ctx context.Context, operatorID string, exchangeName entity.ExchangeName) (*OrderExecutor, error) {
	return NewOrderExecutor(ctx, operatorID, exchangeName, f.store, f.exchanges[exchangeName], f.configs[exchangeName])
}
