package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/jmoiron/sqlx"
)

type ExecutionHistoryRepository struct {
	db *sqlx.DB
}

func NewExecutionHistoryRepository(db *sqlx.DB) *ExecutionHistoryRepository {
	return &ExecutionHistoryRepository{db: db}
}

func (r *ExecutionHistoryRepository) Create(ctx context.Context, history *entity.ExecutionHistory) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(history.TableName()).
		Columns(
			"request_id",
			"admin_id",
			"exchange",
			"ticker",
			"symbol",
			"intent",
			"signal_id",
			"comment",
			"exchange_order_id",
			"side",
			"avg_fill_price",
			"filled_quantity",
			"filled_cost",
			"success",
			"advisory_note",
			"failure_message",
			"alert_at",
			"created_at",
		).
		Values(
			history.RequestID,
			history.AdminID,
			history.Exchange,
			history.Ticker,
			history.Symbol,
			history.Intent,
			history.SignalID,
			history.Comment,
			history.ExchangeOrderID,
			history.Side,
			history.AvgFillPrice,
			history.FilledQuantity,
			history.FilledCost,
			history.Success,
			history.AdvisoryNote,
			history.FailureMessage,
			history.AlertAt,
			history.CreatedAt,
		).
		Suffix("RETURNING id")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return err
	}

	history.ID = id

	return nil
}

func (r *ExecutionHistoryRepository) GetRecentByAdminID(ctx context.Context, adminID string, limit uint64) ([]entity.ExecutionHistory, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("*").
		From(entity.ExecutionHistory{}.TableName()).
		Where(sq.Eq{"admin_id": adminID}).
		OrderBy("created_at desc").
		Limit(limit)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	histories := make([]entity.ExecutionHistory, 0)
	err = r.db.SelectContext(ctx, &histories, query, args...)
	if err != nil {
		return nil, err
	}

	return histories, nil
}
