package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/minicommerce/fulfillment/internal/domain/saga"
)

// SagaStore is the Postgres saga state store. Checkpoints survive a process
// restart, so ListActive hands recovery the sagas the previous run left
// non-terminal. Terminal rows are immutable.
type SagaStore struct {
	pool *pgxpool.Pool
}

func NewSagaStore(pool *pgxpool.Pool) *SagaStore {
	return &SagaStore{pool: pool}
}

func (s *SagaStore) Save(ctx context.Context, state *domain.State) error {
	if state == nil || state.OrderID == "" {
		return fmt.Errorf("saga store: order id is required")
	}

	orderInfo, err := json.Marshal(state.Order)
	if err != nil {
		return fmt.Errorf("marshal order info: %w", err)
	}
	steps, err := json.Marshal(state.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	warnings, err := json.Marshal(state.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	const stmt = `
INSERT INTO saga_states (order_id, version, status, order_info, steps, warnings, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (order_id) DO UPDATE
SET version = EXCLUDED.version,
    status = EXCLUDED.status,
    order_info = EXCLUDED.order_info,
    steps = EXCLUDED.steps,
    warnings = EXCLUDED.warnings,
    updated_at = EXCLUDED.updated_at
WHERE saga_states.status IN ('running', 'compensating')`

	tag, err := s.pool.Exec(ctx, stmt,
		state.OrderID,
		state.Version,
		state.Status,
		orderInfo,
		steps,
		warnings,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save saga state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// A terminal row blocked the update; re-writing the same terminal
		// status is a legitimate retry, anything else is a violation.
		existing, gerr := s.Get(ctx, state.OrderID)
		if gerr != nil {
			return gerr
		}
		if existing.Status == state.Status {
			return nil
		}
		return domain.ErrTerminalState
	}
	return nil
}

func (s *SagaStore) Get(ctx context.Context, orderID string) (*domain.State, error) {
	const query = `
SELECT order_id, version, status, order_info, steps, warnings, created_at, updated_at
FROM saga_states
WHERE order_id = $1`

	state, err := scanState(s.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get saga state: %w", err)
	}
	return state, nil
}

func (s *SagaStore) ListActive(ctx context.Context) ([]*domain.State, error) {
	const query = `
SELECT order_id, version, status, order_info, steps, warnings, created_at, updated_at
FROM saga_states
WHERE status IN ('running', 'compensating')
ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active sagas: %w", err)
	}
	defer rows.Close()

	active := make([]*domain.State, 0)
	for rows.Next() {
		state, serr := scanState(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan saga state: %w", serr)
		}
		active = append(active, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active sagas: %w", err)
	}
	return active, nil
}

func scanState(row pgx.Row) (*domain.State, error) {
	var (
		state     domain.State
		orderInfo []byte
		steps     []byte
		warnings  []byte
	)
	if err := row.Scan(
		&state.OrderID,
		&state.Version,
		&state.Status,
		&orderInfo,
		&steps,
		&warnings,
		&state.CreatedAt,
		&state.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(orderInfo, &state.Order); err != nil {
		return nil, fmt.Errorf("unmarshal order info: %w", err)
	}
	if err := json.Unmarshal(steps, &state.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &state.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}
	return &state, nil
}
