package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS movements (
		id         CHAR(36)     NOT NULL PRIMARY KEY,
		kind       VARCHAR(16)  NOT NULL,
		item_id    CHAR(36)     NOT NULL,
		item_name  VARCHAR(255) NOT NULL,
		quantity   INT UNSIGNED NOT NULL,
		from_row   INT UNSIGNED NULL,
		from_rack  INT UNSIGNED NULL,
		from_zone  INT UNSIGNED NULL,
		to_row     INT UNSIGNED NULL,
		to_rack    INT UNSIGNED NULL,
		to_zone    INT UNSIGNED NULL,
		created_at DATETIME(6)  NOT NULL,
		INDEX idx_movements_created (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS placements (
		row_id     INT UNSIGNED   NOT NULL,
		rack_id    INT UNSIGNED   NOT NULL,
		zone_id    INT UNSIGNED   NOT NULL,
		item_id    CHAR(36)       NOT NULL,
		name       VARCHAR(255)   NOT NULL,
		quantity   INT UNSIGNED   NOT NULL,
		price      DECIMAL(18, 4) NOT NULL,
		expires_at DATETIME(6)    NULL,
		PRIMARY KEY (row_id, rack_id, zone_id)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the journal and snapshot tables if they are missing.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) RecordMovement(ctx context.Context, mv domain.Movement) error {
	fromRow, fromRack, fromZone := nullLocation(mv.From)
	toRow, toRack, toZone := nullLocation(mv.To)

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO movements (id, kind, item_id, item_name, quantity,
			from_row, from_rack, from_zone, to_row, to_rack, to_zone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.ID, string(mv.Kind), mv.ItemID, mv.ItemName, mv.Quantity,
		fromRow, fromRack, fromZone, toRow, toRack, toZone, mv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListMovements(ctx context.Context, limit int) ([]domain.Movement, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, kind, item_id, item_name, quantity,
			from_row, from_rack, from_zone, to_row, to_rack, to_zone, created_at
		FROM movements ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []domain.Movement
	for rows.Next() {
		var (
			mv                          domain.Movement
			kind                        string
			fromRow, fromRack, fromZone sql.NullInt64
			toRow, toRack, toZone       sql.NullInt64
		)
		if err := rows.Scan(&mv.ID, &kind, &mv.ItemID, &mv.ItemName, &mv.Quantity,
			&fromRow, &fromRack, &fromZone, &toRow, &toRack, &toZone, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		mv.Kind = domain.MovementKind(kind)
		mv.From = locationOf(fromRow, fromRack, fromZone)
		mv.To = locationOf(toRow, toRack, toZone)
		out = append(out, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return out, nil
}

// SaveSnapshot replaces the stored placements in a single transaction.
func (m *MySQLAdapter) SaveSnapshot(ctx context.Context, placements []domain.Placement[domain.Product]) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM placements`); err != nil {
		return fmt.Errorf("clear placements: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO placements (row_id, rack_id, zone_id, item_id, name, quantity, price, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare placement insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range placements {
		expires := sql.NullTime{Time: p.Item.ExpiresAt, Valid: !p.Item.ExpiresAt.IsZero()}
		_, err := stmt.ExecContext(ctx,
			p.Location.Row, p.Location.Rack, p.Location.Zone,
			p.Item.ID().String(), p.Item.Name(), p.Item.Quantity(), p.Item.Price(), expires,
		)
		if err != nil {
			return fmt.Errorf("insert placement %s: %w", p.Location, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) LoadSnapshot(ctx context.Context) ([]domain.Placement[domain.Product], error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT row_id, rack_id, zone_id, item_id, name, quantity, price, expires_at
		FROM placements ORDER BY row_id, rack_id, zone_id`)
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	defer rows.Close()

	var out []domain.Placement[domain.Product]
	for rows.Next() {
		var (
			p       domain.Placement[domain.Product]
			id      string
			price   decimal.Decimal
			expires sql.NullTime
		)
		if err := rows.Scan(&p.Location.Row, &p.Location.Rack, &p.Location.Zone,
			&id, &p.Item.Title, &p.Item.Stock, &price, &expires); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		p.Item.UUID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("placement %s: item id: %w", p.Location, err)
		}
		p.Item.Cost = price
		if expires.Valid {
			p.Item.ExpiresAt = expires.Time.In(time.UTC)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	return out, nil
}

func nullLocation(loc *domain.Location) (row, rack, zone sql.NullInt64) {
	if loc == nil {
		return
	}
	return sql.NullInt64{Int64: int64(loc.Row), Valid: true},
		sql.NullInt64{Int64: int64(loc.Rack), Valid: true},
		sql.NullInt64{Int64: int64(loc.Zone), Valid: true}
}

func locationOf(row, rack, zone sql.NullInt64) *domain.Location {
	if !row.Valid || !rack.Valid || !zone.Valid {
		return nil
	}
	return &domain.Location{Row: uint32(row.Int64), Rack: uint32(rack.Int64), Zone: uint32(zone.Int64)}
}
