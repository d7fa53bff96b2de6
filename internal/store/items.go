package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Item is a recommendable catalog entry.
type Item struct {
	ID            int64
	Title         string
	Description   string
	Category      string
	ImageURLs     []string
	IsPublic      bool
	OwnerID       string
	OverallWeight float64
	CreatedAt     int64
	UpdatedAt     int64
}

const itemColumns = `id, title, description, category, image_urls, is_public, owner_id,
	overall_weight, created_at, updated_at`

// CreateItem inserts a new catalog item. OverallWeight always starts at zero;
// it only moves through feedback deltas.
func (db *DB) CreateItem(ctx context.Context, item *Item) error {
	now := time.Now().UnixMilli()
	images := item.ImageURLs
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encode image urls: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO items (title, description, category, image_urls, is_public, owner_id,
			overall_weight, created_at, updated_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, 0, ?, ?)
	`, item.Title, item.Description, item.Category, string(imagesJSON),
		boolToInt(item.IsPublic), item.OwnerID, now, now)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	id, _ := result.LastInsertId()
	item.ID = id
	item.ImageURLs = images
	item.OverallWeight = 0
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// GetItem returns an item by ID, or nil if not found.
func (db *DB) GetItem(ctx context.Context, id int64) (*Item, error) {
	return getItem(ctx, db, id)
}

// GetItem returns an item by ID within the transaction, or nil if not found.
func (t *Tx) GetItem(ctx context.Context, id int64) (*Item, error) {
	return getItem(ctx, t.tx, id)
}

// AddOverallWeight applies a signed delta to an item's aggregate weight and
// returns the new aggregate. Only available inside a transaction so it is
// always paired with the feedback write that produced the delta.
func (t *Tx) AddOverallWeight(ctx context.Context, itemID int64, delta float64) (float64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE items SET overall_weight = overall_weight + ? WHERE id = ?
	`, delta, itemID)
	if err != nil {
		return 0, fmt.Errorf("add overall weight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("add overall weight: item %d not found", itemID)
	}

	var total float64
	if err := t.tx.QueryRowContext(ctx, `SELECT overall_weight FROM items WHERE id = ?`, itemID).Scan(&total); err != nil {
		return 0, fmt.Errorf("read overall weight: %w", err)
	}
	return total, nil
}

func getItem(ctx context.Context, q querier, id int64) (*Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (*Item, error) {
	var it Item
	var description sql.NullString
	var images string
	var public int
	if err := s.Scan(&it.ID, &it.Title, &description, &it.Category, &images, &public,
		&it.OwnerID, &it.OverallWeight, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.Description = description.String
	it.IsPublic = public != 0
	if err := decodeImages(images, &it.ImageURLs); err != nil {
		return nil, err
	}
	return &it, nil
}

func decodeImages(raw string, dst *[]string) error {
	if raw == "" {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode image urls: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
