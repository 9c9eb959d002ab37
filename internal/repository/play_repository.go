// Package repository contains data access logic separated from HTTP handlers.
// This file holds the record store for plays: plain CRUD over the `plays`
// table with no rules beyond mapping columns onto model.Play.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/theatre-diary/internal/model"
)

// ErrPlayNotFound is returned when a play cannot be found in the DB.
var ErrPlayNotFound = errors.New("play not found")

const playColumns = `id, user_id, name, theatre, date, rating, is_standing_ovation,
	image, image2, image3, image4, image5, image_zoom, image_x, image_y,
	quote, review, comments, created_at, updated_at`

// PlayRepo encapsulates all database queries related to plays.
type PlayRepo struct {
	db *sql.DB
}

// NewPlayRepo constructs a PlayRepo with the provided DB handle.
func NewPlayRepo(db *sql.DB) *PlayRepo {
	return &PlayRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPlay reads one row selected with playColumns.  Nullable columns fall
// back to their zero values so one odd row never fails a whole listing; a
// play whose owner was deleted comes back with UserID 0, editable by admins
// only.
func scanPlay(rs rowScanner) (model.Play, error) {
	var (
		p                       model.Play
		owner                   sql.NullInt64
		theatre, rating         sql.NullString
		quote, review, comments sql.NullString
		date                    sql.NullTime
		ovation                 sql.NullBool
		zoom, x, y              sql.NullFloat64
		img                     [model.MaxImages]sql.NullString
	)
	err := rs.Scan(
		&p.ID, &owner, &p.Name, &theatre, &date, &rating, &ovation,
		&img[0], &img[1], &img[2], &img[3], &img[4], &zoom, &x, &y,
		&quote, &review, &comments, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Play{}, err
	}
	if owner.Valid && owner.Int64 > 0 {
		p.UserID = uint64(owner.Int64)
	}
	p.Theatre = theatre.String
	if date.Valid {
		p.Date = date.Time
	}
	p.Rating = model.ParseRating(rating.String, ovation.Valid && ovation.Bool)
	for i := range img {
		p.Images[i] = img[i].String
	}
	p.Framing = model.ImageFraming{Zoom: zoom.Float64, X: x.Float64, Y: y.Float64}
	if !zoom.Valid {
		p.Framing = model.DefaultFraming()
	}
	p.Quote, p.Review, p.Comments = quote.String, review.String, comments.String
	return p, nil
}

func (r *PlayRepo) query(ctx context.Context, q string, args ...any) ([]model.Play, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Play{}
	for rows.Next() {
		p, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every play ordered by date (undated first) then id.
func (r *PlayRepo) List(ctx context.Context) ([]model.Play, error) {
	return r.query(ctx, `SELECT `+playColumns+` FROM plays ORDER BY date ASC, id ASC`)
}

// ListByOwner returns the plays logged by one user, in the same order as List.
func (r *PlayRepo) ListByOwner(ctx context.Context, userID uint64) ([]model.Play, error) {
	return r.query(ctx, `SELECT `+playColumns+` FROM plays WHERE user_id = ? ORDER BY date ASC, id ASC`, userID)
}

// GetByID fetches a play by its ID.  It returns ErrPlayNotFound if no row
// matches.
func (r *PlayRepo) GetByID(ctx context.Context, id uint64) (*model.Play, error) {
	p, err := scanPlay(r.db.QueryRowContext(ctx, `SELECT `+playColumns+` FROM plays WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new play.  On success p is replaced with the stored row,
// so ID and timestamps are populated.
func (r *PlayRepo) Create(ctx context.Context, p *model.Play) error {
	const q = `INSERT INTO plays (user_id, name, theatre, date, rating, is_standing_ovation,
		image, image2, image3, image4, image5, image_zoom, image_x, image_y, quote, review, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := append([]any{p.UserID}, writeArgs(p)...)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("insert play: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// Update overwrites the editable fields of p.ID and reloads the row into p.
// Ownership is not checked here; handlers do that before calling.
func (r *PlayRepo) Update(ctx context.Context, p *model.Play) error {
	const q = `UPDATE plays SET name = ?, theatre = ?, date = ?, rating = ?, is_standing_ovation = ?,
		image = ?, image2 = ?, image3 = ?, image4 = ?, image5 = ?, image_zoom = ?, image_x = ?, image_y = ?,
		quote = ?, review = ?, comments = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	args := append(writeArgs(p), p.ID)
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update play: %w", err)
	}
	stored, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// UpdateFraming stores a new zoom and offset for the primary image.
func (r *PlayRepo) UpdateFraming(ctx context.Context, id uint64, f model.ImageFraming) error {
	const q = `UPDATE plays SET image_zoom = ?, image_x = ?, image_y = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, f.Zoom, f.X, f.Y, id)
	if err != nil {
		return fmt.Errorf("update framing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for unchanged rows too, so confirm the row exists.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a play together with its reviews inside one transaction.
// It returns ErrPlayNotFound when the play does not exist.
func (r *PlayRepo) Delete(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM reviews WHERE play_id = ?`, id); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM plays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete play: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrPlayNotFound
		return err
	}
	return nil
}

// writeArgs lists the editable columns in the order both INSERT and UPDATE
// use them.
func writeArgs(p *model.Play) []any {
	var date any
	if p.HasDate() {
		date = p.DateString()
	}
	args := []any{
		p.Name, nullString(p.Theatre), date, nullString(p.Rating.Raw()), p.Rating.IsStandingOvation(),
	}
	for _, u := range p.Images {
		args = append(args, nullString(u))
	}
	f := p.Framing.Clamp()
	return append(args, f.Zoom, f.X, f.Y, nullString(p.Quote), nullString(p.Review), nullString(p.Comments))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
