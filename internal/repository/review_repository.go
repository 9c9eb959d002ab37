package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/theatre-diary/internal/model"
)

// ErrReviewNotFound is returned when a review lookup fails.
var ErrReviewNotFound = errors.New("review not found")

// reviewSelect joins the author profile; a missing user leaves the author
// fields NULL rather than dropping the review.
const reviewSelect = `SELECT r.id, r.play_id, r.user_id, r.content, r.quote, r.created_at, r.updated_at,
	u.display_name, u.avatar_url
	FROM reviews r
	LEFT JOIN users u ON u.id = r.user_id`

// ReviewRepo persists reviews written against plays.
type ReviewRepo struct {
	db *sql.DB
}

// NewReviewRepo constructs a ReviewRepo with the given DB handle.
func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

func scanReview(rs rowScanner) (model.Review, error) {
	var (
		rv           model.Review
		quote        sql.NullString
		name, avatar sql.NullString
	)
	if err := rs.Scan(&rv.ID, &rv.PlayID, &rv.UserID, &rv.Content, &quote, &rv.CreatedAt, &rv.UpdatedAt, &name, &avatar); err != nil {
		return model.Review{}, err
	}
	rv.Quote = quote.String
	rv.Author = model.Author{Name: name.String, AvatarURL: avatar.String}
	return rv, nil
}

// ListByPlay returns the reviews of a play, newest first.
func (r *ReviewRepo) ListByPlay(ctx context.Context, playID uint64) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx, reviewSelect+` WHERE r.play_id = ? ORDER BY r.created_at DESC, r.id DESC`, playID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a single review with its author.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (*model.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, reviewSelect+` WHERE r.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &rv, nil
}

// Create stores a new review and returns it with its author profile.  A
// second review by the same user on the same play is ErrConflict.
func (r *ReviewRepo) Create(ctx context.Context, playID, userID uint64, content, quote string) (*model.Review, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (play_id, user_id, content, quote) VALUES (?, ?, ?, ?)`,
		playID, userID, content, nullString(quote))
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// Update replaces the content and quote of a review.
func (r *ReviewRepo) Update(ctx context.Context, id uint64, content, quote string) (*model.Review, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE reviews SET content = ?, quote = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		content, nullString(quote), id); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return r.GetByID(ctx, id)
}
