package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

var reviewCols = []string{"id", "play_id", "user_id", "content", "quote", "created_at", "updated_at", "display_name", "avatar_url"}

func TestReviewRepoListByPlayJoinsAuthor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.play_id = ? ORDER BY r.created_at DESC, r.id DESC")).
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows(reviewCols).
			AddRow(uint64(2), uint64(4), uint64(7), "Sharp staging", "To be", stamp, stamp, "Ada", "https://img.example/ada.png").
			AddRow(uint64(1), uint64(4), uint64(8), "Too long", nil, stamp, stamp, nil, nil))

	got, err := repo.ListByPlay(context.Background(), 4)
	if err != nil {
		t.Fatalf("ListByPlay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(got))
	}
	if got[0].Author.Name != "Ada" || got[0].Quote != "To be" {
		t.Fatalf("unexpected first review: %+v", got[0])
	}
	if got[1].Author.Name != "" || got[1].Quote != "" {
		t.Fatalf("expected empty author for orphan review: %+v", got[1])
	}
}

func TestReviewRepoCreateDuplicateIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WithArgs(uint64(4), uint64(7), "Again", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	if _, err := repo.Create(context.Background(), 4, 7, "Again", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestReviewRepoUpdateReloads(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reviews SET content = ?")).
		WithArgs("Better second time", sqlmock.AnyArg(), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows(reviewCols).
			AddRow(uint64(2), uint64(4), uint64(7), "Better second time", nil, stamp, stamp, "Ada", nil))

	rv, err := repo.Update(context.Background(), 2, "Better second time", "")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rv.Content != "Better second time" {
		t.Fatalf("content = %q", rv.Content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
