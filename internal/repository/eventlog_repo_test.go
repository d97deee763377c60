package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"heatwise/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func noRows() *sqlmock.Rows { return sqlmock.NewRows([]string{"seq"}) }

func TestEventAppend_AssignsNextOffset(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectOffsetByEventIDSQL)).
		WithArgs("ev-1").
		WillReturnRows(noRows())
	mock.ExpectQuery(regexp.QuoteMeta(selectNextOffsetSQL)).
		WithArgs(testDevice).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(testDevice, int64(7), "ev-1", sqlmock.AnyArg(), string(models.KindDecisionChanged), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	off, err := repo.Append(ctx(t), testEvent("ev-1"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off != 7 {
		t.Fatalf("offset: got %d, want 7", off)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventAppend_DeduplicatesOnEventID(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectOffsetByEventIDSQL)).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(3))
	mock.ExpectCommit()

	off, err := repo.Append(ctx(t), testEvent("ev-1"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off != 3 {
		t.Fatalf("retried append: got offset %d, want original 3", off)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventAppend_DBError(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectOffsetByEventIDSQL)).
		WillReturnError(errors.New("down"))
	mock.ExpectRollback()

	if _, err := repo.Append(ctx(t), testEvent("ev-1")); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventReadFrom_DecodesPayloadInOrder(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	first, _ := json.Marshal(testEvent("a"))
	second, _ := json.Marshal(testEvent("b"))
	mock.ExpectQuery(regexp.QuoteMeta(selectEventsFromSQL)).
		WithArgs(testDevice, int64(0), 10).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "payload"}).
			AddRow(int64(0), string(first)).
			AddRow(int64(1), string(second)))

	events, err := repo.ReadFrom(ctx(t), testDevice, 0, 10)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Event.EventID != "a" || events[1].Event.EventID != "b" {
		t.Fatalf("order not preserved: %+v", events)
	}
	if events[0].Event.Decision == nil || events[0].Event.Decision.To != models.StateHeating {
		t.Fatalf("payload not decoded: %+v", events[0].Event)
	}
}

func TestEventReadFrom_MalformedPayloadKeepsOffset(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventsFromSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "payload"}).
			AddRow(int64(5), "{not json"))

	events, err := repo.ReadFrom(ctx(t), testDevice, 5, 10)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	// The row is surfaced with its offset and an empty event so the view
	// builder can advance past it.
	if len(events) != 1 || events[0].Offset != 5 || events[0].Event.Kind != "" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestEventHead(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectHeadOffsetSQL)).
		WithArgs(testDevice).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(41)))

	head, err := repo.Head(ctx(t), testDevice)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != 41 {
		t.Fatalf("head: got %d, want 41", head)
	}
}
