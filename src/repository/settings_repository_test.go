package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"spotpilot/src/model"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSettingsRepositoryGet(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &SettingsRepository{db: mockDB}

	t.Run("returns stored value", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow(model.SettingBotEnabled, "true", time.Now())

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "settings" WHERE key = $1 ORDER BY "settings"."key" LIMIT $2`)).
			WithArgs(model.SettingBotEnabled, 1).
			WillReturnRows(rows)

		value, err := repo.Get(context.Background(), model.SettingBotEnabled)
		if err != nil {
			t.Fatalf("unexpected error reading setting: %v", err)
		}

		if value != "true" {
			t.Fatalf("expected value %q, got %q", "true", value)
		}
	})

	t.Run("missing key is empty not error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "settings" WHERE key = $1 ORDER BY "settings"."key" LIMIT $2`)).
			WithArgs("no.such.key", 1).
			WillReturnRows(sqlmock.NewRows([]string{"key"}))

		value, err := repo.Get(context.Background(), "no.such.key")
		if err != nil {
			t.Fatalf("missing setting should not be an error, got %v", err)
		}

		if value != "" {
			t.Fatalf("expected empty value for missing key, got %q", value)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestSettingsRepositorySetUpserts(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &SettingsRepository{db: mockDB}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "settings" ("key","value","updated_at") VALUES ($1,$2,$3) ON CONFLICT ("key") DO UPDATE SET "value"="excluded"."value","updated_at"="excluded"."updated_at"`)).
		WithArgs(model.SettingBotHeartbeat, "2025-03-01T12:00:00Z", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Set(context.Background(), model.SettingBotHeartbeat, "2025-03-01T12:00:00Z"); err != nil {
		t.Fatalf("unexpected error writing setting: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
