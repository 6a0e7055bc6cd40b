package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"video-chat-go/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// 内存数据库按连接隔离，只使用一个连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.Tenant{}, &model.Video{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createTenant(t *testing.T, repo TenantRepository, name, key string) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{Name: name, APIKey: key}
	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

func TestTenantFindByAPIKey(t *testing.T) {
	repo := NewTenantRepository(newTestDB(t))
	created := createTenant(t, repo, "acme", "vc_k1")

	got, err := repo.FindByAPIKey(context.Background(), "vc_k1")
	if err != nil {
		t.Fatalf("FindByAPIKey: %v", err)
	}
	if got.ID != created.ID || got.Name != "acme" {
		t.Fatalf("unexpected tenant %+v", got)
	}

	if _, err := repo.FindByAPIKey(context.Background(), "vc_unknown"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestTenantDuplicateAPIKeyIsConflict(t *testing.T) {
	repo := NewTenantRepository(newTestDB(t))
	createTenant(t, repo, "acme", "vc_same")

	err := repo.Create(context.Background(), &model.Tenant{Name: "other", APIKey: "vc_same"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTenantFindAllOrdered(t *testing.T) {
	repo := NewTenantRepository(newTestDB(t))
	createTenant(t, repo, "a", "vc_a")
	createTenant(t, repo, "b", "vc_b")

	got, err := repo.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("unexpected tenants %+v", got)
	}
}

func TestVideoUpsertCreatesThenUpdates(t *testing.T) {
	db := newTestDB(t)
	tenant := createTenant(t, NewTenantRepository(db), "acme", "K1")
	repo := NewVideoRepository(db)
	ctx := context.Background()

	stored, created, err := repo.Upsert(ctx, &model.Video{
		TenantID:       tenant.ID,
		ID:             "42",
		Title:          "first",
		TranscriptText: "hello",
		Metadata:       datatypes.JSON(`{}`),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created || stored.Title != "first" {
		t.Fatalf("first upsert: created=%v stored=%+v", created, stored)
	}

	stored, created, err = repo.Upsert(ctx, &model.Video{
		TenantID:       tenant.ID,
		ID:             "42",
		Title:          "second",
		TranscriptText: "hello again",
		Metadata:       datatypes.JSON(`{"lang":"en"}`),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatalf("second upsert must report an update")
	}
	if stored.Title != "second" || stored.TranscriptText != "hello again" {
		t.Fatalf("second upsert stored %+v", stored)
	}

	got, err := repo.FindByTenantAndID(ctx, tenant.ID, "42")
	if err != nil {
		t.Fatalf("FindByTenantAndID: %v", err)
	}
	if got.Title != "second" {
		t.Fatalf("stored title = %q, want %q", got.Title, "second")
	}
}

func TestVideosAreScopedToTenant(t *testing.T) {
	db := newTestDB(t)
	tenants := NewTenantRepository(db)
	t1 := createTenant(t, tenants, "one", "K1")
	t2 := createTenant(t, tenants, "two", "K2")
	repo := NewVideoRepository(db)
	ctx := context.Background()

	for _, v := range []*model.Video{
		{TenantID: t1.ID, ID: "42", Title: "one's video", Metadata: datatypes.JSON(`{}`)},
		{TenantID: t2.ID, ID: "42", Title: "two's video", Metadata: datatypes.JSON(`{}`)},
	} {
		if _, created, err := repo.Upsert(ctx, v); err != nil || !created {
			t.Fatalf("upsert %+v: created=%v err=%v", v, created, err)
		}
	}

	got, err := repo.FindByTenantAndID(ctx, t2.ID, "42")
	if err != nil {
		t.Fatalf("FindByTenantAndID: %v", err)
	}
	if got.Title != "two's video" {
		t.Fatalf("tenant 2 got %q", got.Title)
	}

	if _, err := repo.FindByTenantAndID(ctx, t1.ID, "43"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestVideoUpsertRequiresIdentity(t *testing.T) {
	repo := NewVideoRepository(newTestDB(t))
	if _, _, err := repo.Upsert(context.Background(), &model.Video{ID: "42"}); err == nil {
		t.Fatalf("expected error for missing tenant id")
	}
}
