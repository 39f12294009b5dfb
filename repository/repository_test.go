package repository_test

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/testinfra"
)

func ptr[T any](v T) *T { return &v }

func TestPinRepositoryDeleteMissing(t *testing.T) {
	db := testinfra.NewTestDB(t)
	repo := repository.NewGormPinRepository(db)

	err := repo.Delete(999)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Delete(999) = %v, want ErrRecordNotFound", err)
	}
}

func TestPinRepositoryUpdateThumbnailPath(t *testing.T) {
	db := testinfra.NewTestDB(t)
	repo := repository.NewGormPinRepository(db)

	pin := &models.MapPin{AnimalType: "cat", StrayStatus: "stray"}
	if err := repo.Create(pin); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateThumbnailPath(pin.ID, "thumbnails/a.jpg"); err != nil {
		t.Fatalf("UpdateThumbnailPath: %v", err)
	}
	if err := repo.UpdateThumbnailPath(999, "thumbnails/b.jpg"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("UpdateThumbnailPath(999) = %v, want ErrRecordNotFound", err)
	}
}

func TestPinRepositoryListFilters(t *testing.T) {
	db := testinfra.NewTestDB(t)
	repo := repository.NewGormPinRepository(db)

	pins := []*models.MapPin{
		{AnimalType: "dog", StrayStatus: "stray", Latitude: 14.6, Longitude: 120.98},
		{AnimalType: models.CameraAnimalType, StrayStatus: models.CameraStrayStatus, Latitude: 14.61, Longitude: 120.99,
			IsCamera: true, CameraID: ptr("cam1")},
	}
	for _, p := range pins {
		if err := repo.Create(p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := repo.List(repository.PinFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d pins, want 2", len(all))
	}

	cams, err := repo.List(repository.PinFilter{CameraOnly: true})
	if err != nil {
		t.Fatalf("List cameras: %v", err)
	}
	if len(cams) != 1 || !cams[0].IsCamera {
		t.Fatalf("camera filter returned %+v", cams)
	}
}

func TestUserMapDeleteDetachesPins(t *testing.T) {
	db := testinfra.NewTestDB(t)
	owner := testinfra.CreateUser(t, db, "owner@example.com")
	maps := repository.NewGormUserMapRepository(db)
	pins := repository.NewGormPinRepository(db)

	m := &models.UserMap{OwnerID: owner.ID, Name: "Barangay 1"}
	if err := maps.Create(m); err != nil {
		t.Fatalf("Create map: %v", err)
	}
	if len(m.AccessCode) != 6 {
		t.Fatalf("access code %q, want 6 characters", m.AccessCode)
	}

	pin := &models.MapPin{AnimalType: "cat", StrayStatus: "stray", Latitude: 1, Longitude: 2, UserMapID: &m.ID}
	if err := pins.Create(pin); err != nil {
		t.Fatalf("Create pin: %v", err)
	}

	if err := maps.Delete(m.ID); err != nil {
		t.Fatalf("Delete map: %v", err)
	}

	got, err := pins.GetByID(pin.ID)
	if err != nil {
		t.Fatalf("pin should survive map deletion: %v", err)
	}
	if got.UserMapID != nil {
		t.Errorf("UserMapID = %v, want nil", *got.UserMapID)
	}
	if ok, _ := maps.Exists(m.ID); ok {
		t.Error("map still exists after delete")
	}
}

func TestUserMapAccessUpsert(t *testing.T) {
	db := testinfra.NewTestDB(t)
	owner := testinfra.CreateUser(t, db, "owner@example.com")
	guest := testinfra.CreateUser(t, db, "guest@example.com")
	maps := repository.NewGormUserMapRepository(db)

	m := &models.UserMap{OwnerID: owner.ID, Name: "Shared"}
	if err := maps.Create(m); err != nil {
		t.Fatalf("Create map: %v", err)
	}
	if err := maps.SetAccess(m.ID, guest.ID, models.MapRoleViewer); err != nil {
		t.Fatalf("SetAccess viewer: %v", err)
	}
	if err := maps.SetAccess(m.ID, guest.ID, models.MapRoleEditor); err != nil {
		t.Fatalf("SetAccess editor: %v", err)
	}

	list, err := maps.ListAccessible(guest.ID)
	if err != nil {
		t.Fatalf("ListAccessible: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListAccessible returned %d maps, want 1", len(list))
	}
	if role := list[0].UserRole(guest); role != models.MapRoleEditor {
		t.Errorf("UserRole = %q, want %q", role, models.MapRoleEditor)
	}
}

func TestReferralCodeSyncUsage(t *testing.T) {
	db := testinfra.NewTestDB(t)
	repo := repository.NewGormReferralCodeRepository(db)

	limited := &models.ReferralCode{Description: "limited", IsActive: true, MaxUses: 2}
	open := &models.ReferralCode{Description: "open", IsActive: true}
	for _, rc := range []*models.ReferralCode{limited, open} {
		if err := repo.Create(rc); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	err := repo.SyncUsage(map[string]int{limited.Code: 2, open.Code: 5})
	if err != nil {
		t.Fatalf("SyncUsage: %v", err)
	}

	tests := []struct {
		code       string
		wantUsage  int
		wantActive bool
	}{
		{limited.Code, 2, false},
		{open.Code, 5, true},
	}
	for _, tt := range tests {
		got, err := repo.GetByCode(tt.code)
		if err != nil {
			t.Fatalf("GetByCode(%s): %v", tt.code, err)
		}
		if got.UsageCount != tt.wantUsage || got.IsActive != tt.wantActive {
			t.Errorf("%s: usage=%d active=%v, want usage=%d active=%v",
				tt.code, got.UsageCount, got.IsActive, tt.wantUsage, tt.wantActive)
		}
	}
}

func TestPostToggleLikeAndPage(t *testing.T) {
	db := testinfra.NewTestDB(t)
	author := testinfra.CreateUser(t, db, "author@example.com")
	reader := testinfra.CreateUser(t, db, "reader@example.com")
	repo := repository.NewGormPostRepository(db)

	post := &models.Post{UserID: author.ID, Title: "Lost dog"}
	if err := repo.Create(post); err != nil {
		t.Fatalf("Create: %v", err)
	}

	liked, err := repo.ToggleLike(post.ID, reader.ID)
	if err != nil || !liked {
		t.Fatalf("first ToggleLike = %v, %v; want true, nil", liked, err)
	}

	posts, total, err := repo.ListPage(reader.ID, 1, 5)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 1 || len(posts) != 1 {
		t.Fatalf("ListPage total=%d len=%d, want 1/1", total, len(posts))
	}
	if posts[0].LikesCount != 1 || !posts[0].Liked {
		t.Errorf("likes=%d liked=%v, want 1/true", posts[0].LikesCount, posts[0].Liked)
	}

	liked, err = repo.ToggleLike(post.ID, reader.ID)
	if err != nil || liked {
		t.Fatalf("second ToggleLike = %v, %v; want false, nil", liked, err)
	}

	if err := repo.Delete(post.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(post.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrRecordNotFound", err)
	}
}

func TestPushTokenExists(t *testing.T) {
	db := testinfra.NewTestDB(t)
	repo := repository.NewGormPushTokenRepository(db)

	if err := repo.Create(&models.PushToken{Token: "ExponentPushToken[abc]"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := repo.Exists("ExponentPushToken[abc]")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}
	tokens, err := repo.ListTokens()
	if err != nil || len(tokens) != 1 {
		t.Fatalf("ListTokens = %v, %v", tokens, err)
	}
}
