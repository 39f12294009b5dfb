package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/straysafe/straysafebackend/database"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/testinfra"
)

func strPtr(s string) *string { return &s }

func TestReports_Sightings(t *testing.T) {
	db := testinfra.NewTestDB(t)
	base := time.Now().Add(-time.Hour)

	pins := []models.MapPin{
		{AnimalType: "dog", StrayStatus: "stray", Latitude: 14.1, Longitude: 120.1, CreatedAt: base},
		{AnimalType: "cat", StrayStatus: "stray", Latitude: 14.2, Longitude: 120.2, CreatedAt: base.Add(time.Minute), SnapshotPath: strPtr("snapshots/a.jpg")},
		{AnimalType: "Dog", StrayStatus: "owned", Latitude: 14.3, Longitude: 120.3, CreatedAt: base.Add(2 * time.Minute), SnapshotPath: strPtr("snapshots/b.jpg")},
		{AnimalType: models.CameraAnimalType, StrayStatus: models.CameraStrayStatus, IsCamera: true, Latitude: 14.4, Longitude: 120.4, CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range pins {
		if err := db.Create(&pins[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	reports, err := database.NewReports(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	all, err := reports.Sightings(ctx, database.SightingQuery{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d sightings, want 3 (camera excluded)", len(all))
	}
	if all[0].ID != pins[2].ID {
		t.Errorf("newest first: got id %d, want %d", all[0].ID, pins[2].ID)
	}

	withSnap, err := reports.Sightings(ctx, database.SightingQuery{WithSnapshot: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(withSnap) != 2 || withSnap[0].SnapshotPath == nil {
		t.Fatalf("snapshot filter returned %+v", withSnap)
	}

	dogs, err := reports.Sightings(ctx, database.SightingQuery{NameLike: "DOG"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dogs) != 2 {
		t.Errorf("name filter returned %d rows, want 2", len(dogs))
	}

	wild, err := reports.Sightings(ctx, database.SightingQuery{NameLike: "%"})
	if err != nil {
		t.Fatal(err)
	}
	if len(wild) != 3 {
		t.Errorf("wildcard input should be dropped, got %d rows", len(wild))
	}

	limited, err := reports.Sightings(ctx, database.SightingQuery{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit returned %d rows", len(limited))
	}
}
