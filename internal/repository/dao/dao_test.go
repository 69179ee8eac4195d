package dao

import (
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB is shared by the whole package; each test truncates the tables it
// touches. Run with -short to skip the Docker-backed suite.
var testDB *gorm.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("dockertest.NewPool -> %v", err)
	}
	if err = pool.Client.Ping(); err != nil {
		log.Fatalf("pool.Client.Ping -> %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=volunteer_hub_test",
			"listen_addresses='*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("pool.RunWithOptions -> %v", err)
	}
	_ = resource.Expire(180)

	dsn := fmt.Sprintf("host=localhost port=%v user=test password=test dbname=volunteer_hub_test sslmode=disable",
		resource.GetPort("5432/tcp"))

	pool.MaxWait = 90 * time.Second
	if err = pool.Retry(func() error {
		testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return err
		}

		sqlDB, err := testDB.DB()
		if err != nil {
			return err
		}

		return sqlDB.Ping()
	}); err != nil {
		log.Fatalf("pool.Retry -> %v", err)
	}

	if err = InitTables(testDB); err != nil {
		log.Fatalf("InitTables -> %v", err)
	}

	code := m.Run()

	if err = pool.Purge(resource); err != nil {
		log.Fatalf("pool.Purge -> %v", err)
	}

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database tests in short mode")
	}
}

func resetTables(t *testing.T) {
	t.Helper()

	err := testDB.Exec("TRUNCATE registrations, events, users RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)
}

func seedEvent(t *testing.T, status string, maxParticipants, currentParticipants int) Event {
	t.Helper()

	start := time.Now().Add(7 * 24 * time.Hour)
	event := Event{
		Title:               "Park Restoration",
		Description:         "Plant trees and repair benches.",
		Location:            "Riverside Park",
		StartTime:           start,
		EndTime:             start.Add(5 * time.Hour),
		MaxParticipants:     maxParticipants,
		Status:              status,
		CurrentParticipants: currentParticipants,
		OrganizerID:         1,
	}
	require.NoError(t, testDB.Create(&event).Error)

	return event
}

func seedRegistration(t *testing.T, eventID, volunteerID uint, status string) Registration {
	t.Helper()

	registration := Registration{
		EventID:        eventID,
		VolunteerID:    volunteerID,
		VolunteerName:  fmt.Sprintf("Volunteer %v", volunteerID),
		VolunteerEmail: fmt.Sprintf("vol%v@example.com", volunteerID),
		Status:         status,
		RegisteredAt:   time.Now(),
	}
	require.NoError(t, testDB.Create(&registration).Error)

	return registration
}
