package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestStore liefert einen Store auf einer frischen In-Memory-SQLite-Datenbank
// mit vollständigem Schema.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Eine Verbindung, damit alle Abfragen dieselbe In-Memory-DB sehen
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	st := store.New(db)
	require.NoError(t, st.Migrate(), "Failed to create schema")
	return st
}

func CreateTestRequest(t *testing.T, st *store.Store, status data.RequestStatus) *data.Request {
	t.Helper()

	r := &data.Request{
		ClientName:  "Erika Mustermann",
		Phone:       "+49 30 1234567",
		Email:       "erika@example.de",
		City:        "Berlin",
		ServiceType: "Sanitär",
		Description: "Wasserhahn tropft",
		Source:      "website",
		Status:      status,
	}
	require.NoError(t, st.CreateRequest(context.Background(), r), "Failed to create test request")
	return r
}

func CreateTestMaster(t *testing.T, st *store.Store, name string, status data.MasterStatus) *data.Master {
	t.Helper()

	m := &data.Master{
		Name:            name,
		Phone:           "+49 170 0000000",
		City:            "Berlin",
		Specialties:     "Sanitär, Heizung",
		ExperienceYears: 10,
		Status:          status,
	}
	require.NoError(t, st.CreateMaster(context.Background(), m), "Failed to create test master")
	return m
}

func CreateTestCandidate(t *testing.T, st *store.Store, requestID, masterID string, status data.CandidateStatus) *data.Candidate {
	t.Helper()

	c := &data.Candidate{
		RequestID: requestID,
		MasterID:  masterID,
		Status:    status,
	}
	require.NoError(t, st.CreateCandidate(context.Background(), c), "Failed to create test candidate")
	// Reihenfolge nach created_at stabil halten
	time.Sleep(2 * time.Millisecond)
	return c
}

// MockNotifier zeichnet veröffentlichte Events auf.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(event data.Event) int {
	args := m.Called(event)
	return args.Int(0)
}

// NewMockNotifier akzeptiert jedes Event.
func NewMockNotifier() *MockNotifier {
	n := new(MockNotifier)
	n.On("Publish", mock.Anything).Return(1)
	return n
}

// Events liefert alle veröffentlichten Events eines Typs.
func (m *MockNotifier) Events(eventType data.EventType) []data.Event {
	var events []data.Event
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		if ev, ok := call.Arguments.Get(0).(data.Event); ok && ev.Type == eventType {
			events = append(events, ev)
		}
	}
	return events
}
