package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"auftrag.chapter42.de/dispatch/internal/cache"
	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/dispatch"
	"auftrag.chapter42.de/dispatch/internal/store"
	"auftrag.chapter42.de/dispatch/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*dispatch.Service, *store.Store, *testutil.MockNotifier) {
	t.Helper()
	st := testutil.NewTestStore(t)
	n := testutil.NewMockNotifier()
	return dispatch.NewService(st, n, nil), st, n
}

func TestCreateRequest(t *testing.T) {
	svc, st, n := newService(t)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, data.LeadInput{
		Name:        "  Max Muster ",
		Phone:       "0151 2345678",
		City:        "Hamburg",
		ServiceType: "Elektrik",
	})
	require.NoError(t, err)
	assert.Equal(t, "Max Muster", r.ClientName)
	assert.Equal(t, "website", r.Source)
	assert.Equal(t, data.StatusWaitingCandidates, r.Status)

	got, err := st.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", got.City)

	events := n.Events(data.EventRequestCreated)
	require.Len(t, events, 1)
	assert.Equal(t, r.ID, events[0].RequestID)
	assert.Equal(t, "Elektrik", events[0].Payload["service_type"])

	_, err = svc.CreateRequest(ctx, data.LeadInput{Name: "Ohne Telefon", Phone: "  "})
	assert.True(t, errors.Is(err, dispatch.ErrValidation))
}

func TestApplyMaster(t *testing.T) {
	svc, _, n := newService(t)
	ctx := context.Background()

	m, err := svc.ApplyMaster(ctx, data.MasterApplication{Name: "Hans Klempner", Phone: "0170 1111111", ExperienceYears: 12})
	require.NoError(t, err)
	assert.Equal(t, data.MasterPending, m.Status)
	assert.Len(t, n.Events(data.EventMasterApplied), 1)

	_, err = svc.ApplyMaster(ctx, data.MasterApplication{Name: "X", Phone: "1", ExperienceYears: -1})
	assert.True(t, errors.Is(err, dispatch.ErrValidation))
}

func TestListAndGetRequest(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusCandidatesCollecting)
	testutil.CreateTestRequest(t, st, data.StatusCompleted)
	m := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	testutil.CreateTestCandidate(t, st, r.ID, m.ID, data.CandidatePending)

	page, err := svc.ListRequests(ctx, data.RequestFilter{Status: data.StatusCandidatesCollecting})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, data.DefaultPageSize, page.PageSize)

	_, err = svc.ListRequests(ctx, data.RequestFilter{Status: "offen"})
	assert.True(t, errors.Is(err, dispatch.ErrValidation))

	detail, err := svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, detail.Request.ID)
	require.Len(t, detail.Candidates, 1)
	require.NotNil(t, detail.Candidates[0].Master)
	assert.Equal(t, "Anna", detail.Candidates[0].Master.Name)
	assert.Nil(t, detail.Assignment)

	_, err = svc.GetRequest(ctx, "fehlt")
	assert.True(t, errors.Is(err, dispatch.ErrNotFound))
}

func TestAddCandidate(t *testing.T) {
	svc, st, n := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusWaitingCandidates)
	active := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	blocked := testutil.CreateTestMaster(t, st, "Bernd", data.MasterBlocked)

	price := 120.0
	c, err := svc.AddCandidate(ctx, r.ID, data.CandidateInput{MasterID: active.ID, Note: "kann morgen", ProposedPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, data.CandidatePending, c.Status)

	got, err := st.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, data.StatusCandidatesCollecting, got.Status)
	assert.Len(t, n.Events(data.EventCandidateAdded), 1)
	assert.Len(t, n.Events(data.EventRequestStatusChanged), 1)

	_, err = svc.AddCandidate(ctx, r.ID, data.CandidateInput{MasterID: active.ID})
	assert.True(t, errors.Is(err, dispatch.ErrConflict), "doppelter Kandidat")

	_, err = svc.AddCandidate(ctx, r.ID, data.CandidateInput{MasterID: blocked.ID})
	assert.True(t, errors.Is(err, dispatch.ErrConflict), "gesperrter Meister")

	_, err = svc.AddCandidate(ctx, r.ID, data.CandidateInput{MasterID: "fehlt"})
	assert.True(t, errors.Is(err, dispatch.ErrNotFound))

	_, err = svc.AddCandidate(ctx, "fehlt", data.CandidateInput{MasterID: active.ID})
	assert.True(t, errors.Is(err, dispatch.ErrNotFound))

	done := testutil.CreateTestRequest(t, st, data.StatusCompleted)
	_, err = svc.AddCandidate(ctx, done.ID, data.CandidateInput{MasterID: active.ID})
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition))
}

func TestAssignMaster(t *testing.T) {
	svc, st, n := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusCandidatesCollecting)
	m1 := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	m2 := testutil.CreateTestMaster(t, st, "Bernd", data.MasterActive)
	m3 := testutil.CreateTestMaster(t, st, "Clara", data.MasterActive)
	c1 := testutil.CreateTestCandidate(t, st, r.ID, m1.ID, data.CandidatePending)
	c2 := testutil.CreateTestCandidate(t, st, r.ID, m2.ID, data.CandidatePending)
	c3 := testutil.CreateTestCandidate(t, st, r.ID, m3.ID, data.CandidateRejected)

	a, err := svc.AssignMaster(ctx, r.ID, m1.ID, "admin@auftrag.de")
	require.NoError(t, err)
	assert.True(t, a.Active)
	assert.Equal(t, c1.ID, a.CandidateID)
	assert.Equal(t, "admin@auftrag.de", a.AssignedBy)

	got, err := st.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, data.StatusMasterAssigned, got.Status)
	require.NotNil(t, got.MasterID)
	assert.Equal(t, m1.ID, *got.MasterID)

	for id, want := range map[string]data.CandidateStatus{
		c1.ID: data.CandidateSelected,
		c2.ID: data.CandidateRejected,
		c3.ID: data.CandidateRejected,
	} {
		c, err := st.GetCandidate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, c.Status, c.Master.Name)
	}

	events := n.Events(data.EventMasterAssigned)
	require.Len(t, events, 1)
	assert.Equal(t, []string{m2.ID}, events[0].Payload["rejected_master_ids"])

	_, err = svc.AssignMaster(ctx, r.ID, m1.ID, "admin")
	assert.True(t, errors.Is(err, dispatch.ErrConflict), "gleicher Meister erneut")

	_, err = svc.AssignMaster(ctx, r.ID, m2.ID, "admin")
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition), "bereits zugewiesen")
}

func TestAssignMasterGuards(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	waiting := testutil.CreateTestRequest(t, st, data.StatusWaitingCandidates)
	r := testutil.CreateTestRequest(t, st, data.StatusMasterSelection)
	m := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	other := testutil.CreateTestMaster(t, st, "Bernd", data.MasterActive)
	testutil.CreateTestCandidate(t, st, r.ID, m.ID, data.CandidateRejected)

	_, err := svc.AssignMaster(ctx, waiting.ID, m.ID, "admin")
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition))

	_, err = svc.AssignMaster(ctx, r.ID, other.ID, "admin")
	assert.True(t, errors.Is(err, dispatch.ErrValidation), "kein Kandidat")

	_, err = svc.AssignMaster(ctx, r.ID, m.ID, "admin")
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition), "abgelehnter Kandidat")

	_, err = svc.AssignMaster(ctx, "fehlt", m.ID, "admin")
	assert.True(t, errors.Is(err, dispatch.ErrNotFound))

	_, err = svc.AssignMaster(ctx, r.ID, " ", "admin")
	assert.True(t, errors.Is(err, dispatch.ErrValidation))

	_, err = st.GetActiveAssignment(ctx, r.ID)
	assert.Error(t, err, "keine Zuweisung nach Fehlschlag")
}

func TestUnassignAndReassign(t *testing.T) {
	svc, st, n := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusCandidatesCollecting)
	m1 := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	m2 := testutil.CreateTestMaster(t, st, "Bernd", data.MasterActive)
	c1 := testutil.CreateTestCandidate(t, st, r.ID, m1.ID, data.CandidatePending)
	c2 := testutil.CreateTestCandidate(t, st, r.ID, m2.ID, data.CandidatePending)

	_, err := svc.AssignMaster(ctx, r.ID, m1.ID, "admin")
	require.NoError(t, err)

	when := time.Now().Add(48 * time.Hour)
	_, err = svc.UpdateRequestStatus(ctx, r.ID, data.StatusScheduled, &when)
	require.NoError(t, err)

	got, err := svc.UnassignMaster(ctx, r.ID, "Meister krank")
	require.NoError(t, err)
	assert.Equal(t, data.StatusMasterSelection, got.Status)
	assert.Nil(t, got.MasterID)
	assert.Nil(t, got.ScheduledAt)

	c, err := st.GetCandidate(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, data.CandidateRejected, c.Status)
	c, err = st.GetCandidate(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, data.CandidatePending, c.Status)

	_, err = st.GetActiveAssignment(ctx, r.ID)
	assert.Error(t, err)

	events := n.Events(data.EventMasterUnassigned)
	require.Len(t, events, 1)
	assert.Equal(t, "Meister krank", events[0].Payload["reason"])

	_, err = svc.UnassignMaster(ctx, r.ID, "")
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition))

	// Neue Zuweisung überschreibt die vorhandene Zeile
	a, err := svc.AssignMaster(ctx, r.ID, m2.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, m2.ID, a.MasterID)
	assert.True(t, a.Active)

	detail, err := svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Assignment)
	assert.Equal(t, c2.ID, detail.Assignment.CandidateID)
}

func TestSetCandidateStatus(t *testing.T) {
	svc, st, n := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusCandidatesCollecting)
	m := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	c := testutil.CreateTestCandidate(t, st, r.ID, m.ID, data.CandidatePending)

	got, err := svc.SetCandidateStatus(ctx, c.ID, data.CandidateRejected, "zu teuer")
	require.NoError(t, err)
	assert.Equal(t, data.CandidateRejected, got.Status)

	got, err = svc.SetCandidateStatus(ctx, c.ID, data.CandidateRejected, "")
	require.NoError(t, err)
	assert.Equal(t, data.CandidateRejected, got.Status)
	assert.Len(t, n.Events(data.EventCandidateStatusChanged), 1, "unveränderter Status ohne Event")

	got, err = svc.SetCandidateStatus(ctx, c.ID, data.CandidatePending, "doch noch")
	require.NoError(t, err)
	assert.Equal(t, data.CandidatePending, got.Status)

	_, err = svc.SetCandidateStatus(ctx, c.ID, data.CandidateSelected, "")
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition))

	_, err = svc.SetCandidateStatus(ctx, c.ID, "vielleicht", "")
	assert.True(t, errors.Is(err, dispatch.ErrValidation))

	_, err = svc.SetCandidateStatus(ctx, "fehlt", data.CandidateRejected, "")
	assert.True(t, errors.Is(err, dispatch.ErrNotFound))

	_, err = svc.AssignMaster(ctx, r.ID, m.ID, "admin")
	require.NoError(t, err)
	_, err = svc.SetCandidateStatus(ctx, c.ID, data.CandidateRejected, "")
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition), "ausgewählter Kandidat")
}

func TestUpdateRequestStatus(t *testing.T) {
	svc, st, n := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusCandidatesCollecting)
	m := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	testutil.CreateTestCandidate(t, st, r.ID, m.ID, data.CandidatePending)

	_, err := svc.UpdateRequestStatus(ctx, r.ID, data.StatusMasterAssigned, nil)
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition))

	_, err = svc.UpdateRequestStatus(ctx, r.ID, data.StatusCompleted, nil)
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition))

	_, err = svc.UpdateRequestStatus(ctx, r.ID, "erledigt", nil)
	assert.True(t, errors.Is(err, dispatch.ErrValidation))

	_, err = svc.AssignMaster(ctx, r.ID, m.ID, "admin")
	require.NoError(t, err)

	_, err = svc.UpdateRequestStatus(ctx, r.ID, data.StatusScheduled, nil)
	assert.True(t, errors.Is(err, dispatch.ErrValidation), "Termin fehlt")

	_, err = svc.UpdateRequestStatus(ctx, r.ID, data.StatusMasterSelection, nil)
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition), "nur über unassign")

	got, err := svc.UpdateRequestStatus(ctx, r.ID, data.StatusInProgress, nil)
	require.NoError(t, err)
	assert.Equal(t, data.StatusInProgress, got.Status)

	got, err = svc.UpdateRequestStatus(ctx, r.ID, data.StatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, data.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Len(t, n.Events(data.EventRequestStatusChanged), 2)

	_, err = svc.UpdateRequestStatus(ctx, r.ID, data.StatusCancelled, nil)
	assert.True(t, errors.Is(err, dispatch.ErrInvalidTransition), "abgeschlossen ist endgültig")

	_, err = svc.UpdateRequestStatus(ctx, "fehlt", data.StatusCancelled, nil)
	assert.True(t, errors.Is(err, dispatch.ErrNotFound))
}

func TestCancelDeactivatesAssignment(t *testing.T) {
	svc, st, n := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusCandidatesCollecting)
	m := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	c := testutil.CreateTestCandidate(t, st, r.ID, m.ID, data.CandidatePending)

	_, err := svc.AssignMaster(ctx, r.ID, m.ID, "admin")
	require.NoError(t, err)

	got, err := svc.UpdateRequestStatus(ctx, r.ID, data.StatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, data.StatusCancelled, got.Status)
	assert.Nil(t, got.MasterID, "storniert ohne Meister")

	_, err = st.GetActiveAssignment(ctx, r.ID)
	assert.Error(t, err)

	cand, err := st.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, data.CandidateRejected, cand.Status)

	events := n.Events(data.EventRequestStatusChanged)
	require.Len(t, events, 1)
	assert.Equal(t, m.ID, events[0].Payload["released_master_id"])
}

func TestAssignBlockedMaster(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	r := testutil.CreateTestRequest(t, st, data.StatusCandidatesCollecting)
	m := testutil.CreateTestMaster(t, st, "Anna", data.MasterActive)
	c := testutil.CreateTestCandidate(t, st, r.ID, m.ID, data.CandidatePending)

	// nach der Aufnahme als Kandidat gesperrt
	_, err := svc.SetMasterStatus(ctx, m.ID, data.MasterBlocked)
	require.NoError(t, err)

	_, err = svc.AssignMaster(ctx, r.ID, m.ID, "admin")
	assert.True(t, errors.Is(err, dispatch.ErrConflict))

	got, err := st.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, data.StatusCandidatesCollecting, got.Status)
	cand, err := st.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, data.CandidatePending, cand.Status)
}

func TestMasters(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	m := testutil.CreateTestMaster(t, st, "Anna", data.MasterPending)
	testutil.CreateTestMaster(t, st, "Bernd", data.MasterActive)

	got, err := svc.SetMasterStatus(ctx, m.ID, data.MasterActive)
	require.NoError(t, err)
	assert.Equal(t, data.MasterActive, got.Status)

	active, err := svc.ListMasters(ctx, data.MasterActive)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = svc.ListMasters(ctx, "gelöscht")
	assert.True(t, errors.Is(err, dispatch.ErrValidation))

	_, err = svc.SetMasterStatus(ctx, "fehlt", data.MasterBlocked)
	assert.True(t, errors.Is(err, dispatch.ErrNotFound))
}

func TestDashboardUsesCache(t *testing.T) {
	st := testutil.NewTestStore(t)
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	svc := dispatch.NewService(st, testutil.NewMockNotifier(), c)
	ctx := context.Background()

	testutil.CreateTestRequest(t, st, data.StatusWaitingCandidates)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRequests)

	// Direkt angelegt, der Cache liefert noch den alten Stand
	testutil.CreateTestRequest(t, st, data.StatusWaitingCandidates)
	stats, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRequests)

	// Über den Service angelegt, der Cache wird verworfen
	_, err = svc.CreateRequest(ctx, data.LeadInput{Name: "Neu", Phone: "123"})
	require.NoError(t, err)
	stats, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.OpenRequests)
}

// interleavingCache lässt nach dem Lesen der Generation eine Änderung dazwischenkommen.
type interleavingCache struct {
	*cache.StatsCache
}

func (c interleavingCache) Generation(ctx context.Context) int64 {
	gen := c.StatsCache.Generation(ctx)
	c.StatsCache.Invalidate(ctx)
	return gen
}

func TestDashboardDoesNotCacheStaleStats(t *testing.T) {
	st := testutil.NewTestStore(t)
	mr := miniredis.RunT(t)
	inner := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	svc := dispatch.NewService(st, testutil.NewMockNotifier(), interleavingCache{inner})
	ctx := context.Background()

	testutil.CreateTestRequest(t, st, data.StatusWaitingCandidates)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRequests)

	_, ok := inner.Get(ctx)
	assert.False(t, ok, "überholte Kennzahlen dürfen nicht im Cache landen")
}
