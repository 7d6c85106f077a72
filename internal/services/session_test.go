package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		IdleTimeout:      10 * time.Minute,
		TokenExpiry:      time.Hour,
		RefreshThreshold: 5 * time.Minute,
		PageSize:         5,
		GCAfter:          24 * time.Hour,
	}
}

func TestGetOrCreateNewSession(t *testing.T) {
	svc := NewSessionService(storage.NewMemoryStore(), testSessionConfig())

	session, data, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateNew, session.State)
	assert.Empty(t, session.Token)
	assert.Empty(t, data.Flow)

	// Second load returns the same record, not a fresh one
	session.State = models.SessionStateLoggingIn
	require.NoError(t, svc.Save(session, data))
	again, _, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateLoggingIn, again.State)
}

func TestSessionDataRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewSessionService(store, testSessionConfig())

	session, data, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)

	data.Flow = FlowRegistration
	data.Step = "collect_email"
	data.SetDraft("name", "Jane Doe")
	data.WaitingForOTP = true
	data.SetCursor(CursorProducts, NewPageCursor([]PageItem{{ID: "MED1", Label: "Paracetamol"}}, 5))
	require.NoError(t, svc.Save(session, data))

	_, loaded, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	assert.Equal(t, FlowRegistration, loaded.Flow)
	assert.Equal(t, "collect_email", loaded.Step)
	assert.Equal(t, "Jane Doe", loaded.Draft["name"])
	assert.True(t, loaded.WaitingForOTP)

	namespace, cursor := loaded.ActiveCursor()
	require.NotNil(t, cursor)
	assert.Equal(t, CursorProducts, namespace)
	assert.Equal(t, 1, cursor.CurrentPage)
	require.Len(t, cursor.Items, 1)
	assert.Equal(t, "MED1", cursor.Items[0].ID)
}

func TestCorruptSessionDataResets(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewSessionService(store, testSessionConfig())

	session, _, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	session.Data = "{not json"
	require.NoError(t, store.SaveSession(session))

	_, data, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	assert.Empty(t, data.Flow)
	assert.Nil(t, data.Cursors)
}

func TestIsAuthenticated(t *testing.T) {
	svc := NewSessionService(storage.NewMemoryStore(), testSessionConfig())

	session, _, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	assert.False(t, svc.IsAuthenticated(session))

	svc.Login(session, "USR1")
	svc.Touch(session)
	assert.True(t, svc.IsAuthenticated(session))
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, models.SessionStateLoggedIn, session.State)

	// A token alone is not enough once idle time passes the timeout
	session.LastActivity = time.Now().Add(-11 * time.Minute)
	assert.False(t, svc.IsAuthenticated(session))
}

func TestExpireIfIdleRunsBeforeTouch(t *testing.T) {
	svc := NewSessionService(storage.NewMemoryStore(), testSessionConfig())

	session, data, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	svc.Login(session, "USR1")
	data.Flow = FlowCheckout
	data.Step = "confirm"
	session.LastActivity = time.Now().Add(-11 * time.Minute)

	assert.True(t, svc.ExpireIfIdle(session, data))
	assert.Equal(t, models.SessionStateNew, session.State)
	assert.Empty(t, session.Token)
	assert.Empty(t, session.UserID)
	assert.Empty(t, data.Flow)
	assert.False(t, svc.IsAuthenticated(session))

	// Touching after the check must not resurrect the expired login
	svc.Touch(session)
	assert.False(t, svc.IsAuthenticated(session))
}

func TestExpireIfIdleLeavesActiveSessionsAlone(t *testing.T) {
	svc := NewSessionService(storage.NewMemoryStore(), testSessionConfig())

	session, data, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	svc.Login(session, "USR1")
	session.LastActivity = time.Now().Add(-9 * time.Minute)

	assert.False(t, svc.ExpireIfIdle(session, data))
	assert.True(t, svc.IsAuthenticated(session))

	// NEW sessions never expire, they only get garbage collected
	session.State = models.SessionStateNew
	session.LastActivity = time.Now().Add(-48 * time.Hour)
	assert.False(t, svc.ExpireIfIdle(session, data))
}

func TestTokenRefreshWindow(t *testing.T) {
	svc := NewSessionService(storage.NewMemoryStore(), testSessionConfig())

	session, _, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	assert.False(t, svc.NeedsRefresh(session))

	svc.Login(session, "USR1")
	assert.False(t, svc.NeedsRefresh(session))

	// Inside the refresh threshold of expiry
	issued := time.Now().Add(-56 * time.Minute)
	session.TokenCreatedAt = &issued
	assert.True(t, svc.NeedsRefresh(session))

	old := session.Token
	svc.RefreshToken(session)
	assert.NotEqual(t, old, session.Token)
	assert.False(t, svc.NeedsRefresh(session))
}

func TestLogoutClearsEverything(t *testing.T) {
	svc := NewSessionService(storage.NewMemoryStore(), testSessionConfig())

	session, data, err := svc.GetOrCreate("+2348012345678")
	require.NoError(t, err)
	svc.Login(session, "USR1")
	data.Flow = FlowAppointment
	data.SetCursor(CursorDoctors, NewPageCursor([]PageItem{{ID: "DOC1"}}, 5))

	svc.Logout(session, data)
	assert.Equal(t, models.SessionStateNew, session.State)
	assert.Empty(t, session.Token)
	assert.Empty(t, session.UserID)
	assert.Empty(t, data.Flow)
	assert.Nil(t, data.Cursors)
}

func TestSetCursorReplacesWholeMap(t *testing.T) {
	data := &SessionData{}
	data.SetCursor(CursorProducts, NewPageCursor([]PageItem{{ID: "MED1"}}, 5))
	data.SetCursor(CursorDoctors, NewPageCursor([]PageItem{{ID: "DOC1"}}, 5))

	require.Len(t, data.Cursors, 1)
	namespace, cursor := data.ActiveCursor()
	assert.Equal(t, CursorDoctors, namespace)
	assert.Equal(t, "DOC1", cursor.Items[0].ID)
}
