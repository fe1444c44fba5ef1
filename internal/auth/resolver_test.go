package auth

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/espace-classe/internal/entities"
)

type resolverFixture struct {
	resolver       *Resolver
	service        *Service
	establishments *fakeEstablishments
	identities     *fakeIdentities
	provider       *fakeProvider
	cookies        *MemoryStore
	local          *MemoryStore
}

func (f *resolverFixture) stores() Stores {
	return Stores{Cookies: f.cookies, Local: f.local}
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	school := &entities.Establishment{ID: "est-1", Code: "STM14000", Name: "ST-MARIE 14000"}
	establishments := newFakeEstablishments(school)
	identities := &fakeIdentities{profiles: map[string]*entities.Profile{}}
	provider := &fakeProvider{}

	resolver := NewResolver(establishments, identities, provider, ResolverConfig{Timeout: time.Second})
	service := NewService(establishments, identities, ServiceConfig{Provider: provider})

	return &resolverFixture{
		resolver:       resolver,
		service:        service,
		establishments: establishments,
		identities:     identities,
		provider:       provider,
		cookies:        NewMemoryStore(),
		local:          NewMemoryStore(),
	}
}

func writeRecord(t *testing.T, store SessionStore, record any) {
	t.Helper()
	value, err := encodeValue(record)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), UnifiedSessionKey, value, 0))
}

func writeAdmin(t *testing.T, store SessionStore, cred AdminCredential) {
	t.Helper()
	value, err := encodeValue(cred)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), AdminSessionKey, value, 0))
}

var teacherRecord = SessionRecord{
	ID:              "teacher-1",
	EstablishmentID: "est-1",
	Role:            string(entities.RoleTeacher),
	Username:        "j.martin.stm",
	FirstName:       "Jean",
}

func TestResolve_NoArtifacts(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	assert.Equal(t, StatusUnauthenticated, result.Status)
	assert.Nil(t, result.User)
	assert.Equal(t, "/auth/login", result.RedirectTo)
}

func TestResolve_UnauthenticatedCustomRedirect(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{RedirectTo: "/elsewhere"})

	assert.Equal(t, "/elsewhere", result.RedirectTo)
}

func TestResolve_LocalSessionFromCookie(t *testing.T) {
	f := newResolverFixture(t)
	writeRecord(t, f.cookies, teacherRecord)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "teacher-1", result.User.ID)
	assert.Equal(t, "est-1", result.User.EstablishmentID)
	assert.Equal(t, entities.RoleTeacher, result.User.Role)
	assert.Equal(t, AuthTypeLocal, result.User.AuthType)
	assert.Equal(t, "Jean", result.User.FirstName)
}

func TestResolve_LocalSessionFromTwin(t *testing.T) {
	f := newResolverFixture(t)
	writeRecord(t, f.local, teacherRecord)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "teacher-1", result.User.ID)
}

func TestResolve_CookieWinsOverTwin(t *testing.T) {
	f := newResolverFixture(t)
	writeRecord(t, f.cookies, teacherRecord)
	other := teacherRecord
	other.ID = "someone-else"
	writeRecord(t, f.local, other)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "teacher-1", result.User.ID)
}

func TestResolve_UndecodableCookieFallsBackToTwin(t *testing.T) {
	f := newResolverFixture(t)
	require.NoError(t, f.cookies.Write(context.Background(), UnifiedSessionKey, "%7Bnot-json", 0))
	writeRecord(t, f.local, teacherRecord)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "teacher-1", result.User.ID)
	assert.False(t, f.cookies.Has(UnifiedSessionKey), "corrupted cookie should be cleared")
}

func TestResolve_MissingFieldsClearsBothAndFallsThrough(t *testing.T) {
	tests := []struct {
		name   string
		record SessionRecord
	}{
		{"missing role", SessionRecord{ID: "u1", EstablishmentID: "est-1"}},
		{"missing id", SessionRecord{EstablishmentID: "est-1", Role: "professeur"}},
		{"missing establishment", SessionRecord{ID: "u1", Role: "professeur"}},
		{"unknown role", SessionRecord{ID: "u1", EstablishmentID: "est-1", Role: "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t)
			writeRecord(t, f.cookies, tt.record)
			writeRecord(t, f.local, tt.record)

			result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

			assert.Equal(t, StatusUnauthenticated, result.Status)
			assert.False(t, f.cookies.Has(UnifiedSessionKey))
			assert.False(t, f.local.Has(UnifiedSessionKey))
		})
	}
}

func TestResolve_InvalidLocalFallsThroughToAdmin(t *testing.T) {
	f := newResolverFixture(t)
	writeRecord(t, f.cookies, SessionRecord{ID: "u1", EstablishmentID: "est-1"})
	writeAdmin(t, f.cookies, AdminCredential{Code: "cpdc002", EstablishmentCode: "STM14000", Role: entities.RoleTeacher})

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeAdmin, result.User.AuthType)
}

func TestResolve_AdminSession(t *testing.T) {
	f := newResolverFixture(t)
	writeAdmin(t, f.cookies, AdminCredential{Code: "cpdc001", EstablishmentCode: "STM14000", Role: entities.RoleDelegate})

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "admin-cpdc001", result.User.ID)
	assert.Equal(t, "cpdc001", result.User.Username)
	assert.Equal(t, "est-1", result.User.EstablishmentID)
	// Role is forced regardless of the credential's own role
	assert.Equal(t, entities.RoleStaff, result.User.Role)
	assert.Equal(t, AuthTypeAdmin, result.User.AuthType)
}

func TestResolve_AdminSessionLooksUpByCodeWhenNoEstablishmentCode(t *testing.T) {
	f := newResolverFixture(t)
	f.establishments.byCode["cpdc003"] = &entities.Establishment{ID: "est-by-code", Code: "cpdc003"}
	writeAdmin(t, f.cookies, AdminCredential{Code: "cpdc003"})

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "est-by-code", result.User.EstablishmentID)
	assert.Equal(t, []string{"cpdc003"}, f.establishments.calls)
}

func TestResolve_AdminSessionFallbackEstablishment(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newResolverFixture(t)
		writeAdmin(t, f.cookies, AdminCredential{Code: "cpdc009", EstablishmentCode: "UNKNOWN"})

		result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

		require.Equal(t, StatusAuthenticated, result.Status)
		assert.Equal(t, "mock-establishment-id", result.User.EstablishmentID)
	})

	t.Run("lookup error", func(t *testing.T) {
		f := newResolverFixture(t)
		f.establishments.err = errBackendDown
		writeAdmin(t, f.cookies, AdminCredential{Code: "cpdc001", EstablishmentCode: "STM14000"})

		result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

		require.Equal(t, StatusAuthenticated, result.Status)
		assert.Equal(t, "mock-establishment-id", result.User.EstablishmentID)
	})
}

func TestResolve_UndecodableAdminCookieIsAbsent(t *testing.T) {
	f := newResolverFixture(t)
	require.NoError(t, f.cookies.Write(context.Background(), AdminSessionKey, "garbage", 0))

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	assert.Equal(t, StatusUnauthenticated, result.Status)
}

func TestResolve_AdminCookieWithoutCodeIsAbsent(t *testing.T) {
	f := newResolverFixture(t)
	writeAdmin(t, f.cookies, AdminCredential{EstablishmentCode: "STM14000"})

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	assert.Equal(t, StatusUnauthenticated, result.Status)
	assert.Nil(t, result.User)
}

func TestResolve_LocalWinsOverAdmin(t *testing.T) {
	f := newResolverFixture(t)
	writeRecord(t, f.cookies, teacherRecord)
	writeAdmin(t, f.cookies, AdminCredential{Code: "cpdc003"})

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeLocal, result.User.AuthType)
	assert.Empty(t, f.establishments.calls, "admin path must not run once the local path wins")
}

func TestResolve_ProviderSession(t *testing.T) {
	f := newResolverFixture(t)
	f.identities.profiles["idp-1"] = &entities.Profile{
		Identity: entities.Identity{
			ID:              "idp-1",
			EstablishmentID: "est-1",
			Username:        "sso.user",
			FirstName:       "Claire",
			LastName:        "Dupont",
			Email:           "claire@example.fr",
		},
		Role: entities.RoleDelegate,
	}
	require.NoError(t, f.cookies.Write(context.Background(), fakeProviderCookie, "idp-1", 0))

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeProvider, result.User.AuthType)
	assert.Equal(t, entities.RoleDelegate, result.User.Role)
	assert.Equal(t, "claire@example.fr", result.User.Email)
	assert.Equal(t, "Dupont", result.User.LastName)
}

func TestResolve_ProviderWithoutUsableProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile *entities.Profile
	}{
		{"no profile", nil},
		{"no establishment", &entities.Profile{Identity: entities.Identity{ID: "idp-1"}, Role: entities.RoleStaff}},
		{"no role", &entities.Profile{Identity: entities.Identity{ID: "idp-1", EstablishmentID: "est-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t)
			if tt.profile != nil {
				f.identities.profiles["idp-1"] = tt.profile
			}
			require.NoError(t, f.cookies.Write(context.Background(), fakeProviderCookie, "idp-1", 0))

			result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

			assert.Equal(t, StatusUnauthenticated, result.Status)
			assert.Nil(t, result.User)
		})
	}
}

func TestResolve_ProviderErrorIsNoSession(t *testing.T) {
	f := newResolverFixture(t)
	f.provider.err = errBackendDown

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{})

	assert.Equal(t, StatusUnauthenticated, result.Status)
}

func TestResolve_RoleMismatchIsForbidden(t *testing.T) {
	f := newResolverFixture(t)
	delegate := teacherRecord
	delegate.Role = string(entities.RoleDelegate)
	writeRecord(t, f.cookies, delegate)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{RequireRole: entities.RoleTeacher})

	assert.Equal(t, StatusForbidden, result.Status)
	assert.Nil(t, result.User)
	assert.Equal(t, "/dashboard", result.RedirectTo)

	result = f.resolver.Resolve(context.Background(), f.stores(), Options{RequireRole: entities.RoleTeacher, RedirectTo: "/dashboard/eleve"})
	assert.Equal(t, "/dashboard/eleve", result.RedirectTo)
}

func TestResolve_RoleMatch(t *testing.T) {
	f := newResolverFixture(t)
	writeRecord(t, f.cookies, teacherRecord)

	result := f.resolver.Resolve(context.Background(), f.stores(), Options{RequireRole: entities.RoleTeacher})

	assert.Equal(t, StatusAuthenticated, result.Status)
}

func TestResolve_RoundTrip(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	record := &SessionRecord{
		ID:                "staff-1",
		EstablishmentID:   "est-1",
		EstablishmentCode: "STM14000",
		EstablishmentName: "ST-MARIE 14000",
		Role:              string(entities.RoleStaff),
		Username:          "vs.stmarie",
		FirstName:         "Élodie",
		LastName:          "O'Neil & fils",
	}

	require.NoError(t, f.service.StartLocalSession(ctx, f.stores(), record))
	assert.True(t, f.cookies.Has(UnifiedSessionKey))
	assert.True(t, f.local.Has(UnifiedSessionKey))

	result := f.resolver.Resolve(ctx, f.stores(), Options{})

	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, record.ID, result.User.ID)
	assert.Equal(t, record.EstablishmentID, result.User.EstablishmentID)
	assert.Equal(t, entities.RoleStaff, result.User.Role)
	assert.Equal(t, "O'Neil & fils", result.User.LastName)
}

func TestResolve_ClearLocalSessionKeepsAdmin(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.StartLocalSession(ctx, f.stores(), &teacherRecord))
	require.NoError(t, f.service.StartAdminSession(ctx, f.stores(), AdminCredential{Code: "cpdc003", EstablishmentCode: "STM14000"}))

	require.NoError(t, f.service.ClearLocalSession(ctx, f.stores()))

	assert.False(t, f.cookies.Has(UnifiedSessionKey))
	assert.False(t, f.local.Has(UnifiedSessionKey))

	result := f.resolver.Resolve(ctx, f.stores(), Options{})
	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeAdmin, result.User.AuthType)
}

func TestResolve_LogoutClearsEverything(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.StartLocalSession(ctx, f.stores(), &teacherRecord))
	require.NoError(t, f.service.StartAdminSession(ctx, f.stores(), AdminCredential{Code: "cpdc003"}))
	require.NoError(t, f.cookies.Write(ctx, fakeProviderCookie, "idp-1", 0))

	require.NoError(t, f.service.Logout(ctx, f.stores()))

	assert.False(t, f.cookies.Has(UnifiedSessionKey))
	assert.False(t, f.local.Has(UnifiedSessionKey))
	assert.False(t, f.cookies.Has(AdminSessionKey))
	assert.False(t, f.cookies.Has(fakeProviderCookie))
	assert.Equal(t, 1, f.provider.signOuts)

	result := f.resolver.Resolve(ctx, f.stores(), Options{})
	assert.Equal(t, StatusUnauthenticated, result.Status)
}

func TestResolve_NilStores(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(context.Background(), Stores{}, Options{})

	assert.Equal(t, StatusUnauthenticated, result.Status)
}

func TestResolve_Metrics(t *testing.T) {
	f := newResolverFixture(t)
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry, "test")
	f.resolver.WithMetrics(metrics)

	f.resolver.Resolve(context.Background(), f.stores(), Options{})
	writeRecord(t, f.cookies, teacherRecord)
	f.resolver.Resolve(context.Background(), f.stores(), Options{})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("none", "unauthenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("local-credential", "authenticated")))
}
