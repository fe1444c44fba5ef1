package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// browser replays cookies between requests like a user agent would.
type browser struct {
	t       *testing.T
	router  http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, cookie := range b.cookies {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	b.router.ServeHTTP(rr, req)
	for _, cookie := range rr.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(b.cookies, cookie.Name)
			continue
		}
		b.cookies[cookie.Name] = cookie
	}
	return rr
}

func (b *browser) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) session() Result {
	b.t.Helper()
	rr := b.get("/api/session")
	var result Result
	require.NoError(b.t, json.Unmarshal(rr.Body.Bytes(), &result))
	return result
}

type handlerFixture struct {
	browser    *browser
	events     *fakeEvents
	provider   *fakeProvider
	identities *fakeIdentities
	controller *AuthController
}

func newHandlerFixture(t *testing.T, provider IdentityProvider) *handlerFixture {
	t.Helper()
	establishments := newFakeEstablishments(&entities.Establishment{ID: "est-1", Code: "STM14000", Name: "ST-MARIE 14000"})
	identities := &fakeIdentities{
		teachers: []entities.Teacher{{
			Identity: entities.Identity{ID: "teacher-1", EstablishmentID: "est-1", Username: "j.martin.stm", PasswordHash: mustHash(t, "Prof2024!")},
		}},
		profiles: map[string]*entities.Profile{
			"idp-1": {Identity: entities.Identity{ID: "idp-1", EstablishmentID: "est-1", Email: "sso@example.fr"}, Role: entities.RoleStaff},
		},
	}
	events := &fakeEvents{}

	sessions := NewSessionManager(NewMemorySessionStore(), config.Auth{SessionMaxAge: time.Hour})
	stores := NewStoreFactory(CookieOptions{}, sessions)
	resolver := NewResolver(establishments, identities, provider, ResolverConfig{})
	service := NewService(establishments, identities, ServiceConfig{
		AdminCodes: NewAdminCodes(config.DefaultAdminCodes),
		Provider:   provider,
	})
	controller := NewAuthController(service, resolver, stores, AuthControllerConfig{
		RateLimit: RateLimitConfig{MaxAttempts: 3, CleanupInterval: time.Hour},
		Events:    events,
	})
	t.Cleanup(controller.Stop)

	router := gin.New()
	router.Use(sessions.SessionLoadSave())
	controller.RegisterRoutes(router)

	f := &handlerFixture{
		browser:    &browser{t: t, router: router, cookies: make(map[string]*http.Cookie)},
		events:     events,
		identities: identities,
		controller: controller,
	}
	if fp, ok := provider.(*fakeProvider); ok {
		f.provider = fp
	}
	return f
}

const teacherLogin = `{"establishment_code":"STM14000","role":"professeur","username":"j.martin.stm","password":"Prof2024!"}`

func TestLogin_JSON(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rr := f.browser.postJSON("/auth/login", teacherLogin)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		User       AuthUser `json:"user"`
		RedirectTo string   `json:"redirect_to"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "teacher-1", body.User.ID)
	assert.Equal(t, DefaultLandingPath, body.RedirectTo)
	assert.Contains(t, f.browser.cookies, UnifiedSessionKey)
	assert.Contains(t, f.browser.cookies, SessionCookieName, "local twin should be committed")
	assert.Equal(t, []string{"login"}, f.events.kinds())

	result := f.browser.session()
	assert.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "teacher-1", result.User.ID)
}

func TestLogin_FormRedirects(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rr := f.browser.postForm("/auth/login", url.Values{
		"establishment_code": {"STM14000"},
		"role":               {"professeur"},
		"username":           {"j.martin.stm"},
		"password":           {"Prof2024!"},
		"redirect":           {"/dashboard/salles"},
	})

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard/salles", rr.Header().Get("Location"))
}

func TestLogin_RejectsOpenRedirect(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rr := f.browser.postForm("/auth/login", url.Values{
		"establishment_code": {"STM14000"},
		"role":               {"professeur"},
		"username":           {"j.martin.stm"},
		"password":           {"Prof2024!"},
		"redirect":           {"//evil.example"},
	})

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, DefaultLandingPath, rr.Header().Get("Location"))
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"establishment_code":"STM14000","role":"professeur","username":"j.martin.stm","password":"x"}`, http.StatusUnauthorized},
		{"unknown role", `{"establishment_code":"STM14000","role":"admin","username":"j.martin.stm","password":"Prof2024!"}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t, nil)

			rr := f.browser.postJSON("/auth/login", tt.body)

			assert.Equal(t, tt.want, rr.Code)
			assert.NotContains(t, f.browser.cookies, UnifiedSessionKey)
		})
	}
}

func TestLogin_BackendUnavailable(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.identities.err = errBackendDown

	rr := f.browser.postJSON("/auth/login", teacherLogin)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, []string{"login_failed"}, f.events.kinds())
}

func TestLogin_RateLimited(t *testing.T) {
	f := newHandlerFixture(t, nil)
	bad := `{"establishment_code":"STM14000","role":"professeur","username":"j.martin.stm","password":"x"}`

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, f.browser.postJSON("/auth/login", bad).Code)
	}

	rr := f.browser.postJSON("/auth/login", teacherLogin)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestLogin_RateLimitIsPerRole(t *testing.T) {
	f := newHandlerFixture(t, nil)
	student := `{"establishment_code":"STM14000","role":"delegue","username":"j.martin.stm","password":"x"}`

	for i := 0; i < 3; i++ {
		f.browser.postJSON("/auth/login", student)
	}
	require.Equal(t, http.StatusTooManyRequests, f.browser.postJSON("/auth/login", student).Code)

	rr := f.browser.postJSON("/auth/login", teacherLogin)
	assert.Equal(t, http.StatusOK, rr.Code, "a teacher with the same username is not locked out")
}

func TestAdminLogin(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rr := f.browser.postJSON("/auth/admin", `{"code":" CPDC003 "}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	result := f.browser.session()
	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeAdmin, result.User.AuthType)
	assert.Equal(t, "admin-cpdc003", result.User.ID)
	assert.Equal(t, "est-1", result.User.EstablishmentID)
}

func TestAdminLogin_Errors(t *testing.T) {
	f := newHandlerFixture(t, nil)

	assert.Equal(t, http.StatusBadRequest, f.browser.postJSON("/auth/admin", `{"code":"  "}`).Code)
	assert.Equal(t, http.StatusUnauthorized, f.browser.postJSON("/auth/admin", `{"code":"nope"}`).Code)
	assert.NotContains(t, f.browser.cookies, AdminSessionKey)
}

func TestSession_RequireRole(t *testing.T) {
	f := newHandlerFixture(t, nil)
	require.Equal(t, http.StatusOK, f.browser.postJSON("/auth/login", teacherLogin).Code)

	rr := f.browser.get("/api/session?require_role=delegue")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	var result Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, StatusForbidden, result.Status)
	assert.Nil(t, result.User)
	assert.Equal(t, "/dashboard", result.RedirectTo)

	assert.Equal(t, http.StatusOK, f.browser.get("/api/session?require_role=professeur").Code)
	assert.Equal(t, http.StatusBadRequest, f.browser.get("/api/session?require_role=root").Code)
}

func TestSession_Unauthenticated(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rr := f.browser.get("/api/session")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redirect_to":"/auth/login"`)
}

func TestLogout_ClearsEverySession(t *testing.T) {
	f := newHandlerFixture(t, &fakeProvider{})
	require.Equal(t, http.StatusOK, f.browser.postJSON("/auth/login", teacherLogin).Code)
	require.Equal(t, http.StatusOK, f.browser.postJSON("/auth/admin", `{"code":"cpdc001"}`).Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Accept", "application/json")
	rr := f.browser.do(req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, f.browser.cookies, UnifiedSessionKey)
	assert.NotContains(t, f.browser.cookies, AdminSessionKey)
	assert.Equal(t, 1, f.provider.signOuts)
	assert.Equal(t, StatusUnauthenticated, f.browser.session().Status)
	assert.Contains(t, f.events.kinds(), "logout")
}

func TestLogout_BrowserRedirectsToLogin(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rr := f.browser.get("/auth/logout")

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
}

func TestLogoutLocal_KeepsAdminSession(t *testing.T) {
	f := newHandlerFixture(t, nil)
	require.Equal(t, http.StatusOK, f.browser.postJSON("/auth/login", teacherLogin).Code)
	require.Equal(t, http.StatusOK, f.browser.postJSON("/auth/admin", `{"code":"cpdc001"}`).Code)

	rr := f.browser.postJSON("/auth/logout/local", "")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.NotContains(t, f.browser.cookies, UnifiedSessionKey)
	result := f.browser.session()
	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeAdmin, result.User.AuthType)
}

func TestTwinSurvivesLostCookie(t *testing.T) {
	f := newHandlerFixture(t, nil)
	require.Equal(t, http.StatusOK, f.browser.postJSON("/auth/login", teacherLogin).Code)

	delete(f.browser.cookies, UnifiedSessionKey)

	result := f.browser.session()
	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, "teacher-1", result.User.ID)
}

func TestProviderLogin_NotConfigured(t *testing.T) {
	f := newHandlerFixture(t, nil)

	assert.Equal(t, http.StatusNotFound, f.browser.get("/auth/provider/login").Code)
	assert.Equal(t, http.StatusNotFound, f.browser.get("/auth/provider/callback").Code)
}

func TestProviderLogin_Token(t *testing.T) {
	f := newHandlerFixture(t, &fakeProvider{})

	rr := f.browser.get("/auth/provider/login?token=idp-1&redirect=/dashboard/salles")

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard/salles", rr.Header().Get("Location"))
	result := f.browser.session()
	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeProvider, result.User.AuthType)
	assert.Equal(t, "sso@example.fr", result.User.Email)
}

func TestProviderLogin_TokenErrors(t *testing.T) {
	f := newHandlerFixture(t, &fakeProvider{})

	assert.Equal(t, http.StatusUnauthorized, f.browser.get("/auth/provider/login?token=bad").Code)
	assert.Equal(t, http.StatusForbidden, f.browser.get("/auth/provider/login?token=unmapped").Code)
	assert.Equal(t, http.StatusBadRequest, f.browser.get("/auth/provider/login").Code)
}

func TestProviderLogin_RedirectFlowChecksNonce(t *testing.T) {
	provider := &fakeRedirectProvider{}
	f := newHandlerFixture(t, provider)

	rr := f.browser.get("/auth/provider/login")
	require.Equal(t, http.StatusFound, rr.Code)
	authorize, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	state := authorize.Query().Get("state")
	require.NotEmpty(t, state)
	require.NotEmpty(t, authorize.Query().Get("nonce"))
	assert.NotEqual(t, state, authorize.Query().Get("nonce"))

	rr = f.browser.get("/auth/provider/callback?" + url.Values{"state": {state}, "code": {"idp-1"}}.Encode())
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())
	assert.Equal(t, DefaultLandingPath, rr.Header().Get("Location"))
	assert.NotContains(t, f.browser.cookies, providerStateCookie)
	assert.NotContains(t, f.browser.cookies, providerNonceCookie)

	result := f.browser.session()
	require.Equal(t, StatusAuthenticated, result.Status)
	assert.Equal(t, AuthTypeProvider, result.User.AuthType)
}

func TestProviderCallback_RequiresNonceCookie(t *testing.T) {
	f := newHandlerFixture(t, &fakeRedirectProvider{})

	rr := f.browser.get("/auth/provider/login")
	require.Equal(t, http.StatusFound, rr.Code)
	authorize, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	delete(f.browser.cookies, providerNonceCookie)

	rr = f.browser.get("/auth/provider/callback?" + url.Values{"state": {authorize.Query().Get("state")}, "code": {"idp-1"}}.Encode())
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, StatusUnauthenticated, f.browser.session().Status)
}
