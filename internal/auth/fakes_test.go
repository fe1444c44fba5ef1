package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errBackendDown = errors.New("connection refused")

type fakeEstablishments struct {
	byCode map[string]*entities.Establishment
	err    error
	calls  []string
}

func newFakeEstablishments(list ...*entities.Establishment) *fakeEstablishments {
	f := &fakeEstablishments{byCode: make(map[string]*entities.Establishment)}
	for _, e := range list {
		f.byCode[e.Code] = e
	}
	return f
}

func (f *fakeEstablishments) GetByCode(_ context.Context, code string) (*entities.Establishment, error) {
	f.calls = append(f.calls, code)
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.byCode[code]; ok {
		return e, nil
	}
	return nil, database.ErrNotFound
}

type fakeIdentities struct {
	staff    []entities.Profile
	teachers []entities.Teacher
	students []entities.Student
	profiles map[string]*entities.Profile
	err      error
}

func (f *fakeIdentities) FindStaff(_ context.Context, establishmentID, username string) (*entities.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.staff {
		p := &f.staff[i]
		if p.EstablishmentID == establishmentID && p.Username == username && p.Role == entities.RoleStaff {
			return p, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeIdentities) FindTeacher(_ context.Context, establishmentID, username string) (*entities.Teacher, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.teachers {
		t := &f.teachers[i]
		if t.EstablishmentID == establishmentID && t.Username == username {
			return t, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeIdentities) FindStudent(_ context.Context, establishmentID, username string) (*entities.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.students {
		s := &f.students[i]
		if s.EstablishmentID == establishmentID && s.Username == username {
			return s, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeIdentities) GetProfileByID(_ context.Context, id string) (*entities.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, database.ErrNotFound
}

const fakeProviderCookie = "fake_idp"

// fakeProvider treats the presence of its cookie as a signed-in principal
// whose ID is the cookie value.
type fakeProvider struct {
	mu       sync.Mutex
	err      error
	signOuts int
}

func (p *fakeProvider) CurrentPrincipal(ctx context.Context, cookies SessionStore) (*Principal, error) {
	if p.err != nil {
		return nil, p.err
	}
	id, ok, err := cookies.Read(ctx, fakeProviderCookie)
	if err != nil || !ok {
		return nil, err
	}
	return &Principal{ID: id}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context, cookies SessionStore) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	return cookies.Clear(ctx, fakeProviderCookie)
}

func (p *fakeProvider) SignIn(ctx context.Context, token string, cookies SessionStore) (*Principal, error) {
	if token == "bad" {
		return nil, errors.New("invalid token")
	}
	return &Principal{ID: token}, cookies.Write(ctx, fakeProviderCookie, token, 0)
}

// fakeRedirectProvider signs in the principal named by the authorization
// code when the callback carries the nonce it handed out.
type fakeRedirectProvider struct {
	fakeProvider
	issuedNonce string
}

func (p *fakeRedirectProvider) AuthCodeURL(state, nonce string) string {
	p.issuedNonce = nonce
	return "https://idp.example/authorize?" + url.Values{"state": {state}, "nonce": {nonce}}.Encode()
}

func (p *fakeRedirectProvider) Exchange(ctx context.Context, code, nonce string, cookies SessionStore) (*Principal, error) {
	if nonce == "" || nonce != p.issuedNonce {
		return nil, errors.New("nonce mismatch")
	}
	return &Principal{ID: code}, cookies.Write(ctx, fakeProviderCookie, code, 0)
}

type recordedEvent struct {
	kind     string
	user     *AuthUser
	authType AuthType
	path     string
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) add(e recordedEvent) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fakeEvents) LoginSucceeded(_ context.Context, user *AuthUser, _, _ string) {
	f.add(recordedEvent{kind: "login", user: user, authType: user.AuthType})
}

func (f *fakeEvents) LoginFailed(_ context.Context, authType AuthType, _, _, _, _ string, _ error) {
	f.add(recordedEvent{kind: "login_failed", authType: authType})
}

func (f *fakeEvents) LoggedOut(_ context.Context, user *AuthUser, _, _ string) {
	f.add(recordedEvent{kind: "logout", user: user})
}

func (f *fakeEvents) Forbidden(_ context.Context, path string, _ []entities.Role, user *AuthUser, _, _ string) {
	f.add(recordedEvent{kind: "forbidden", path: path, user: user})
}

func (f *fakeEvents) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.kind
	}
	return out
}
