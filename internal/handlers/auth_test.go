package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/recipebook/apiserver/internal/services"
	"github.com/recipebook/apiserver/internal/store"
	"github.com/recipebook/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// fakeUserRepo is an in-memory UserRepository keyed by email.
type fakeUserRepo struct {
	nextID int64
	users  []types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (types.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.users = append(f.users, user)
	return user, nil
}

func (f *fakeUserRepo) List(ctx context.Context) ([]types.User, error) {
	return append([]types.User(nil), f.users...), nil
}

func newAuthTestRouter() (*chi.Mux, *fakeUserRepo) {
	repo := newFakeUserRepo()
	router := chi.NewRouter()
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, services.NewUserService(repo), testSecret)
	})
	return router, repo
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignUpAndSignIn(t *testing.T) {
	router, repo := newAuthTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/users/signup", SignUpRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
		Address:  "1 Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "alice", created.Username)
	require.NotZero(t, created.ID)
	require.NotEmpty(t, created.Token)

	require.Len(t, repo.users, 1)
	require.Equal(t, types.RoleRegistered, repo.users[0].Role)
	require.NotEqual(t, "secret123", repo.users[0].PasswordHash)

	rec = doJSON(t, router, http.MethodPost, "/users/signin", SignInRequest{
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var signedIn AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signedIn))
	require.Equal(t, created.ID, signedIn.ID)
	require.NotEmpty(t, signedIn.Token)

	identity, err := parseToken(signedIn.Token, []byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, created.ID, identity.UserID)
	require.Equal(t, types.RoleRegistered, identity.Role)
	require.Equal(t, "alice", identity.Username)
}

func TestSignUpValidation(t *testing.T) {
	router, repo := newAuthTestRouter()

	cases := []struct {
		name string
		req  SignUpRequest
	}{
		{"short username", SignUpRequest{Username: "al", Email: "al@example.com", Password: "secret123"}},
		{"invalid email", SignUpRequest{Username: "alice", Email: "not-an-email", Password: "secret123"}},
		{"short password", SignUpRequest{Username: "alice", Email: "alice@example.com", Password: "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/users/signup", tc.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	require.Empty(t, repo.users)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	router, repo := newAuthTestRouter()

	first := doJSON(t, router, http.MethodPost, "/users/signup", SignUpRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/users/signup", SignUpRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "secret456",
	})
	require.Equal(t, http.StatusConflict, second.Code)
	require.Len(t, repo.users, 1)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	router, _ := newAuthTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/users/signup", SignUpRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/users/signin", SignInRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/users/signin", SignInRequest{
		Email:    "nobody@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUsersOmitsPasswordHash(t *testing.T) {
	router, _ := newAuthTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/users/signup", SignUpRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/users/", nil)
	list := httptest.NewRecorder()
	router.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	require.NotContains(t, list.Body.String(), "password")
}

func TestTokenRoundTrip(t *testing.T) {
	user := types.User{ID: 7, Username: "bob", Role: types.RoleAdmin}

	token, err := issueToken(user, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	identity, err := parseToken(token, []byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: 7, Role: types.RoleAdmin, Username: "bob"}, identity)

	_, err = parseToken(token, []byte("other-secret"))
	require.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	user := types.User{ID: 7, Username: "bob", Role: types.RoleUser}

	token, err := issueToken(user, []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	_, err = parseToken(token, []byte(testSecret))
	require.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"case insensitive scheme", "bearer abc", "abc", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic abc", "", true},
		{"empty token", "Bearer ", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			token, err := bearerToken(req)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, token)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromContext(r.Context())
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, identity)
	})
	protected := RequireAuth(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := issueToken(types.User{ID: 3, Username: "carol", Role: types.RoleUser}, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalAuthToleratesBadTokens(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{"caller_id": callerID(r.Context())})
	})
	handler := OptionalAuth(testSecret)(next)

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"caller_id":0}`, rec.Body.String())
	}

	token, err := issueToken(types.User{ID: 9, Username: "dave", Role: types.RoleRegistered}, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"caller_id":9}`, rec.Body.String())
}

func TestRequireRecipeMutatorRejectsUnknownRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAuth(testSecret)(RequireRecipeMutator(next))

	token, err := issueToken(types.User{ID: 4, Username: "mallory", Role: "spectator"}, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
