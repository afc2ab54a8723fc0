package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"looplib/internal/auth"
	"looplib/internal/config"
	database "looplib/internal/db"
	"looplib/internal/ingest"
	"looplib/internal/library"
	"looplib/internal/profile"
	"looplib/internal/storage"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	storage *storage.Client
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := &config.Config{}
	cfg.Auth.RateLimit = 100
	cfg.Auth.RateBurst = 100
	cfg.Upload.MaxFileSizeMB = 5

	client, err := database.Open(sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	require.NoError(t, client.AutoMigrate(true))
	t.Cleanup(func() { _ = client.Close() })

	profiles := profile.NewSQLStore(client.DB)
	provider := auth.NewProvider(client.DB, profiles, auth.NewTokenManager("test-secret", time.Hour), nil)

	st := storage.NewWithProvider(storage.NewLocalProvider(t.TempDir()), "bucket", storage.URLPolicy{Mode: storage.URLProxy})
	lib := library.New(st, library.Options{FetchConcurrency: 4, CacheTTL: time.Minute}, nil)
	up := ingest.New(st, lib, ingest.DefaultLimits(), t.TempDir(), nil)
	up.Probe = nil

	srv := New(cfg, Deps{Auth: provider, Profiles: profiles, Library: lib, Uploader: up})
	return &testAPI{t: t, handler: srv.Handler(), storage: st}
}

func (a *testAPI) do(method, url, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func (a *testAPI) json(method, url, token string, payload any) *httptest.ResponseRecorder {
	b, err := json.Marshal(payload)
	require.NoError(a.t, err)
	return a.do(method, url, token, bytes.NewReader(b), "application/json")
}

type session struct {
	Token string `json:"token"`
	User  struct {
		UID string `json:"uid"`
	} `json:"user"`
}

func (a *testAPI) register(username, email string) session {
	w := a.json(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "secret1",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var s session
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &s))
	return s
}

func (a *testAPI) upload(token, name string, fields map[string]string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", "audio/wav")
	part, err := mw.CreatePart(h)
	require.NoError(a.t, err)
	_, err = part.Write(data)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())
	return a.do(http.MethodPost, "/api/v1/upload", token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type listing struct {
	Data []library.Record `json:"data"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAndLoginErrors(t *testing.T) {
	api := newTestAPI(t)
	api.register("anna", "anna@example.com")

	w := api.json(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "anna2", "email": "anna@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "auth/email-already-in-use", body["error"])
	assert.Equal(t, "Email is already in use.", body["message"])

	w = api.json(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must be at least 6 characters long.", decode[map[string]string](t, w)["message"])

	w = api.json(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required.", decode[map[string]string](t, w)["message"])

	w = api.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "anna@example.com", "password": "wrong-one",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password.", decode[map[string]string](t, w)["message"])

	w = api.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "anna@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfile(t *testing.T) {
	api := newTestAPI(t)
	anna := api.register("anna", "anna@example.com")

	w := api.do(http.MethodGet, "/api/v1/profile", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/api/v1/profile", anna.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Account struct {
			DisplayName string `json:"displayName"`
		} `json:"account"`
		Profile struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "anna", body.Account.DisplayName)
	assert.Equal(t, "anna", body.Profile.Username)
	assert.Equal(t, "anna@example.com", body.Profile.Email)

	w = api.json(http.MethodPut, "/api/v1/profile", anna.Token, map[string]string{"displayName": "Anna Z"})
	assert.Equal(t, http.StatusOK, w.Code)

	bob := api.register("bob", "bob@example.com")
	w = api.do(http.MethodGet, "/api/v1/users/"+anna.User.UID, bob.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anna", decode[map[string]string](t, w)["username"])

	w = api.do(http.MethodGet, "/api/v1/users/missing", bob.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLibraryFlow(t *testing.T) {
	api := newTestAPI(t)
	anna := api.register("anna", "anna@example.com")
	bob := api.register("bob", "bob@example.com")

	w := api.upload(anna.Token, "pad.wav", map[string]string{"genre": "Ambient", "bpm": "90", "publisher": "Loop Co"}, []byte("RIFF----WAVEfmt "))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = api.upload(anna.Token, "kick.wav", nil, []byte("RIFF----WAVEdata"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Own listing
	w = api.do(http.MethodGet, "/api/v1/profile/files", anna.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	own := decode[listing](t, w)
	require.Equal(t, 2, own.Meta.Total)
	byName := map[string]library.Record{}
	for _, r := range own.Data {
		byName[r.Name] = r
	}
	assert.Equal(t, "Ambient", byName["pad.wav"].Genre)
	assert.Equal(t, "90", byName["pad.wav"].BPM)
	assert.Equal(t, "Loop Co", byName["pad.wav"].Publisher)
	assert.Equal(t, library.Unknown, byName["pad.wav"].MusicalKey)
	assert.Equal(t, library.AnonymousPublisher, byName["kick.wav"].Publisher)
	assert.Equal(t, "/api/v1/users/"+anna.User.UID+"/files/pad.wav/stream", byName["pad.wav"].URL)

	// Another user browses the same library
	w = api.do(http.MethodGet, "/api/v1/users/"+anna.User.UID+"/files", bob.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[listing](t, w).Meta.Total)

	// Stream with the token in the query string, as an <audio> tag would
	w = api.do(http.MethodGet, byName["kick.wav"].URL+"?token="+bob.Token, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RIFF----WAVEdata", w.Body.String())

	w = api.do(http.MethodGet, "/api/v1/users/"+anna.User.UID+"/files/nope.wav/stream", bob.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Only the owner deletes
	w = api.do(http.MethodDelete, "/api/v1/users/"+anna.User.UID+"/files/pad.wav", bob.Token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodDelete, "/api/v1/profile/files/pad.wav", anna.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/v1/profile/files", anna.Token, nil, "")
	remaining := decode[listing](t, w)
	require.Len(t, remaining.Data, 1)
	assert.Equal(t, "kick.wav", remaining.Data[0].Name)

	ok, err := api.storage.Exists(t.Context(), storage.MetadataKey(anna.User.UID, "pad.wav"))
	require.NoError(t, err)
	assert.False(t, ok, "metadata companion should be deleted with the file")

	w = api.do(http.MethodDelete, "/api/v1/profile/files/pad.wav", anna.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	api := newTestAPI(t)
	anna := api.register("anna", "anna@example.com")

	w := api.upload(anna.Token, "notes.txt", nil, []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/upload", anna.Token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	anna := api.register("anna", "anna@example.com")

	w := api.do(http.MethodPost, "/api/v1/auth/logout", anna.Token, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodGet, "/api/v1/profile", anna.Token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
