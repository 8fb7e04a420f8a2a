package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/internnav/pkg/api"
	"github.com/zdunecki/internnav/pkg/session"
	"github.com/zdunecki/internnav/pkg/wizard"
)

// backend fakes the internship REST API.
type backend struct {
	mu         sync.Mutex
	submitted  map[string]any
	submitFail bool
	// hold, when set, blocks submissions until it is closed.
	hold    chan struct{}
	entered chan struct{}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case api.PathLogin:
		var creds api.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "Secret1!" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error": "Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token": "tok", "name": "Asha", "profile_complete": false, "quiz_taken": false}`)
	case api.PathQuizSubmit, api.PathOnboarding:
		b.mu.Lock()
		hold, entered := b.hold, b.entered
		b.mu.Unlock()
		if hold != nil {
			close(entered)
			<-hold
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.submitFail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error": "database is locked"}`)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&b.submitted)
		_, _ = io.WriteString(w, `{"message": "ok"}`)
	case api.PathInternships:
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[
			{"id": 1, "title": "A", "company": "Zeta", "matchScore": 70, "stipend": "₹12,000"},
			{"id": 2, "title": "B", "company": "Acme", "matchScore": 91, "stipend": "₹5,000", "applicationStatus": "Applied"},
			{"id": 3, "title": "C", "company": "Midas", "matchScore": 80, "stipend": "₹8,000"}
		]`)
	case api.PathResumeUpload:
		_, _ = io.WriteString(w, `{"name": "Asha", "skills": ["Go", "SQL"]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *backend) failSubmits(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitFail = fail
}

func (b *backend) lastSubmission() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitted
}

// holdSubmits makes the next submission wait until release is called.
func (b *backend) holdSubmits() (entered <-chan struct{}, release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hold = make(chan struct{})
	b.entered = make(chan struct{})
	hold := b.hold
	return b.entered, func() { close(hold) }
}

type fixture struct {
	t       *testing.T
	backend *backend
	store   *session.Store
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := &backend{}
	upstream := httptest.NewServer(b)
	t.Cleanup(upstream.Close)

	client, err := api.New(upstream.URL, api.WithHTTPClient(upstream.Client()))
	require.NoError(t, err)
	store := session.NewStore(filepath.Join(t.TempDir(), "session.yaml"))
	s, err := New(client, store)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{t: t, backend: b, store: store, srv: srv}
}

func (f *fixture) login() {
	f.t.Helper()
	require.NoError(f.t, f.store.Save(&session.Session{Token: "tok", Name: "Asha", Email: "a@b.c"}))
}

func (f *fixture) do(method, path string, body any) (int, map[string]any) {
	f.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(f.t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(f.t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func (f *fixture) startWizard(catalog string) string {
	f.t.Helper()
	status, v := f.do(http.MethodPost, "/api/wizards", map[string]string{"catalog": catalog})
	require.Equal(f.t, http.StatusCreated, status, v)
	return v["id"].(string)
}

func TestEncryptedLogin(t *testing.T) {
	f := newFixture(t)

	status, key := f.do(http.MethodGet, "/api/crypto/public-key", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "RSA-OAEP-256", key["alg"])

	der, err := base64.StdEncoding.DecodeString(key["spkiB64"].(string))
	require.NoError(t, err)
	pub, err := x509.ParsePKIXPublicKey(der)
	require.NoError(t, err)
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub.(*rsa.PublicKey), []byte("Secret1!"), nil)
	require.NoError(t, err)

	status, body := f.do(http.MethodPost, "/api/login", map[string]string{
		"email":       "a@b.c",
		"passwordEnc": base64.StdEncoding.EncodeToString(ct),
		"keyId":       key["keyId"].(string),
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Asha", body["name"])
	assert.NotContains(t, body, "token")

	sess, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	assert.Equal(t, "a@b.c", sess.Email)
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(http.MethodPost, "/api/login", map[string]string{"email": "a@b.c", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, _ = f.do(http.MethodPost, "/api/login", map[string]string{
		"email": "a@b.c", "passwordEnc": "AAAA", "keyId": "k-unknown",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	_, err := f.store.Load()
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestRequiresSession(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(http.MethodPost, "/api/wizards", map[string]string{"catalog": wizard.QuizCatalog})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = f.do(http.MethodGet, "/api/internships", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestWizardActions(t *testing.T) {
	f := newFixture(t)
	f.login()
	id := f.startWizard(wizard.QuizCatalog)
	base := "/api/wizards/" + id

	status, v := f.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "at_step", v["state"])
	assert.Equal(t, float64(0), v["index"])
	assert.Equal(t, float64(14), v["total"])

	status, _ = f.do(http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = f.do(http.MethodPost, base+"/select", map[string]string{"id": "languages", "value": "Hindi"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(http.MethodPost, base+"/select", map[string]string{"id": "highest_qualification", "value": "PhD"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, v = f.do(http.MethodPost, base+"/select", map[string]string{"id": "highest_qualification", "value": "Professional / Other"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"highest_qualification"}, v["needsDetails"])
	assert.Equal(t, true, v["canAdvance"])

	status, v = f.do(http.MethodPost, base+"/details", map[string]string{"id": "highest_qualification", "value": "CA"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CA", v["answers"].(map[string]any)["highest_qualification_details"])

	status, v = f.do(http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), v["index"])

	status, v = f.do(http.MethodPost, base+"/retreat", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), v["index"])

	status, _ = f.do(http.MethodPost, base+"/skip", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(http.MethodPost, base+"/fly", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, v = f.do(http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", v["state"])

	status, _ = f.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(http.MethodGet, "/api/wizards/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func registerShortQuiz(t *testing.T) {
	t.Helper()
	c, err := wizard.NewCatalog(wizard.QuizCatalog, []wizard.StepDefinition{
		{ID: "internship_mode", Kind: wizard.KindSingleSelect, Prompt: "Mode?",
			Options: []wizard.Option{{Label: "Hybrid"}, {Label: "Fully remote"}}},
	}, wizard.WithSubmission(wizard.Submission{Path: api.PathQuizSubmit, Failure: "Failed to save results."}))
	require.NoError(t, err)

	original, err := wizard.Get(wizard.QuizCatalog)
	require.NoError(t, err)
	wizard.Register(c)
	t.Cleanup(func() { wizard.Register(original) })
}

func TestWizardSubmit(t *testing.T) {
	registerShortQuiz(t)
	f := newFixture(t)
	f.login()
	id := f.startWizard(wizard.QuizCatalog)
	base := "/api/wizards/" + id

	status, _ := f.do(http.MethodPost, base+"/select", map[string]string{"id": "internship_mode", "value": "Hybrid"})
	require.Equal(t, http.StatusOK, status)

	f.backend.failSubmits(true)
	status, body := f.do(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "database is locked", body["error"])

	status, v := f.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "database is locked", v["lastError"])

	f.backend.failSubmits(false)
	status, v = f.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", v["state"])
	assert.Equal(t, map[string]any{"email": "a@b.c", "internship_mode": "Hybrid"}, f.backend.lastSubmission())

	sess, err := f.store.Load()
	require.NoError(t, err)
	assert.True(t, sess.QuizTaken)

	status, _ = f.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubmitAfterLogoutLeavesNextSessionAlone(t *testing.T) {
	registerShortQuiz(t)
	f := newFixture(t)
	f.login()
	id := f.startWizard(wizard.QuizCatalog)
	base := "/api/wizards/" + id

	status, _ := f.do(http.MethodPost, base+"/select", map[string]string{"id": "internship_mode", "value": "Hybrid"})
	require.Equal(t, http.StatusOK, status)

	entered, release := f.backend.holdSubmits()
	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, f.srv.URL+base+"/submit", nil)
		resp, err := f.srv.Client().Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-entered

	status, _ = f.do(http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusNoContent, status)
	require.NoError(t, f.store.Save(&session.Session{Token: "tok-b", Name: "Bo", Email: "b@x"}))

	release()
	assert.Equal(t, http.StatusOK, <-done)

	sess, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "b@x", sess.Email)
	assert.False(t, sess.QuizTaken)
}

func TestOnboardingSkip(t *testing.T) {
	f := newFixture(t)
	f.login()
	id := f.startWizard(wizard.OnboardingCatalog)

	status, v := f.do(http.MethodPost, "/api/wizards/"+id+"/skip", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "skipped", v["state"])

	sess, err := f.store.Load()
	require.NoError(t, err)
	assert.True(t, sess.ProfileComplete)
	assert.False(t, sess.QuizTaken)
}

func TestResumeUploadPrefillsSkills(t *testing.T) {
	f := newFixture(t)
	f.login()
	id := f.startWizard(wizard.OnboardingCatalog)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("resume", "cv.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF"))
	require.NoError(t, mw.Close())

	resp, err := f.srv.Client().Post(f.srv.URL+"/api/wizards/"+id+"/resume", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Resume api.ResumeAnalysis `json:"resume"`
		Wizard wizardView         `json:"wizard"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Go", "SQL"}, out.Resume.Skills)
	assert.Equal(t, "Go, SQL", out.Wizard.Answers["skills"])
}

func TestInternships(t *testing.T) {
	f := newFixture(t)
	f.login()

	get := func(query string) []api.Internship {
		resp, err := f.srv.Client().Get(f.srv.URL + "/api/internships" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []api.Internship
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}
	ids := func(list []api.Internship) []api.PostingID {
		var out []api.PostingID
		for _, p := range list {
			out = append(out, p.ID)
		}
		return out
	}

	assert.Equal(t, []api.PostingID{"2", "3", "1"}, ids(get("")))
	assert.Equal(t, []api.PostingID{"1", "3", "2"}, ids(get("?sort=stipend")))
	assert.Equal(t, []api.PostingID{"2", "3", "1"}, ids(get("?sort=company")))
	assert.Equal(t, []api.PostingID{"2"}, ids(get("?view=applications")))

	status, _ := f.do(http.MethodGet, "/api/internships?sort=salary", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCatalogs(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(http.MethodGet, "/api/catalogs/"+wizard.OnboardingCatalog, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["skippable"])
	assert.Len(t, body["steps"], 3)

	status, _ = f.do(http.MethodGet, "/api/catalogs/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.login()
	id := f.startWizard(wizard.QuizCatalog)

	status, _ := f.do(http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)
	_, err := f.store.Load()
	assert.ErrorIs(t, err, session.ErrNoSession)

	status, _ = f.do(http.MethodGet, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDecryptFields(t *testing.T) {
	k, err := newKeyring(1024)
	require.NoError(t, err)
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &k.priv.PublicKey, []byte("s3cret"), nil)
	require.NoError(t, err)

	req := loginRequest{PasswordEnc: base64.StdEncoding.EncodeToString(ct), KeyID: k.keyID}
	require.NoError(t, k.decryptFields(&req))
	assert.Equal(t, "s3cret", req.PasswordEnc)

	assert.Error(t, k.decryptFields(req))
	req = loginRequest{PasswordEnc: "!!", KeyID: k.keyID}
	assert.ErrorIs(t, k.decryptFields(&req), errDecrypt)
}
