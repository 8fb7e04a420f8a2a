// Package server exposes the wizards and the dashboard to a local
// browser front end. It acts for the user logged in on this machine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zdunecki/internnav/pkg/api"
	"github.com/zdunecki/internnav/pkg/auth"
	"github.com/zdunecki/internnav/pkg/ranking"
	"github.com/zdunecki/internnav/pkg/session"
	"github.com/zdunecki/internnav/pkg/wizard"
)

const maxUploadBytes = 10 << 20

type Server struct {
	client   *api.Client
	auth     *auth.Service
	sessions *session.Store
	keys     *keyring
	logger   *zap.Logger

	mu      sync.Mutex
	wizards map[uuid.UUID]*run
}

// run is a wizard session and the email of the user who started it.
type run struct {
	ctrl  *wizard.Controller
	owner string
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(client *api.Client, store *session.Store, opts ...Option) (*Server, error) {
	keys, err := newKeyring(2048)
	if err != nil {
		return nil, fmt.Errorf("init secure keypair: %w", err)
	}
	s := &Server{
		client:   client,
		sessions: store,
		keys:     keys,
		logger:   zap.NewNop(),
		wizards:  make(map[uuid.UUID]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.auth = auth.NewService(client, s.logger)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/crypto/public-key", s.handlePublicKey)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /api/catalogs", s.handleListCatalogs)
	mux.HandleFunc("GET /api/catalogs/{name}", s.handleGetCatalog)
	mux.HandleFunc("POST /api/wizards", s.handleCreateWizard)
	mux.HandleFunc("GET /api/wizards/{id}", s.handleGetWizard)
	mux.HandleFunc("POST /api/wizards/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /api/wizards/{id}/{action}", s.handleWizardAction)
	mux.HandleFunc("GET /api/internships", s.handleInternships)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string, openBrowser bool) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	url := "http://" + ln.Addr().String()
	s.logger.Info("starting web API", zap.String("url", url))
	if openBrowser {
		OpenBrowser(url, s.logger)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func OpenBrowser(url string, logger *zap.Logger) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}
	if err != nil {
		logger.Warn("failed to open browser", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the same {"error": ...} envelope as the backend.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps a failure to the response status.
func statusFor(err error) int {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Unauthorized() {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, wizard.ErrNotAnswered):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wizard.ErrUnknownStep),
		errors.Is(err, wizard.ErrNotCurrentStep),
		errors.Is(err, wizard.ErrUnknownOption),
		errors.Is(err, wizard.ErrWrongKind):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrIncomplete), errors.Is(err, errDecrypt):
		return http.StatusBadRequest
	}
	return http.StatusConflict
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	keyID, spkiB64, err := s.keys.publicKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alg":     "RSA-OAEP-256",
		"keyId":   keyID,
		"spkiB64": spkiB64,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	// PasswordEnc is RSA-OAEP ciphertext of the password under KeyID.
	PasswordEnc string `json:"passwordEnc,omitempty" secure:"rsa_oaep_b64" secure_key:"KeyID"`
	KeyID       string `json:"keyId,omitempty"`
}

type sessionView struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	ProfileComplete bool   `json:"profile_complete"`
	QuizTaken       bool   `json:"quiz_taken"`
}

func viewSession(sess *session.Session) sessionView {
	return sessionView{
		Name:            sess.Name,
		Email:           sess.Email,
		ProfileComplete: sess.ProfileComplete,
		QuizTaken:       sess.QuizTaken,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.keys.decryptFields(&req); err != nil {
		s.fail(w, err)
		return
	}
	if req.PasswordEnc != "" {
		req.Password = req.PasswordEnc
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.sessions.Save(sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.dropWizards()
	writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.dropWizards()
	if err := s.sessions.Destroy(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Load()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	type catalogSummary struct {
		Name  string `json:"name"`
		Title string `json:"title"`
		Steps int    `json:"steps"`
	}
	var out []catalogSummary
	for _, name := range wizard.Names() {
		c, err := wizard.Get(name)
		if err != nil {
			continue
		}
		out = append(out, catalogSummary{Name: c.Name(), Title: c.Title(), Steps: c.Len()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := wizard.Get(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      c.Name(),
		"title":     c.Title(),
		"skippable": c.IsSkippable(),
		"steps":     c.Steps(),
	})
}

func (s *Server) handleCreateWizard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Catalog string `json:"catalog"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	catalog, err := wizard.Get(req.Catalog)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	sess, err := s.sessions.Load()
	if err != nil {
		s.fail(w, err)
		return
	}
	gw, err := api.NewWizardGateway(s.client.Authorized(sess.Token), catalog, sess.Email)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.New()
	ctrl := wizard.New(catalog, gw, wizard.WithLogger(s.logger.With(zap.String("wizard", id.String()))))
	s.mu.Lock()
	s.wizards[id] = &run{ctrl: ctrl, owner: sess.Email}
	s.mu.Unlock()

	s.logger.Info("wizard started", zap.String("id", id.String()), zap.String("catalog", catalog.Name()))
	writeJSON(w, http.StatusCreated, view(id, ctrl))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (uuid.UUID, *run, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wizard id")
		return uuid.Nil, nil, false
	}
	s.mu.Lock()
	rn, ok := s.wizards[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown wizard: "+id.String())
		return uuid.Nil, nil, false
	}
	return id, rn, true
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	id, rn, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctrl := rn.ctrl
	writeJSON(w, http.StatusOK, view(id, ctrl))
}

type answerRequest struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (s *Server) handleWizardAction(w http.ResponseWriter, r *http.Request) {
	id, rn, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctrl := rn.ctrl

	var err error
	switch action := r.PathValue("action"); action {
	case "select", "details", "text":
		var req answerRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		switch action {
		case "select":
			err = ctrl.SelectOption(req.ID, req.Value)
		case "details":
			err = ctrl.SetDetails(req.ID, req.Value)
		default:
			err = ctrl.SetText(req.ID, req.Value)
		}
	case "advance":
		err = ctrl.Advance()
	case "retreat":
		err = ctrl.Retreat()
	case "submit":
		err = ctrl.Submit(r.Context())
	case "skip":
		err = ctrl.Skip()
	case "cancel":
		err = ctrl.Cancel()
	default:
		writeError(w, http.StatusNotFound, "unknown action: "+action)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	v := view(id, ctrl)
	s.settle(id, rn)
	writeJSON(w, http.StatusOK, v)
}

// handleResume forwards an uploaded resume to the backend and fills the
// catalog's skills step with what it found.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, rn, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctrl := rn.ctrl
	sess, err := s.sessions.Load()
	if err != nil {
		s.fail(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("resume")
	if err != nil {
		writeError(w, http.StatusBadRequest, "resume file is required")
		return
	}
	defer file.Close()

	analysis, err := s.client.Authorized(sess.Token).UploadResumeFrom(r.Context(), header.Filename, file)
	if err != nil {
		var apiErr *api.Error
		if !errors.As(err, &apiErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.fail(w, err)
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		target = "skills"
	}
	if skills := analysis.SkillList(); skills != "" {
		if err := ctrl.Prefill(target, skills); err != nil {
			s.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resume": analysis,
		"wizard": view(id, ctrl),
	})
}

// settle forgets a wizard once it has ended and records the outcome on
// the saved session.
func (s *Server) settle(id uuid.UUID, rn *run) {
	ctrl := rn.ctrl
	state := ctrl.State()
	if !wizard.Terminal(state) {
		return
	}
	s.mu.Lock()
	delete(s.wizards, id)
	s.mu.Unlock()
	<-ctrl.Done()

	sess, err := s.sessions.Load()
	if err != nil {
		return
	}
	if !strings.EqualFold(sess.Email, rn.owner) {
		s.logger.Info("wizard outlived its session, outcome not recorded",
			zap.String("id", id.String()), zap.String("owner", rn.owner))
		return
	}
	if sess.Record(ctrl.Catalog().Name(), state) {
		if err := s.sessions.Save(sess); err != nil {
			s.logger.Warn("failed to save session", zap.Error(err))
		}
	}
	s.logger.Info("wizard finished", zap.String("id", id.String()), zap.String("state", wizard.StateName(state)))
}

func (s *Server) dropWizards() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rn := range s.wizards {
		if err := rn.ctrl.Cancel(); err != nil {
			s.logger.Debug("wizard not cancelled", zap.String("id", id.String()), zap.Error(err))
		}
		delete(s.wizards, id)
	}
}

func (s *Server) handleInternships(w http.ResponseWriter, r *http.Request) {
	key, err := ranking.ParseKey(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.Load()
	if err != nil {
		s.fail(w, err)
		return
	}
	postings, err := s.client.Authorized(sess.Token).Internships(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if r.URL.Query().Get("view") == "applications" {
		postings = ranking.Applications(postings)
	}
	sorted := ranking.Sort(postings, key)
	if sorted == nil {
		sorted = []api.Internship{}
	}
	writeJSON(w, http.StatusOK, sorted)
}

type wizardView struct {
	ID           string                 `json:"id"`
	Catalog      string                 `json:"catalog"`
	State        string                 `json:"state"`
	Index        *int                   `json:"index,omitempty"`
	Total        int                    `json:"total"`
	Step         *wizard.StepDefinition `json:"step,omitempty"`
	Answered     bool                   `json:"answered"`
	NeedsDetails []string               `json:"needsDetails,omitempty"`
	CanAdvance   bool                   `json:"canAdvance"`
	CanSubmit    bool                   `json:"canSubmit"`
	LastError    string                 `json:"lastError,omitempty"`
	Answers      map[string]any         `json:"answers"`
}

func view(id uuid.UUID, ctrl *wizard.Controller) wizardView {
	c := ctrl.Catalog()
	v := wizardView{
		ID:         id.String(),
		Catalog:    c.Name(),
		State:      wizard.StateName(ctrl.State()),
		Total:      c.Len(),
		CanAdvance: ctrl.CanAdvance(),
		CanSubmit:  ctrl.CanSubmit(),
		LastError:  ctrl.LastError(),
		Answers:    ctrl.Snapshot().Flatten(c),
	}
	if idx, ok := ctrl.Index(); ok {
		step := c.Step(idx)
		v.Index = &idx
		v.Step = &step
		v.Answered = ctrl.IsStepAnswered(idx)

		ids := []string{step.ID}
		for _, f := range step.Fields {
			ids = append(ids, f.ID)
		}
		for _, sid := range ids {
			if ctrl.NeedsDetails(sid) {
				v.NeedsDetails = append(v.NeedsDetails, sid)
			}
		}
		sort.Strings(v.NeedsDetails)
	}
	return v
}
