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

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/rules"
	authsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/auth"
	billingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/billing"
	matchingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/matching"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/participants"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/queue"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/sequences"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/sessions"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/dto"
)

type fixedCatalog struct{}

func (fixedCatalog) GetPool(context.Context, int64) (model.PoolCatalog, error) {
	return model.PoolCatalog{
		PoolID: 1,
		Sequences: []model.CatalogSequence{
			{ID: 10, Position: 1, VideoCount: 3, Active: true},
		},
	}, nil
}

type testEnv struct {
	engine    *matchingsvc.Engine
	directory *participants.Directory
	pool      *queue.Pool
	registry  *sessions.Registry
	billing   *billingsvc.Engine
	router    chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	directory := participants.NewDirectory(nil, time.Second, nil)
	pool := queue.NewPool()
	registry := sessions.NewRegistry(nil, nil)
	tracker := sequences.NewTracker(fixedCatalog{}, nil)
	charger := billingsvc.NewEngine(nil, directory, nil, billingsvc.Config{TickInterval: time.Hour}, nil)

	engine := matchingsvc.NewEngine(matchingsvc.Dependencies{
		Directory: directory,
		Pool:      pool,
		Sessions:  registry,
		Sequences: tracker,
		Billing:   charger,
	}, matchingsvc.Config{Backoff: rules.NewBackoff(1, time.Millisecond)})

	matchHandler := NewMatchHandler(engine, directory)
	sessionHandler := NewSessionHandler(engine)
	billingHandler := NewBillingHandler(charger, directory)

	router := chi.NewRouter()
	router.Post("/v1/queue/join", matchHandler.Join)
	router.Post("/v1/queue/leave", matchHandler.Leave)
	router.Post("/v1/swipe", matchHandler.Swipe)
	router.Post("/v1/sessions/{session_id}/events", sessionHandler.Events)
	router.Get("/v1/billing/balance", billingHandler.Balance)

	return &testEnv{
		engine:    engine,
		directory: directory,
		pool:      pool,
		registry:  registry,
		billing:   charger,
		router:    router,
	}
}

func (env *testEnv) register(id int64) {
	env.directory.Register(model.Participant{
		ID:               id,
		Kind:             enums.KindAppUser,
		PoolID:           1,
		SequenceID:       10,
		Gender:           enums.GenderFemale,
		GenderPreference: enums.PreferenceAny,
		CoinBalance:      50,
		Status:           enums.StatusIdle,
	})
}

func (env *testEnv) do(t *testing.T, participantID int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if participantID > 0 {
		ctx := authsvc.WithIdentity(req.Context(), authsvc.Identity{ParticipantID: participantID})
		req = req.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeMatch(t *testing.T, rec *httptest.ResponseRecorder) dto.MatchResponse {
	t.Helper()
	var resp dto.MatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode match response: %v", err)
	}
	return resp
}

func TestJoinWithoutIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, 0, http.MethodPost, "/v1/queue/join", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJoinReturnsWaitingWhenPoolIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)

	rec := env.do(t, 101, http.MethodPost, "/v1/queue/join", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeMatch(t, rec); resp.Status != "waiting" {
		t.Fatalf("expected waiting status, got %+v", resp)
	}
	if !env.pool.Contains(101) {
		t.Fatalf("caller must be left waiting")
	}
}

func TestJoinMatchesWaitingPeer(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)
	env.register(102)

	if rec := env.do(t, 102, http.MethodPost, "/v1/queue/join", nil); rec.Code != http.StatusOK {
		t.Fatalf("peer join failed: %d", rec.Code)
	}

	rec := env.do(t, 101, http.MethodPost, "/v1/queue/join", dto.MatchRequest{PoolID: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeMatch(t, rec)
	if resp.Status != "matched" || resp.PeerID != 102 || resp.SessionID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SessionType != string(enums.SessionRealUser) {
		t.Fatalf("unexpected session type: %s", resp.SessionType)
	}
	if resp.Progress == nil || resp.Progress.SequenceID != 10 {
		t.Fatalf("progress must be reported: %+v", resp.Progress)
	}
}

func TestJoinTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)

	env.do(t, 101, http.MethodPost, "/v1/queue/join", nil)
	rec := env.do(t, 101, http.MethodPost, "/v1/queue/join", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestJoinRejectsMismatchedAssignment(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)

	rec := env.do(t, 101, http.MethodPost, "/v1/queue/join", dto.MatchRequest{PoolID: 2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched pool_id must return 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.pool.Contains(101) {
		t.Fatalf("rejected join must not enqueue the caller")
	}

	rec = env.do(t, 101, http.MethodPost, "/v1/queue/join", dto.MatchRequest{DesiredSequenceID: 99})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched desired_sequence_id must return 400, got %d", rec.Code)
	}

	rec = env.do(t, 101, http.MethodPost, "/v1/queue/join", dto.MatchRequest{PoolID: 1, DesiredSequenceID: 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("matching assignment must be accepted, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLeaveQueue(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)

	env.do(t, 101, http.MethodPost, "/v1/queue/join", nil)

	rec := env.do(t, 101, http.MethodPost, "/v1/queue/leave", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env.pool.Contains(101) {
		t.Fatalf("caller must be out of the pool")
	}

	rec = env.do(t, 101, http.MethodPost, "/v1/queue/leave", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second leave, got %d", rec.Code)
	}
}

func TestUnknownParticipant(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, 404, http.MethodPost, "/v1/queue/join", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionEventFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)
	env.register(102)

	env.do(t, 102, http.MethodPost, "/v1/queue/join", nil)
	joined := decodeMatch(t, env.do(t, 101, http.MethodPost, "/v1/queue/join", nil))
	if joined.Status != "matched" {
		t.Fatalf("setup failed: %+v", joined)
	}

	rec := env.do(t, 101, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/events", dto.SessionEventRequest{Event: "connected"})
	if rec.Code != http.StatusOK {
		t.Fatalf("connected event: %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.registry.State(101); got != enums.ConnConnected {
		t.Fatalf("expected connected, got %s", got)
	}

	rec = env.do(t, 101, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/events", dto.SessionEventRequest{Event: "connected"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("double connect must return 409, got %d", rec.Code)
	}

	rec = env.do(t, 101, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/events", dto.SessionEventRequest{Event: "leave"})
	if rec.Code != http.StatusOK {
		t.Fatalf("leave event: %d", rec.Code)
	}
	if _, ok := env.registry.Get(joined.SessionID); ok {
		t.Fatalf("session must be ended")
	}
}

func TestSessionEventValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)
	env.register(102)
	env.register(103)

	env.do(t, 102, http.MethodPost, "/v1/queue/join", nil)
	joined := decodeMatch(t, env.do(t, 101, http.MethodPost, "/v1/queue/join", nil))

	rec := env.do(t, 101, http.MethodPost, "/v1/sessions/nope/events", dto.SessionEventRequest{Event: "leave"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session must return 404, got %d", rec.Code)
	}

	rec = env.do(t, 103, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/events", dto.SessionEventRequest{Event: "leave"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider must get 403, got %d", rec.Code)
	}

	rec = env.do(t, 101, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/events", dto.SessionEventRequest{Event: "shrug"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown event must return 400, got %d", rec.Code)
	}
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t)
	env.register(101)

	rec := env.do(t, 101, http.MethodGet, "/v1/billing/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.BalanceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ParticipantID != 101 || resp.CoinBalance != 50 {
		t.Fatalf("unexpected balance: %+v", resp)
	}
}
