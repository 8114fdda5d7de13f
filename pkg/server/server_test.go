package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bundlr-network/validator/pkg/cosign"
	"github.com/bundlr-network/validator/pkg/keymanager"
	"github.com/bundlr-network/validator/pkg/validatorstate"
)

type stubCosign struct {
	sig       string
	err       error
	verified  int
	quorumErr error
}

func (s *stubCosign) Cosign(ctx context.Context, req cosign.Request) (string, error) {
	return s.sig, s.err
}

func (s *stubCosign) VerifyQuorum(req cosign.LeaderRequest) (int, error) {
	return s.verified, s.quorumErr
}

func testKeyManager(t *testing.T) keymanager.KeyManager {
	t.Helper()
	validatorKey, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	bundlerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	km, err := keymanager.New(validatorKey, &bundlerKey.PublicKey)
	if err != nil {
		t.Fatalf("keymanager.New: %v", err)
	}
	return km
}

func TestHandleIndex_ReturnsIdentityAndSyncPosition(t *testing.T) {
	km := testKeyManager(t)
	state := validatorstate.New()
	state.SetBlock(42)
	state.SetEpoch(3)

	h := &indexHandlers{cfg: Config{Version: "1.2.3", Keys: km, State: state}}
	rec := httptest.NewRecorder()
	h.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body indexBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Address != km.ValidatorAddress() || body.BlockHeight != 42 || body.Epoch != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleSign_SuccessReturnsOctetStream(t *testing.T) {
	h := &cosignHandlers{cosign: &stubCosign{sig: "c2ln"}}
	body := `{"id":"tx","size":0,"fee":"0","currency":"FOO","block":"5","validator":"addr","signature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/cosigner/sign", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleSign(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("expected octet-stream content type, got %q", ct)
	}
	if rec.Body.String() != "c2ln" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestHandleSign_AlreadyCosignedYields202(t *testing.T) {
	h := &cosignHandlers{cosign: &stubCosign{err: cosign.ErrAlreadyCosigned}}
	body := `{"id":"tx","size":0,"fee":"0","currency":"FOO","block":"5","validator":"addr","signature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/cosigner/sign", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleSign(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestHandleSign_InvalidBlockStringYields400(t *testing.T) {
	h := &cosignHandlers{cosign: &stubCosign{}}
	body := `{"id":"tx","size":0,"fee":"0","currency":"FOO","block":"not-a-number","validator":"addr","signature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/cosigner/sign", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleSign(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleLeaderTx_RejectsWhenNotLeader(t *testing.T) {
	h := &cosignHandlers{state: validatorstate.New()}
	rec := httptest.NewRecorder()
	h.handleLeaderTx(rec, httptest.NewRequest(http.MethodPost, "/leader/tx", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleLeaderTx_RejectsInsufficientQuorum(t *testing.T) {
	state := validatorstate.New()
	state.SetRole(validatorstate.RoleLeader)
	h := &cosignHandlers{cosign: &stubCosign{verified: 1}, state: state}

	rec := httptest.NewRecorder()
	h.handleLeaderTx(rec, httptest.NewRequest(http.MethodPost, "/leader/tx", strings.NewReader(`{"id":"tx","signatures":[{"address":"a","public_key_pem":"x","signature":"y"}]}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleLeaderTx_AcceptsSufficientQuorum(t *testing.T) {
	state := validatorstate.New()
	state.SetRole(validatorstate.RoleLeader)
	h := &cosignHandlers{cosign: &stubCosign{verified: cosign.RequiredQuorum}, state: state}

	rec := httptest.NewRecorder()
	h.handleLeaderTx(rec, httptest.NewRequest(http.MethodPost, "/leader/tx", strings.NewReader(`{"id":"tx"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleSetState_UpdatesRequestedFields(t *testing.T) {
	state := validatorstate.New()
	h := &testStateHandlers{state: state}

	req := httptest.NewRequest(http.MethodPost, "/test/state", strings.NewReader(`{"epoch":"7","role":"idle"}`))
	rec := httptest.NewRecorder()
	h.handleSetState(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if state.Epoch() != 7 {
		t.Fatalf("expected epoch 7, got %d", state.Epoch())
	}
	if state.Role() != validatorstate.RoleIdle {
		t.Fatalf("expected RoleIdle, got %s", state.Role())
	}
}

func TestHandleSetState_RejectsUnknownRole(t *testing.T) {
	h := &testStateHandlers{state: validatorstate.New()}
	req := httptest.NewRequest(http.MethodPost, "/test/state", strings.NewReader(`{"role":"dictator"}`))
	rec := httptest.NewRecorder()
	h.handleSetState(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
