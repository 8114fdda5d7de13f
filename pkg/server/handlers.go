package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bundlr-network/validator/pkg/cosign"
	"github.com/bundlr-network/validator/pkg/database"
	"github.com/bundlr-network/validator/pkg/validatorstate"
)

type indexHandlers struct {
	cfg Config
}

type indexBody struct {
	Version        string `json:"version"`
	Address        string `json:"address"`
	BundlerAddress string `json:"bundler_address"`
	BlockHeight    uint64 `json:"block_height"`
	Epoch          uint64 `json:"epoch"`
}

// handleIndex serves GET / with the validator's identity and sync position.
func (h *indexHandlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, indexBody{
		Version:        h.cfg.Version,
		Address:        h.cfg.Keys.ValidatorAddress(),
		BundlerAddress: h.cfg.Keys.BundlerAddress(),
		BlockHeight:    h.cfg.State.Block(),
		Epoch:          h.cfg.State.Epoch(),
	})
}

type txHandlers struct {
	txs    *database.TransactionRepository
	logger *log.Logger
}

// handleGetTx serves GET /tx/{id} with the stored receipt, or 404.
func (h *txHandlers) handleGetTx(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tx, err := h.txs.Get(r.Context(), id)
	if errors.Is(err, database.ErrTransactionNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Printf("failed to fetch transaction %s: %v", id, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type cosignHandlers struct {
	cosign CosignService
	state  *validatorstate.State
	logger *log.Logger
}

type signRequestBody struct {
	ID        string `json:"id"`
	Size      uint64 `json:"size"`
	Fee       string `json:"fee"`
	Currency  string `json:"currency"`
	Block     string `json:"block"`
	Validator string `json:"validator"`
	Signature string `json:"signature"`
}

// handleSign serves POST /cosigner/sign (§4.9 of the wire spec this
// validator was built against): verify the bundler's receipt signature,
// countersign, and persist.
func (h *cosignHandlers) handleSign(w http.ResponseWriter, r *http.Request) {
	var body signRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	blockNum, err := strconv.ParseInt(body.Block, 10, 64)
	if err != nil {
		writeJSONError(w, "invalid block number", http.StatusBadRequest)
		return
	}

	req := cosign.Request{
		ID:        body.ID,
		Size:      strconv.FormatUint(body.Size, 10),
		Fee:       body.Fee,
		Currency:  body.Currency,
		Block:     body.Block,
		BlockNum:  blockNum,
		Validator: body.Validator,
		Signature: body.Signature,
	}

	sig, err := h.cosign.Cosign(r.Context(), req)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sig))
	case errors.Is(err, cosign.ErrAlreadyCosigned):
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, cosign.ErrNotCosigner):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, cosign.ErrWrongValidator):
		writeJSONError(w, "Invalid validator address", http.StatusBadRequest)
	case errors.Is(err, cosign.ErrBlockOutOfRange):
		writeJSONError(w, "Invalid block number", http.StatusBadRequest)
	case errors.Is(err, cosign.ErrInvalidSignature):
		writeJSONError(w, "Invalid bundler signature", http.StatusBadRequest)
	default:
		h.logger.Printf("cosign failed for %s: %v", body.ID, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}

type leaderRequestSignature struct {
	Address      string `json:"address"`
	PublicKeyPEM string `json:"public_key_pem"`
	Signature    string `json:"signature"`
}

type leaderRequestBody struct {
	ID             string                   `json:"id"`
	Size           string                   `json:"size"`
	Fee            string                   `json:"fee"`
	Currency       string                   `json:"currency"`
	Block          string                   `json:"block"`
	BundlerAddress string                   `json:"bundler_address"`
	Signatures     []leaderRequestSignature `json:"signatures"`
}

// handleLeaderTx serves POST /leader/tx: a validator-quorum gate exercised
// only when this node currently holds the Leader role. A Cosigner-role
// validator gets the same immediate 400 shape as /cosigner/sign.
func (h *cosignHandlers) handleLeaderTx(w http.ResponseWriter, r *http.Request) {
	if h.state.Role() != validatorstate.RoleLeader {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body leaderRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sigs := make([]cosign.ValidatorSignature, len(body.Signatures))
	for i, s := range body.Signatures {
		sigs[i] = cosign.ValidatorSignature{Address: s.Address, PublicKeyPEM: s.PublicKeyPEM, Signature: s.Signature}
	}

	verified, err := h.cosign.VerifyQuorum(cosign.LeaderRequest{
		ID:             body.ID,
		Size:           body.Size,
		Fee:            body.Fee,
		Currency:       body.Currency,
		Block:          body.Block,
		BundlerAddress: body.BundlerAddress,
		Signatures:     sigs,
	})
	if err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if verified < cosign.RequiredQuorum {
		writeJSONError(w, fmt.Sprintf("insufficient validator quorum: %d/%d", verified, cosign.RequiredQuorum), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"verified":    verified,
		"accepted_id": uuid.New().String(),
	})
}

type statusHandlers struct {
	cfg Config
}

type statusBody struct {
	TotalTxs      int64  `json:"total_txs"`
	Epoch         uint64 `json:"epoch"`
	NextEpoch     uint64 `json:"next_epoch"`
	PreviousEpoch uint64 `json:"previous_epoch"`
}

// handleStatus serves GET /status with a row count and epoch triple.
func (h *statusHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, err := h.cfg.Txs.Count(r.Context())
	if err != nil {
		total = 0
	}
	epoch := h.cfg.State.Epoch()

	var previous uint64
	if epoch > 0 {
		previous = epoch - 1
	}

	writeJSON(w, http.StatusOK, statusBody{
		TotalTxs:      total,
		Epoch:         epoch,
		NextEpoch:     epoch + 1,
		PreviousEpoch: previous,
	})
}

type healthHandlers struct {
	db     *database.Client
	logger *log.Logger
}

// handleHealth serves GET /health with the database connection pool's
// health, so an operator or load balancer can probe liveness without
// relying on a successful cosign round-trip.
func (h *healthHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := h.db.Health(r.Context())
	if err != nil {
		h.logger.Printf("health check failed: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type testStateHandlers struct {
	state *validatorstate.State
}

// handleSetState serves POST /test/state, registered only when the server
// is started with test routes enabled: force-sets epoch, block, and/or role.
func (h *testStateHandlers) handleSetState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Epoch string `json:"epoch"`
		Block string `json:"block"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Epoch != "" {
		epoch, err := strconv.ParseUint(body.Epoch, 10, 64)
		if err != nil {
			writeJSONError(w, "invalid epoch", http.StatusBadRequest)
			return
		}
		h.state.SetEpoch(epoch)
	}
	if body.Block != "" {
		block, err := strconv.ParseUint(body.Block, 10, 64)
		if err != nil {
			writeJSONError(w, "invalid block", http.StatusBadRequest)
			return
		}
		h.state.SetBlock(block)
	}
	if body.Role != "" {
		role, err := parseRole(body.Role)
		if err != nil {
			writeJSONError(w, "invalid role", http.StatusBadRequest)
			return
		}
		h.state.SetRole(role)
	}

	w.WriteHeader(http.StatusOK)
}

func parseRole(s string) (validatorstate.Role, error) {
	switch s {
	case "leader":
		return validatorstate.RoleLeader, nil
	case "cosigner":
		return validatorstate.RoleCosigner, nil
	case "idle":
		return validatorstate.RoleIdle, nil
	default:
		return 0, errors.New("unknown role: " + s)
	}
}
