package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/bundlr-network/validator/pkg/arweave"
	"github.com/bundlr-network/validator/pkg/bundle"
	"github.com/bundlr-network/validator/pkg/config"
	"github.com/bundlr-network/validator/pkg/contractgateway"
	"github.com/bundlr-network/validator/pkg/database"
	"github.com/bundlr-network/validator/pkg/validatorstate"
)

type mockDoer struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestContractSyncJob_AdvancesEpochAndRoleWhenActivated(t *testing.T) {
	// A single nominated validator is deterministically its own epoch
	// leader, since leaderelect.ElectLeader has nobody else to pick.
	doer := &mockDoer{handler: func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/vote") {
			return jsonResponse(200, `{"status":"OK"}`), nil
		}
		return jsonResponse(200, `{"epoch":{"seq":1,"height":1},"nominated_validators":["own-addr"],"slash_proposals":[]}`), nil
	}}
	gw := contractgateway.New("https://contract.example", doer)
	state := validatorstate.New()
	state.SetBlock(1)

	job := ContractSyncJob(gw, state, "own-addr")
	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}

	if state.Epoch() != 1 {
		t.Fatalf("expected epoch 1, got %d", state.Epoch())
	}
	if state.Role() != validatorstate.RoleLeader {
		t.Fatalf("expected RoleLeader, got %s", state.Role())
	}
}

func TestContractSyncJob_SetsCosignerOrLeaderWhenNominatedAmongOthers(t *testing.T) {
	doer := &mockDoer{handler: func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/vote") {
			return jsonResponse(200, `{"status":"OK"}`), nil
		}
		return jsonResponse(200, `{"epoch":{"seq":1,"height":1},"nominated_validators":["own-addr","validator-b","validator-c"],"slash_proposals":[]}`), nil
	}}
	gw := contractgateway.New("https://contract.example", doer)
	state := validatorstate.New()
	state.SetBlock(1)

	job := ContractSyncJob(gw, state, "own-addr")
	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}

	if state.Role() != validatorstate.RoleLeader && state.Role() != validatorstate.RoleCosigner {
		t.Fatalf("expected RoleLeader or RoleCosigner for a nominated validator, got %s", state.Role())
	}
}

func TestContractSyncJob_SetsIdleWhenNotNominated(t *testing.T) {
	doer := &mockDoer{handler: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"epoch":{"seq":1,"height":1},"nominated_validators":["someone-else"],"slash_proposals":[]}`), nil
	}}
	gw := contractgateway.New("https://contract.example", doer)
	state := validatorstate.New()
	state.SetBlock(1)

	job := ContractSyncJob(gw, state, "own-addr")
	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}

	if state.Role() != validatorstate.RoleIdle {
		t.Fatalf("expected RoleIdle, got %s", state.Role())
	}
}

func TestContractSyncJob_DoesNotAdvanceBeforeActivationHeight(t *testing.T) {
	doer := &mockDoer{handler: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"epoch":{"seq":1,"height":10},"nominated_validators":[],"slash_proposals":[]}`), nil
	}}
	gw := contractgateway.New("https://contract.example", doer)
	state := validatorstate.New()
	state.SetBlock(0)

	job := ContractSyncJob(gw, state, "own-addr")
	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}

	if state.Epoch() != 0 {
		t.Fatalf("expected epoch to stay 0, got %d", state.Epoch())
	}
}

func TestContractSyncJob_VotesForOpenUnvotedProposal(t *testing.T) {
	var votedPath string
	doer := &mockDoer{handler: func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodPost {
			votedPath = req.URL.Path
			return jsonResponse(200, `{"status":"OK"}`), nil
		}
		return jsonResponse(200, `{"epoch":{"seq":0,"height":0},"nominated_validators":[],"slash_proposals":[{"id":"prop-1","owner":"someone-else","status":"open","voted":[]}]}`), nil
	}}
	gw := contractgateway.New("https://contract.example", doer)
	state := validatorstate.New()

	job := ContractSyncJob(gw, state, "own-addr")
	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}
	if votedPath != "/validators/vote" {
		t.Fatalf("expected a vote to be cast, got path %q", votedPath)
	}
}

func TestContractSyncJob_SkipsProposalAlreadyVotedOrOwn(t *testing.T) {
	calls := 0
	doer := &mockDoer{handler: func(req *http.Request) (*http.Response, error) {
		calls++
		if req.Method == http.MethodPost {
			t.Fatal("expected no vote to be cast")
		}
		return jsonResponse(200, `{"epoch":{"seq":0,"height":0},"nominated_validators":[],"slash_proposals":[{"id":"prop-1","owner":"own-addr","status":"open","voted":[]},{"id":"prop-2","owner":"someone-else","status":"open","voted":["own-addr"]}]}`), nil
	}}
	gw := contractgateway.New("https://contract.example", doer)
	state := validatorstate.New()

	job := ContractSyncJob(gw, state, "own-addr")
	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 HTTP call (the state fetch), got %d", calls)
	}
}

func TestToBundleTags_PreservesNameValuePairs(t *testing.T) {
	tags := toBundleTags([]arweave.TransactionTag{
		{Name: "Bundle-Format", Value: "binary"},
		{Name: "Bundle-Version", Value: "2.0.0"},
	})
	if len(tags) != 2 || tags[0].Name != "Bundle-Format" || tags[1].Value != "2.0.0" {
		t.Fatalf("unexpected tags: %+v", tags)
	}
	if !bundle.IsBundle(tags) {
		t.Fatal("expected converted tags to be recognized as a bundle")
	}
}

func TestMemSink_WriteAtGrowsAndPreservesOffsets(t *testing.T) {
	var sink memSink
	if _, err := sink.WriteAt([]byte("world"), 5); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if _, err := sink.WriteAt([]byte("hello"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if string(sink.buf) != "helloworld" {
		t.Fatalf("expected %q, got %q", "helloworld", sink.buf)
	}
}

// testDatabase connects to VALIDATOR_TEST_DB, skipping the test when unset,
// since BundlerValidationJob's repositories need a real *database.Client.
func testDatabase(t *testing.T) *database.Client {
	t.Helper()
	connStr := os.Getenv("VALIDATOR_TEST_DB")
	if connStr == "" {
		t.Skip("VALIDATOR_TEST_DB not set; skipping test requiring a database")
	}

	cfg := &config.Config{DatabaseURL: connStr, DatabaseMaxConns: 5, DatabaseMinConns: 1, DatabaseMaxIdleTime: 60, DatabaseMaxLifetime: 60}
	client, err := database.NewClient(cfg)
	if err != nil {
		t.Fatalf("database.NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.MigrateUp(context.Background()); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	return client
}

// encodeMinimalBundle builds the smallest valid ANS-104 header bytes.ListItems
// can decode: a 32-byte item count, one 64-byte (size, id) entry, and the
// item's raw payload immediately after.
func encodeMinimalBundle(t *testing.T, itemID string, payload []byte) []byte {
	t.Helper()
	idBytes, err := base64.RawURLEncoding.DecodeString(itemID)
	if err != nil || len(idBytes) != 32 {
		t.Fatalf("itemID must be a base64url-nopad encoded 32-byte id: %v", err)
	}

	header := make([]byte, 32)
	binary.LittleEndian.PutUint64(header[0:8], 1) // item count

	itemHeader := make([]byte, 64)
	binary.LittleEndian.PutUint64(itemHeader[0:8], uint64(len(payload)))
	copy(itemHeader[32:64], idBytes)

	out := append(header, itemHeader...)
	return append(out, payload...)
}

func randomBase64URLID(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func TestBundlerValidationJob_ValidatesItemsFromADecodedBundle(t *testing.T) {
	client := testDatabase(t)
	txs := database.NewTransactionRepository(client)
	bundles := database.NewBundleRepository(client)

	itemID := randomBase64URLID(t)
	tx, err := txs.Create(context.Background(), database.NewTransaction{
		ID: itemID, Epoch: 0, BlockPromised: 10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	body := encodeMinimalBundle(t, tx.ID, []byte("payload"))

	doer := &mockDoer{handler: func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/graphql"):
			return jsonResponse(200, `{"data":{"transactions":{"edges":[
				{"node":{"id":"bundle-tx","tags":[{"name":"Bundle-Format","value":"binary"},{"name":"Bundle-Version","value":"2.0.0"}],"block":{"height":20}}}
			]}}}`), nil
		case strings.Contains(req.URL.Path, "/offset"):
			return jsonResponse(200, fmt.Sprintf(`{"offset":"%d","size":"%d"}`, len(body)-1, len(body))), nil
		case strings.Contains(req.URL.Path, "/chunk/"):
			return jsonResponse(200, fmt.Sprintf(`{"chunk":"%s"}`, base64.RawURLEncoding.EncodeToString(body))), nil
		}
		return jsonResponse(404, ""), nil
	}}
	arClient := arweave.NewClient("https://arweave.net", arweave.WithDoer(doer))

	job := BundlerValidationJob(arClient, txs, bundles, validatorstate.New(), "bundler-addr")
	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}

	updated, err := txs.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !updated.Validated {
		t.Fatal("expected item to be marked validated")
	}

	if _, err := bundles.Get(context.Background(), "bundle-tx"); err != nil {
		t.Fatalf("expected bundle row to be recorded: %v", err)
	}
}
