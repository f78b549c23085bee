package api

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/config"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/ownership"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/transition"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/keys"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/ledger"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/registry"
)

type testSigner struct {
	keyID string
	pem   string
	priv  ed25519.PrivateKey
}

func newTestSigner(t *testing.T, keyID string) testSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key %s: %v", keyID, err)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public key %s: %v", keyID, err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return testSigner{keyID: keyID, pem: string(block), priv: priv}
}

func (s testSigner) participant(req *transition.Request, role transition.Role) transition.Participant {
	sig := ed25519.Sign(s.priv, req.PayloadBytes())
	return transition.Participant{
		KeyID:        s.keyID,
		Role:         role,
		Signature:    base64.StdEncoding.EncodeToString(sig),
		PublicKeyPEM: s.pem,
	}
}

func freshRequest(buyer testSigner, certHash, editionHash string) *transition.Request {
	req := &transition.Request{
		CertificateHash: certHash,
		EditionHash:     editionHash,
		TransactionData: `{"deed":"` + certHash + "/" + editionHash + `"}`,
	}
	req.Participants = []transition.Participant{buyer.participant(req, transition.RoleBuyer)}
	return req
}

func handoverRequest(seller, buyer testSigner, certHash, editionHash string) *transition.Request {
	req := &transition.Request{
		CertificateHash: certHash,
		EditionHash:     editionHash,
		TransactionData: `{"deed":"` + certHash + "/" + editionHash + `"}`,
	}
	req.Participants = []transition.Participant{
		seller.participant(req, transition.RoleSeller),
		buyer.participant(req, transition.RoleBuyer),
	}
	return req
}

func newTestServer(t *testing.T) (*httptest.Server, *registry.Hub) {
	t.Helper()
	sub := ledger.NewMemSubstrate()
	t.Cleanup(func() { sub.Close() })
	hub := registry.NewHub()
	svc := registry.New(sub, ownership.NewValidator(keys.Embedded{}, 2), hub)
	srv := httptest.NewServer(NewRouter(svc, hub, config.Config{MaxBodyBytes: 1 << 20}))
	t.Cleanup(srv.Close)
	return srv, hub
}

func doPost(t *testing.T, url string, body []byte) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func doGet(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return m
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func errorField(t *testing.T, body map[string]any, field string) string {
	t.Helper()
	env, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in %v", body)
	}
	s, _ := env[field].(string)
	return s
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := doGet(t, srv.URL+"/v1/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestMeta(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := doGet(t, srv.URL+"/v1/meta")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	caps, ok := body["capabilities"].(map[string]any)
	if !ok {
		t.Fatalf("no capabilities in %v", body)
	}
	if caps["canonical_json"] != "RFC8785-JCS" {
		t.Fatalf("capabilities = %v", caps)
	}
	algos, ok := caps["signature_algos"].([]any)
	if !ok || len(algos) != 4 {
		t.Fatalf("signature_algos = %v", caps["signature_algos"])
	}
}
