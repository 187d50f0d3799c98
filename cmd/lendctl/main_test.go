package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"crosslend/crypto"
)

func runCapture(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String())
}

func TestEncodeDecodeMessage(t *testing.T) {
	code, out, errOut := runCapture(t, "encode-payload", "-target-chain", "1", "-amount", "4000000000", "-decimals", "9", "-remaining", "6000000000")
	if code != 0 {
		t.Fatalf("encode exit %d: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "0013") {
		t.Fatalf("frame should start with a 19 byte length prefix, got %s", out)
	}

	code, out, errOut = runCapture(t, "decode-message", "-hex", out)
	if code != 0 {
		t.Fatalf("decode exit %d: %s", code, errOut)
	}
	var decoded decodedMessage
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TargetChainID != 1 || decoded.CollateralAmount != 4_000_000_000 || decoded.CollateralDecimals != 9 || decoded.RemainingCollateralAmount != 6_000_000_000 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestDecodeMessageRejectsLengthMismatch(t *testing.T) {
	code, _, errOut := runCapture(t, "decode-message", "-hex", "0005aabb")
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(errOut, "declared") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestMintToken(t *testing.T) {
	original := now
	now = func() time.Time { return time.Now() }
	defer func() { now = original }()

	var subject crypto.Address
	subject[19] = 9
	code, out, errOut := runCapture(t, "mint-token", "-secret", "s3cret", "-subject", subject.String(), "-issuer", "lendingd", "-ttl", "10m")
	if code != 0 {
		t.Fatalf("mint exit %d: %s", code, errOut)
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(out, claims, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil },
		jwt.WithIssuer("lendingd"), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != subject.String() {
		t.Fatalf("subject = %s", claims.Subject)
	}
}

func TestKeygenWritesKeystore(t *testing.T) {
	t.Setenv(keystorePassphraseEnv, "passphrase")
	path := filepath.Join(t.TempDir(), "operator.json")
	code, out, errOut := runCapture(t, "keygen", "-out", path)
	if code != 0 {
		t.Fatalf("keygen exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("keystore missing: %v", err)
	}
	key, err := crypto.LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	if key.PubKey().Address().String() != out {
		t.Fatalf("address mismatch: %s vs %s", key.PubKey().Address(), out)
	}
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := runCapture(t, "frobnicate")
	if code != 1 || !strings.Contains(errOut, "Unknown command") {
		t.Fatalf("code=%d stderr=%q", code, errOut)
	}
}

func TestPushPriceCallsService(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/operator/prices" || r.Header.Get("Authorization") != "Bearer op-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	code, out, errOut := runCapture(t, "push-price", "-endpoint", srv.URL, "-token", "op-token", "-feed", "sol/usd", "-rate", "42.5")
	if code != 0 {
		t.Fatalf("push-price exit %d: %s", code, errOut)
	}
	if out != "sol/usd = 42.5" {
		t.Fatalf("stdout = %q", out)
	}
	if body["feed"] != "sol/usd" || body["rate"] != "42.5" {
		t.Fatalf("request body = %v", body)
	}
}
