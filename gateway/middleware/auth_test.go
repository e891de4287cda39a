package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/observability/logging"
)

var testCaller = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type denyCounter map[string]int

func (d denyCounter) RecordAuthDenied(reason string) { d[reason]++ }

func callerEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFrom(r.Context())
		if !ok {
			t.Fatalf("caller missing from context")
		}
		_, _ = w.Write([]byte(caller.Hex()))
	})
}

func TestAuthenticatorBindsSubject(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: "secret", Issuer: "presaled", Audience: "presale"}, nil, nil)
	token, err := auth.IssueToken(testCaller, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/claim", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	auth.Middleware(callerEcho(t)).ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected success, got %d: %s", res.Code, res.Body.String())
	}
	if res.Body.String() != testCaller.Hex() {
		t.Fatalf("unexpected caller %s", res.Body.String())
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	denials := denyCounter{}
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: "secret", Issuer: "presaled"}, nil, denials)
	other := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: "other", Issuer: "presaled"}, nil, nil)
	wrongIssuer := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: "secret", Issuer: "someone"}, nil, nil)

	forged, _ := other.IssueToken(testCaller, time.Minute)
	expired, _ := auth.IssueToken(testCaller, -time.Hour)
	mismatched, _ := wrongIssuer.IssueToken(testCaller, time.Minute)

	cases := map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"forged":  "Bearer " + forged,
		"expired": "Bearer " + expired,
		"issuer":  "Bearer " + mismatched,
		"garbage": "Bearer not-a-token",
	}
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/claim", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, res.Code)
		}
	}
	if denials["missing_token"] != 2 || denials["invalid_token"] != 3 || denials["invalid_claims"] != 1 {
		t.Fatalf("unexpected denial counts: %v", denials)
	}
}

func TestAuthenticatorDisabledUsesCallerHeader(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/claim", nil)
	req.Header.Set("X-Caller", testCaller.Hex())
	res := httptest.NewRecorder()
	auth.Middleware(callerEcho(t)).ServeHTTP(res, req)
	if res.Code != http.StatusOK || res.Body.String() != testCaller.Hex() {
		t.Fatalf("unexpected response %d %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	auth.Middleware(callerEcho(t)).ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/claim", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without caller header, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsZeroAddressCaller(t *testing.T) {
	denials := denyCounter{}
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: "secret"}, nil, denials)
	token, err := auth.IssueToken(common.Address{}, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/contribute", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized || denials["invalid_subject"] != 1 {
		t.Fatalf("expected zero subject rejection, got %d %v", res.Code, denials)
	}

	open := NewAuthenticator(AuthConfig{}, nil, nil)
	req = httptest.NewRequest(http.MethodPost, "/v1/contribute", nil)
	req.Header.Set("X-Caller", common.Address{}.Hex())
	res = httptest.NewRecorder()
	open.Middleware(handler).ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected zero X-Caller rejection, got %d", res.Code)
	}
}

func TestAuthenticatorMasksRejectedToken(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "presaled", "test", slog.LevelInfo)
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: "secret"}, logger, nil)
	other := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: "other"}, nil, nil)
	forged, err := other.IssueToken(testCaller, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/claim", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	res := httptest.NewRecorder()
	auth.Middleware(callerEcho(t)).ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if bytes.Contains(buf.Bytes(), []byte(forged)) {
		t.Fatalf("rejected token leaked into logs: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(logging.RedactedValue)) {
		t.Fatalf("expected masked token in logs: %s", buf.String())
	}
}
