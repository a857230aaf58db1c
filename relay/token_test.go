package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestStaticToken(t *testing.T) {
	v := NewStaticToken(testSecret)
	ctx := context.Background()
	if !v.Verify(ctx, testSecret) {
		t.Error("matching token rejected")
	}
	for _, bad := range []string{"", "ksef", testSecret + "x"} {
		if v.Verify(ctx, bad) {
			t.Errorf("token %q accepted", bad)
		}
	}
	if NewStaticToken("").Verify(ctx, "") {
		t.Error("empty secret must accept nothing")
	}
}

func TestSignedToken_RoundTrip(t *testing.T) {
	now := testNow
	s, err := NewSignedToken(testKey, time.Hour, WithTokenClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewSignedToken: %v", err)
	}
	tok, at, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !at.Equal(testNow) {
		t.Errorf("render time = %v, want %v", at, testNow)
	}
	if !s.Verify(context.Background(), tok) {
		t.Fatal("fresh token rejected")
	}

	now = testNow.Add(2 * time.Hour)
	if s.Verify(context.Background(), tok) {
		t.Error("expired token accepted")
	}
}

func TestSignedToken_Rejects(t *testing.T) {
	clock := WithTokenClock(func() time.Time { return testNow })
	s, _ := NewSignedToken(testKey, time.Hour, clock)

	other, _ := NewSignedToken("ffffffffffffffffffffffffffffffff", time.Hour, clock)
	foreign, _, _ := other.Issue()

	wrongIss, _ := NewSignedToken(testKey, time.Hour, clock, WithIssuer("someone-else"))
	wrongIssTok, _, _ := wrongIss.Issue()

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, FormClaims{
		RenderedAt:       testNow.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: DefaultTokenIssuer},
	}).SignedString([]byte(testKey))

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, FormClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultTokenIssuer,
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"empty":         "",
		"garbage":       "not.a.jwt",
		"other key":     foreign,
		"wrong issuer":  wrongIssTok,
		"no expiry":     noExp,
		"alg none":      unsigned,
		"static secret": testSecret,
	}
	for name, tok := range tests {
		if s.Verify(context.Background(), tok) {
			t.Errorf("%s: token accepted", name)
		}
	}
}

func TestNewSignedToken_WeakKey(t *testing.T) {
	if _, err := NewSignedToken("short", time.Hour); !errors.Is(err, ErrWeakKey) {
		t.Errorf("err = %v, want ErrWeakKey", err)
	}
}

func TestSignedToken_IssueHandler(t *testing.T) {
	s, _ := NewSignedToken(testKey, time.Hour, WithTokenClock(func() time.Time { return testNow }))
	rec := httptest.NewRecorder()
	s.IssueHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form-token", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("token response must not be cached")
	}
	var got IssuedToken
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Timestamp != testNow.Unix() {
		t.Errorf("timestamp = %d, want %d", got.Timestamp, testNow.Unix())
	}
	if !s.Verify(context.Background(), got.Token) {
		t.Error("issued token does not verify")
	}
}

func TestRelay_WithSignedTokens(t *testing.T) {
	signer, _ := NewSignedToken(testKey, time.Hour, WithTokenClock(func() time.Time { return testNow }))
	box := &outbox{}
	h, err := New(Config{
		Recipient: "office@ksefinvoice.pl",
		Sender:    "no-reply@ksefinvoice.pl",
		Tokens:    signer,
		Transport: box,
		Now:       func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tok, _, _ := signer.Issue()
	form := validContact()
	form.Set("spam_token", tok)
	if res := post(t, h, form); !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}

	form.Set("spam_token", testSecret)
	if res := post(t, h, form); res.Message != MsgBadToken {
		t.Errorf("result = %+v, want %q", res, MsgBadToken)
	}
}
