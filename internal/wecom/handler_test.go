package wecom

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const testToken = "QDG6eK"

func signedQuery(token, payload string) string {
	timestamp := "1409659589"
	nonce := "263014780"
	sig := Signature(token, timestamp, nonce, payload)
	return fmt.Sprintf("msg_signature=%s&timestamp=%s&nonce=%s",
		url.QueryEscape(sig), timestamp, nonce)
}

func TestChallengeEchoesPlaintext(t *testing.T) {
	codec := newTestCodec(t, "corp1")
	h := NewCallbackHandler(testToken, codec, nil)

	echo, err := codec.Encrypt([]byte("1616140317555161061"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	target := "/callback?" + signedQuery(testToken, echo) + "&echostr=" + url.QueryEscape(echo)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "1616140317555161061" {
		t.Errorf("expected decrypted echostr, got %q", body)
	}
}

func TestChallengeRejectsBadSignature(t *testing.T) {
	codec := newTestCodec(t, "corp1")
	h := NewCallbackHandler(testToken, codec, nil)

	echo, _ := codec.Encrypt([]byte("echo"))
	// Signature computed with the wrong token.
	target := "/callback?" + signedQuery("wrong-token", echo) + "&echostr=" + url.QueryEscape(echo)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("failure responses must have an empty body, got %q", rec.Body.String())
	}
}

func TestChallengeRejectsMissingParams(t *testing.T) {
	codec := newTestCodec(t, "corp1")
	h := NewCallbackHandler(testToken, codec, nil)

	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func postDelivery(h http.Handler, token, encrypted string) *httptest.ResponseRecorder {
	body := fmt.Sprintf("<xml><Encrypt><![CDATA[%s]]></Encrypt></xml>", encrypted)
	target := "/callback?" + signedQuery(token, encrypted)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDeliveryAcksAndDelivers(t *testing.T) {
	codec := newTestCodec(t, "corp1")

	var delivered *InboundMessage
	h := NewCallbackHandler(testToken, codec, func(msg *InboundMessage) {
		delivered = msg
	})

	plain := "<xml>" +
		"<ToUserName><![CDATA[corp1]]></ToUserName>" +
		"<FromUserName><![CDATA[zhangsan]]></FromUserName>" +
		"<CreateTime>1409659813</CreateTime>" +
		"<MsgType><![CDATA[text]]></MsgType>" +
		"<Content><![CDATA[hello there]]></Content>" +
		"<MsgId>4561255354251345929</MsgId>" +
		"</xml>"
	encrypted, err := codec.Encrypt([]byte(plain))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	rec := postDelivery(h, testToken, encrypted)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "success" {
		t.Errorf("expected literal success ack, got %q", body)
	}

	if delivered == nil {
		t.Fatal("deliver callback not invoked")
	}
	if delivered.FromUser != "zhangsan" {
		t.Errorf("expected sender zhangsan, got %q", delivered.FromUser)
	}
	if delivered.Content != "hello there" {
		t.Errorf("expected content preserved, got %q", delivered.Content)
	}
	if delivered.MsgID != "4561255354251345929" {
		t.Errorf("expected msg id preserved, got %q", delivered.MsgID)
	}
}

func TestDeliveryRejectsBadSignature(t *testing.T) {
	codec := newTestCodec(t, "corp1")

	called := false
	h := NewCallbackHandler(testToken, codec, func(*InboundMessage) { called = true })

	encrypted, _ := codec.Encrypt([]byte("<xml><Content>x</Content></xml>"))
	rec := postDelivery(h, "wrong-token", encrypted)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("failure responses must have an empty body, got %q", rec.Body.String())
	}
	if called {
		t.Error("deliver must not run for rejected requests")
	}
}

func TestDeliveryRejectsUndecryptablePayload(t *testing.T) {
	codec := newTestCodec(t, "corp1")
	foreign := newTestCodec(t, "another-corp")

	called := false
	h := NewCallbackHandler(testToken, codec, func(*InboundMessage) { called = true })

	// Authentic signature over a payload encrypted for another receiver.
	encrypted, _ := foreign.Encrypt([]byte("<xml><Content>x</Content></xml>"))
	rec := postDelivery(h, testToken, encrypted)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if called {
		t.Error("deliver must not run for rejected requests")
	}
}

func TestDeliveryAcksUnparseablePlaintext(t *testing.T) {
	codec := newTestCodec(t, "corp1")

	called := false
	h := NewCallbackHandler(testToken, codec, func(*InboundMessage) { called = true })

	// Authenticated and decryptable, but not message XML. Redelivery would
	// fail the same way, so the handler still acks.
	encrypted, _ := codec.Encrypt([]byte("definitely not xml"))
	rec := postDelivery(h, testToken, encrypted)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "success" {
		t.Errorf("expected success ack, got %q", body)
	}
	if called {
		t.Error("deliver must not run for unparseable messages")
	}
}

func TestUnsupportedMethod(t *testing.T) {
	codec := newTestCodec(t, "corp1")
	h := NewCallbackHandler(testToken, codec, nil)

	req := httptest.NewRequest(http.MethodPut, "/callback", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
