package wecom

import (
	"io"
	"log/slog"
	"net/http"
)

// ackBody is the literal acknowledgement the platform expects on POST.
// Anything slower or different makes the platform retry the delivery.
const ackBody = "success"

// CallbackHandler serves the platform callback URL. GET is the one-time
// ownership challenge; POST is an encrypted message delivery. All state is
// request-scoped.
type CallbackHandler struct {
	token   string
	codec   *Codec
	deliver func(*InboundMessage)
}

// NewCallbackHandler creates a handler that verifies with token, decrypts
// with codec and hands decrypted messages to deliver. deliver must not
// block: the acknowledgement is written before any downstream work runs.
func NewCallbackHandler(token string, codec *Codec, deliver func(*InboundMessage)) *CallbackHandler {
	return &CallbackHandler{token: token, codec: codec, deliver: deliver}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleChallenge(w, r)
	case http.MethodPost:
		h.handleDeliver(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleChallenge answers the verification handshake: verify the signature
// over the encrypted echostr, decrypt it, and echo the plaintext verbatim.
func (h *CallbackHandler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	signature := q.Get("msg_signature")
	timestamp := q.Get("timestamp")
	nonce := q.Get("nonce")
	echostr := q.Get("echostr")

	if signature == "" || timestamp == "" || nonce == "" || echostr == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := VerifySignature(h.token, signature, timestamp, nonce, echostr); err != nil {
		slog.Warn("Callback challenge rejected", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	plain, err := h.codec.Decrypt(echostr)
	if err != nil {
		slog.Warn("Callback challenge decrypt failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	slog.Info("Callback URL verified")
	w.WriteHeader(http.StatusOK)
	w.Write(plain)
}

// handleDeliver authenticates and decrypts a pushed message, hands it off,
// and acknowledges immediately. Downstream errors never change the
// response: the platform got its ack and must not redeliver.
func (h *CallbackHandler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	signature := q.Get("msg_signature")
	timestamp := q.Get("timestamp")
	nonce := q.Get("nonce")

	if signature == "" || timestamp == "" || nonce == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	encrypted, err := ParseCallbackBody(body)
	if err != nil {
		slog.Warn("Callback body malformed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := VerifySignature(h.token, signature, timestamp, nonce, encrypted); err != nil {
		slog.Warn("Callback delivery rejected", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	plain, err := h.codec.Decrypt(encrypted)
	if err != nil {
		slog.Warn("Callback delivery decrypt failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	msg, err := ParseMessage(plain)
	if err != nil {
		slog.Warn("Callback message unparseable", "error", err)
		// Still ack: the envelope was authentic, retrying won't help.
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, ackBody)
		return
	}

	if h.deliver != nil {
		h.deliver(msg)
	}

	w.WriteHeader(http.StatusOK)
	io.WriteString(w, ackBody)
}
