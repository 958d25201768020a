package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/msgwire"
	msgerrors "github.com/wippyai/msgwire/errors"
	"github.com/wippyai/msgwire/hexcodec"
	"github.com/wippyai/msgwire/internal/fixtures"
	"github.com/wippyai/msgwire/message"
	"github.com/wippyai/msgwire/wire"
)

type encoderFunc func(context.Context, *message.Message) ([]byte, error)

func (f encoderFunc) Encode(ctx context.Context, m *message.Message) ([]byte, error) {
	return f(ctx, m)
}

func failing(err error) msgwire.Encoder {
	return encoderFunc(func(context.Context, *message.Message) ([]byte, error) { return nil, err })
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" && strings.HasPrefix(strings.TrimSpace(body), "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestEncode(t *testing.T) {
	s := New(msgwire.NewNative())

	rec := do(t, s, http.MethodPost, "/v1/encode", fixtures.GroupKeyboardJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[hexBody](t, rec).Hex; got != fixtures.GroupKeyboardHex {
		t.Errorf("got  %s\nwant %s", got, fixtures.GroupKeyboardHex)
	}
}

func TestEncode_YAML(t *testing.T) {
	s := New(msgwire.NewNative())
	doc := "message_type: group\npeer_id: 123\nseq: 12345678\nrandom_number: 123456789\nmessage:\n  - type: text\n    data:\n      text: 你好世界\n"

	rec := do(t, s, http.MethodPost, "/v1/encode", doc)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[hexBody](t, rec).Hex; got != fixtures.GroupTextHex {
		t.Errorf("got  %s\nwant %s", got, fixtures.GroupTextHex)
	}
}

func TestEncode_Random(t *testing.T) {
	s := New(msgwire.NewNative(), WithRand(rand.New(rand.NewPCG(1, 2))))

	want := fixtures.GroupKeyboard().WithRandomFields(rand.New(rand.NewPCG(1, 2)))
	b, err := wire.NewEncoder().Encode(&want)
	if err != nil {
		t.Fatal(err)
	}

	rec := do(t, s, http.MethodPost, "/v1/encode?random=true", fixtures.GroupKeyboardJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decodeBody[hexBody](t, rec).Hex
	if got == fixtures.GroupKeyboardHex {
		t.Fatal("random fields were not applied")
	}
	decoded, err := wire.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(&want) {
		t.Error("reference encoding does not round trip")
	}
	if want := hexcodec.ToHex(b); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestEncode_RandomFillsMissingFields(t *testing.T) {
	s := New(msgwire.NewNative())
	doc := `{"message_type":"user","peer_id":10001,"message":[{"type":"text","data":{"text":"hi"}}]}`

	if rec := do(t, s, http.MethodPost, "/v1/encode", doc); rec.Code != http.StatusBadRequest {
		t.Fatalf("without random: status = %d, want 400", rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/v1/encode?random=true", doc)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	b, err := hexcodec.FromHex(decodeBody[hexBody](t, rec).Hex)
	if err != nil {
		t.Fatal(err)
	}
	m, err := wire.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if m.PeerID != 10001 || m.Elements[0].(message.Text).Content != "hi" {
		t.Errorf("decoded %+v", m)
	}
}

func TestDecode(t *testing.T) {
	s := New(msgwire.NewNative())

	rec := do(t, s, http.MethodPost, "/v1/decode", `{"hex":"`+strings.ToUpper(fixtures.GroupKeyboardHex)+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	m, err := message.ParseJSON(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if !m.Equal(fixtures.GroupKeyboard()) {
		t.Errorf("decoded message differs: %s", rec.Body)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		enc    msgwire.Encoder
		target string
		body   string
		status int
		kind   msgerrors.Kind
	}{
		{
			name:   "malformed document",
			target: "/v1/encode",
			body:   `{"message_type":`,
			status: http.StatusBadRequest,
			kind:   msgerrors.KindInvalidData,
		},
		{
			name:   "empty elements",
			target: "/v1/encode",
			body:   `{"message_type":"user","peer_id":1,"seq":1,"random_number":2,"message":[]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "field too large",
			enc:    msgwire.NewNative(wire.WithMaxFieldSize(8)),
			target: "/v1/encode",
			body:   `{"message_type":"user","peer_id":1,"seq":1,"random_number":2,"message":[{"type":"text","data":{"text":"far too long for the limit"}}]}`,
			status: http.StatusUnprocessableEntity,
			kind:   msgerrors.KindFieldTooLarge,
		},
		{
			name:   "engine failure",
			enc:    failing(msgerrors.EngineFailure("encode_from_json returned null", nil)),
			target: "/v1/encode",
			body:   fixtures.GroupKeyboardJSON,
			status: http.StatusBadGateway,
			kind:   msgerrors.KindEngineFailure,
		},
		{
			name:   "engine failure caused by bad hex",
			enc:    failing(msgerrors.EngineFailure("guest output", msgerrors.OddLength(3))),
			target: "/v1/encode",
			body:   fixtures.GroupKeyboardJSON,
			status: http.StatusBadGateway,
			kind:   msgerrors.KindEngineFailure,
		},
		{
			name:   "guest timeout",
			enc:    failing(msgerrors.Timeout("encode_from_json", context.DeadlineExceeded)),
			target: "/v1/encode",
			body:   fixtures.GroupKeyboardJSON,
			status: http.StatusGatewayTimeout,
			kind:   msgerrors.KindTimeout,
		},
		{
			name:   "unstructured failure",
			enc:    failing(errors.New("boom")),
			target: "/v1/encode",
			body:   fixtures.GroupKeyboardJSON,
			status: http.StatusInternalServerError,
		},
		{
			name:   "bad hex",
			target: "/v1/decode",
			body:   `{"hex":"0a0g"}`,
			status: http.StatusBadRequest,
			kind:   msgerrors.KindInvalidCharacter,
		},
		{
			name:   "odd hex",
			target: "/v1/decode",
			body:   `{"hex":"0a0"}`,
			status: http.StatusBadRequest,
			kind:   msgerrors.KindOddLength,
		},
		{
			name:   "not a packet",
			target: "/v1/decode",
			body:   `{"hex":"2001"}`,
			status: http.StatusBadRequest,
			kind:   msgerrors.KindFieldMissing,
		},
		{
			name:   "decode body not JSON",
			target: "/v1/decode",
			body:   `{"hex":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.enc
			if enc == nil {
				enc = msgwire.NewNative()
			}
			rec := do(t, New(enc), http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			body := decodeBody[errorBody](t, rec)
			if body.Error == "" {
				t.Error("error message missing")
			}
			if tt.kind != "" && body.Kind != string(tt.kind) {
				t.Errorf("kind = %q, want %q", body.Kind, tt.kind)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{msgerrors.FieldMissing(msgerrors.PhaseValidate, nil, "message"), http.StatusBadRequest},
		{msgerrors.UnsupportedVariant([]string{"elements", "0"}, "*x"), http.StatusUnprocessableEntity},
		{msgerrors.Unterminated(4, 8), http.StatusBadGateway},
		{msgerrors.Closed("pool"), http.StatusBadGateway},
		{msgerrors.Load("compile", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(msgwire.NewNative(), WithRegistry(reg))

	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec)["status"]; got != "ok" {
		t.Errorf("status = %q", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("request id header missing")
	}

	rec = do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "msgwire_requests_total") {
		t.Error("request counter not exported")
	}
}

func TestBodyLimit(t *testing.T) {
	s := New(msgwire.NewNative(), WithBodyLimit("16B"))
	rec := do(t, s, http.MethodPost, "/v1/encode", fixtures.GroupKeyboardJSON)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s := New(msgwire.NewNative(), WithRateLimit(1))
	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
}
