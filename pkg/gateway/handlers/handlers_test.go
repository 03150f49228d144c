package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/tutor"
	"github.com/fluently/lingua/pkg/core/types"
	"github.com/fluently/lingua/pkg/gateway/auth"
	"github.com/fluently/lingua/pkg/gateway/config"
)

type fakeRunner struct {
	lastReq tutor.TurnRequest
	result  *tutor.TurnResult
	err     error

	history    []types.Turn
	historyErr error
	ended      []string
}

func (f *fakeRunner) RunTurn(ctx context.Context, req tutor.TurnRequest) (*tutor.TurnResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRunner) History(ctx context.Context, sessionID string) ([]types.Turn, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeRunner) EndSession(ctx context.Context, sessionID string) error {
	f.ended = append(f.ended, sessionID)
	return nil
}

type fakeSynth struct {
	lastKey   string
	lastText  string
	lastVoice string
	clip      *types.AudioClip
	err       error
}

func (f *fakeSynth) Synthesize(ctx context.Context, turnKey, text, voice string) (*types.AudioClip, error) {
	f.lastKey, f.lastText, f.lastVoice = turnKey, text, voice
	if f.err != nil {
		return nil, f.err
	}
	return f.clip, nil
}

func testConfig() config.Config {
	return config.Config{
		MaxBodyBytes:     1 << 20,
		SynthesisTimeout: 5 * time.Second,
		WSWriteTimeout:   time.Second,
		WSChunkBytes:     8,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChatHandlerSuccess(t *testing.T) {
	runner := &fakeRunner{result: &tutor.TurnResult{
		SessionID: "s1",
		Created:   true,
		Profile:   types.LanguageProfile{Language: "fr", PersonaName: "Camille"},
		Turn: &types.StructuredTurn{
			Response: types.Reply{TargetText: "Bonjour !", English: "Hello!"},
		},
	}}
	h := &ChatHandler{Config: testConfig(), Orchestrator: runner, Logger: discardLogger()}

	body := `{"sessionId":"s1","language":"fr","message":"bonjour"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.SessionID != "s1" || !resp.Created || resp.Persona != "Camille" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Response.TargetText != "Bonjour !" {
		t.Errorf("turn not round-tripped: %+v", resp.StructuredTurn)
	}
	// The structured turn must be inlined, not nested under a wrapper key.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := raw["correction"]; !ok {
		t.Error("correction not at top level of response body")
	}
	if _, ok := raw["response"]; !ok {
		t.Error("response not at top level of response body")
	}
	if runner.lastReq.Text != "bonjour" || runner.lastReq.Language != "fr" {
		t.Errorf("turn request = %+v", runner.lastReq)
	}
}

func TestChatHandlerAudioAndPrivileged(t *testing.T) {
	runner := &fakeRunner{result: &tutor.TurnResult{SessionID: "s1", Turn: &types.StructuredTurn{}}}
	h := &ChatHandler{Config: testConfig(), Orchestrator: runner, Logger: discardLogger()}

	body := `{"sessionId":"s1","language":"es","audioData":"AQID"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{APIKey: "k", Privileged: true}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if runner.lastReq.Audio == nil || runner.lastReq.Audio.Data != "AQID" {
		t.Errorf("audio not forwarded: %+v", runner.lastReq.Audio)
	}
	if runner.lastReq.Audio.MIMEType != "audio/wav" {
		t.Errorf("default mime = %q, want audio/wav", runner.lastReq.Audio.MIMEType)
	}
	if !runner.lastReq.Privileged {
		t.Error("privileged flag not forwarded")
	}
}

func TestChatHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		runnerErr  error
		wantStatus int
		wantType   core.ErrorType
	}{
		{
			name:       "wrong method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
			wantType:   core.ErrInvalidRequest,
		},
		{
			name:       "bad json",
			method:     http.MethodPost,
			body:       `{"sessionId":`,
			wantStatus: http.StatusBadRequest,
			wantType:   core.ErrInvalidRequest,
		},
		{
			name:       "unknown field",
			method:     http.MethodPost,
			body:       `{"sessionId":"s1","bogus":true}`,
			wantStatus: http.StatusBadRequest,
			wantType:   core.ErrInvalidRequest,
		},
		{
			name:       "unknown language",
			method:     http.MethodPost,
			body:       `{"sessionId":"s1","language":"xx","message":"hi"}`,
			runnerErr:  core.NewInvalidLanguageError("xx"),
			wantStatus: http.StatusBadRequest,
			wantType:   core.ErrInvalidLanguage,
		},
		{
			name:       "vendor failure",
			method:     http.MethodPost,
			body:       `{"sessionId":"s1","language":"fr","message":"hi"}`,
			runnerErr:  core.NewVendorError("generation", io.ErrUnexpectedEOF),
			wantStatus: http.StatusBadGateway,
			wantType:   core.ErrVendor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.runnerErr, result: &tutor.TurnResult{Turn: &types.StructuredTurn{}}}
			h := &ChatHandler{Config: testConfig(), Orchestrator: runner, Logger: discardLogger()}

			req := httptest.NewRequest(tt.method, "/v1/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var env struct {
				Error *core.Error `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("unmarshal error envelope: %v", err)
			}
			if env.Error == nil || env.Error.Type != tt.wantType {
				t.Errorf("error = %+v, want type %s", env.Error, tt.wantType)
			}
		})
	}
}

func TestSessionsHandlerHistory(t *testing.T) {
	runner := &fakeRunner{history: []types.Turn{
		{Role: types.RoleUser, Text: "bonjour"},
		{Role: types.RoleTutor, Text: "Bonjour !"},
	}}
	h := &SessionsHandler{Orchestrator: runner, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.SessionID != "s1" || len(resp.Turns) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestSessionsHandlerNotFound(t *testing.T) {
	runner := &fakeRunner{historyErr: core.NewSessionNotFoundError("nope")}
	h := &SessionsHandler{Orchestrator: runner, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSessionsHandlerDelete(t *testing.T) {
	runner := &fakeRunner{}
	h := &SessionsHandler{Orchestrator: runner, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(runner.ended) != 1 || runner.ended[0] != "s1" {
		t.Errorf("ended = %v", runner.ended)
	}
}

func TestSessionsHandlerMissingID(t *testing.T) {
	h := &SessionsHandler{Orchestrator: &fakeRunner{}, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSpeechHandlerSuccess(t *testing.T) {
	synth := &fakeSynth{clip: &types.AudioClip{
		Format:     types.AudioFormatPCM,
		Data:       []byte{0x01, 0x02, 0x03},
		SampleRate: types.PCMSampleRate,
	}}
	h := &SpeechHandler{Config: testConfig(), Pipeline: synth, ProviderName: "gemini", Logger: discardLogger()}

	body := `{"text":"Bonjour !","voiceName":"fr-premium-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp speechResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Format != "pcm" || resp.SampleRate != types.PCMSampleRate {
		t.Errorf("response = %+v", resp)
	}
	got, err := base64.StdEncoding.DecodeString(resp.AudioData)
	if err != nil || string(got) != "\x01\x02\x03" {
		t.Errorf("audioData = %q (%v)", resp.AudioData, err)
	}
	if synth.lastVoice != "fr-premium-1" || synth.lastText != "Bonjour !" {
		t.Errorf("synthesize call = %q %q", synth.lastVoice, synth.lastText)
	}
	if synth.lastKey == "" {
		t.Error("turn key not derived for stateless request")
	}
}

func TestSpeechHandlerMissingText(t *testing.T) {
	h := &SpeechHandler{Config: testConfig(), Pipeline: &fakeSynth{}, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(`{"voiceName":"v"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSpeechHandlerSynthesisError(t *testing.T) {
	synth := &fakeSynth{err: core.NewSynthesisError("voice service unavailable")}
	h := &SpeechHandler{Config: testConfig(), Pipeline: synth, Logger: discardLogger()}

	body := `{"text":"hola","voiceName":"es-premium-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestStreamHandlerChunksClip(t *testing.T) {
	data := make([]byte, 20) // 8-byte chunks: 8 + 8 + 4
	for i := range data {
		data[i] = byte(i)
	}
	synth := &fakeSynth{clip: &types.AudioClip{
		Format:     types.AudioFormatPCM,
		Data:       data,
		SampleRate: types.PCMSampleRate,
	}}
	h := NewStreamHandler(testConfig(), synth, nil, "gemini", nil, discardLogger())

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/speech/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(speechRequest{Text: "Bonjour !", VoiceName: "fr-premium-1"}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var got []byte
	chunks := 0
	for {
		var chunk streamChunk
		if err := conn.ReadJSON(&chunk); err != nil {
			t.Fatalf("read chunk %d: %v", chunks, err)
		}
		if chunk.Done {
			break
		}
		if chunk.Seq != chunks {
			t.Errorf("seq = %d, want %d", chunk.Seq, chunks)
		}
		raw, err := base64.StdEncoding.DecodeString(chunk.Audio)
		if err != nil {
			t.Fatalf("decode chunk %d: %v", chunks, err)
		}
		got = append(got, raw...)
		chunks++
	}
	if chunks != 3 {
		t.Errorf("chunks = %d, want 3", chunks)
	}
	if string(got) != string(data) {
		t.Errorf("reassembled clip does not match original")
	}
}

func TestStreamHandlerSynthesisError(t *testing.T) {
	synth := &fakeSynth{err: core.NewSynthesisError("voice service unavailable")}
	h := NewStreamHandler(testConfig(), synth, nil, "gemini", nil, discardLogger())

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/speech/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(speechRequest{Text: "hola", VoiceName: "v"}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var fail streamError
	if err := conn.ReadJSON(&fail); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if fail.Error == nil || fail.Error.Type != core.ErrSynthesis {
		t.Errorf("error frame = %+v", fail.Error)
	}
}

func TestHealthHandlers(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	cfg := testConfig()
	cfg.AuthMode = "required" // no keys configured
	cfg.TTSProvider = "gemini"
	rec = httptest.NewRecorder()
	ReadyHandler{Config: cfg}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("readyz status = %d, want 500", rec.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.OK || len(resp.Issues) == 0 {
		t.Errorf("readyz = %+v", resp)
	}
}
