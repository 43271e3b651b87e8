package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/zhouzirui/career-fairy/backend/internal/model/speech"
)

type fakeTTSServer struct {
	mu        sync.Mutex
	requests  []volcengineTTSRequest
	resources []string
	mismatch  map[string]bool
}

func (f *fakeTTSServer) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		resource := r.Header.Get("X-Api-Resource-Id")
		f.mu.Lock()
		f.resources = append(f.resources, resource)
		f.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read: %v", err)
			return
		}
		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		var req volcengineTTSRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			t.Errorf("unmarshal: %v", err)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		if f.mismatch[resource] {
			frame, _ := EncodeMessage(&Message{
				Header:    Header{HeaderSize: 1, MessageType: ErrorMessage},
				ErrorCode: 45000000,
				Payload:   []byte(errResourceMismatch.Error()),
			})
			_ = conn.WriteMessage(websocket.BinaryMessage, frame)
			return
		}

		audio, _ := EncodeMessage(&Message{
			Header:   Header{HeaderSize: 1, MessageType: AudioOnlyServerResponse, MessageFlags: PositiveSequenceNumber},
			Sequence: 1,
			Payload:  []byte("audio-bytes"),
		})
		_ = conn.WriteMessage(websocket.BinaryMessage, audio)

		done, _ := EncodeMessage(&Message{
			Header:    Header{HeaderSize: 1, MessageType: FullServerResponse, MessageFlags: WithEvent, SerializationMethod: JSONSerialization},
			EventType: EventTypeSessionFinished,
			SessionID: req.User.UID,
			Payload:   []byte(`{"reqid":"req-1","code":0,"addition":{"duration":"1200"}}`),
		})
		_ = conn.WriteMessage(websocket.BinaryMessage, done)
	}
}

func (f *fakeTTSServer) seen() ([]volcengineTTSRequest, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]volcengineTTSRequest(nil), f.requests...), append([]string(nil), f.resources...)
}

func newTestClient(t *testing.T, fake *fakeTTSServer, voice string) *VolcengineTTSClient {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewVolcengineTTSClient(&speechmodel.SpeechConfig{
		AppID:       "app",
		AccessToken: "token",
		BaseURL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		TTSVoice:    voice,
		TTSLanguage: "en-US",
		Timeout:     5,
	}, nil)
}

func TestSynthesizeSpeech(t *testing.T) {
	fake := &fakeTTSServer{}
	client := newTestClient(t, fake, "en_female_amy_jupiter_bigtts")

	resp, err := client.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{
		SessionID: "s1",
		Text:      "Nursing is a caring profession!",
		Rate:      DefaultRate,
		Pitch:     DefaultPitch,
	})
	require.NoError(t, err)

	assert.Equal(t, "audio-bytes", string(resp.AudioData))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, int64(1200), resp.Duration)
	assert.Equal(t, "mp3", resp.Format)

	requests, resources := fake.seen()
	require.Len(t, requests, 1)
	got := requests[0]
	assert.Equal(t, "s1", got.User.UID)
	assert.Equal(t, "en_female_amy_jupiter_bigtts", got.ReqParams.Speaker)
	assert.Equal(t, DefaultRate, got.ReqParams.AudioParams.SpeedRatio)
	assert.Equal(t, DefaultPitch, got.ReqParams.AudioParams.PitchRatio)
	assert.Equal(t, "en-US", got.ReqParams.Language)
	assert.Equal(t, []string{"seed-tts-2.0"}, resources)
}

func TestSynthesizeSpeechFallsBackOnResourceMismatch(t *testing.T) {
	fake := &fakeTTSServer{mismatch: map[string]bool{"seed-tts-2.0": true}}
	client := newTestClient(t, fake, "en_female_amy_jupiter_bigtts")

	resp, err := client.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(resp.AudioData))
	_, resources := fake.seen()
	assert.Equal(t, []string{"seed-tts-2.0", "volc.service_type.10029"}, resources)
}

func TestSynthesizeSpeechValidation(t *testing.T) {
	client := NewVolcengineTTSClient(&speechmodel.SpeechConfig{}, nil)

	_, err := client.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: " "})
	assert.Error(t, err)

	_, err = client.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestResolveTTSResourceCandidates(t *testing.T) {
	assert.Equal(t, []string{"volc.service_type.10029", "seed-tts-2.0"}, resolveTTSResourceCandidates(""))
	assert.Equal(t, []string{"volc.megatts.default"}, resolveTTSResourceCandidates("S_clone_speaker"))
	assert.Equal(t, []string{"seed-tts-2.0", "volc.service_type.10029"}, resolveTTSResourceCandidates("zh_female_vv_uranus_bigtts"))
}
