package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	speechmodel "github.com/zhouzirui/career-fairy/backend/internal/model/speech"
)

const defaultTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

var errResourceMismatch = errors.New("resource ID is mismatched with speaker related resource")

// VolcengineTTSClient synthesizes speech over the Volcengine unidirectional
// streaming WebSocket API.
type VolcengineTTSClient struct {
	config *speechmodel.SpeechConfig
	dialer *websocket.Dialer
	logger *zap.Logger
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type volcengineTTSRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string                   `json:"speaker"`
		Text        string                   `json:"text"`
		AudioParams volcengineTTSAudioParams `json:"audio_params"`
		Language    string                   `json:"language,omitempty"`
	} `json:"req_params"`
}

type volcengineTTSAudioParams struct {
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	SpeedRatio float32 `json:"speed_ratio,omitempty"`
	PitchRatio float32 `json:"pitch_ratio,omitempty"`
}

// NewVolcengineTTSClient creates a TTS client.
func NewVolcengineTTSClient(config *speechmodel.SpeechConfig, logger *zap.Logger) *VolcengineTTSClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := 30 * time.Second
	if config != nil && config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}
	return &VolcengineTTSClient{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
		logger: logger,
	}
}

// SynthesizeSpeech renders req.Text, trying each resource id that may serve
// the requested voice.
func (c *VolcengineTTSClient) SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("TTS text is empty")
	}

	appKey, accessKey, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.Timeout)*time.Second)
		defer cancel()
	}

	speaker := strings.TrimSpace(req.Voice)
	if speaker == "" {
		speaker = strings.TrimSpace(c.config.TTSVoice)
	}

	var lastErr error
	for i, resourceID := range resolveTTSResourceCandidates(speaker) {
		resp, err := c.synthesizeWithResource(ctx, req, appKey, accessKey, speaker, resourceID)
		if err == nil {
			if i > 0 {
				c.logger.Info("voice served by fallback resource", zap.String("voice", speaker), zap.String("resource", resourceID))
			}
			return resp, nil
		}
		if !errors.Is(err, errResourceMismatch) {
			return nil, err
		}
		c.logger.Warn("voice resource mismatch", zap.String("voice", speaker), zap.String("resource", resourceID), zap.Error(err))
		lastErr = err
	}

	return nil, fmt.Errorf("TTS synthesis failed for voice %q: %w", speaker, lastErr)
}

func (c *VolcengineTTSClient) endpoint() string {
	if url := strings.TrimSpace(c.config.BaseURL); url != "" {
		return url
	}
	return defaultTTSURL
}

func (c *VolcengineTTSClient) synthesizeWithResource(ctx context.Context, req *speechmodel.TTSRequest, appKey, accessKey, speaker, resourceID string) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Access-Key", accessKey)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint(), header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
			c.logger.Debug("tts connected", zap.String("logid", logID))
		}
	}

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	ttsReq, uid := c.buildTTSRequest(req, speaker)
	payload, err := json.Marshal(ttsReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	frame, err := EncodeMessage(NewFullClientRequest(payload, NoCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to encode TTS request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS frame: %w", err)
		}

		payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress TTS payload: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			if strings.Contains(string(payload), errResourceMismatch.Error()) {
				return nil, fmt.Errorf("%w: %s", errResourceMismatch, payload)
			}
			return nil, fmt.Errorf("TTS error %d: %s", msg.ErrorCode, payload)

		case AudioOnlyServerResponse:
			audio.Write(payload)

		case FullServerResponse:
			var serverResp ttsServerMessage
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &serverResp); err != nil {
					c.logger.Warn("failed to unmarshal TTS response payload", zap.Error(err))
				}
			}
			if serverResp.Code != 0 && serverResp.Code != 3000 {
				if strings.Contains(serverResp.Message, errResourceMismatch.Error()) {
					return nil, fmt.Errorf("%w: %s", errResourceMismatch, serverResp.Message)
				}
				return nil, fmt.Errorf("TTS API error %d: %s", serverResp.Code, serverResp.Message)
			}
			if serverResp.ReqID != "" {
				reqID = serverResp.ReqID
			}
			if serverResp.Addition.Duration != "" {
				if parsed, err := strconv.ParseInt(serverResp.Addition.Duration, 10, 64); err == nil {
					duration = parsed
				}
			}
			if serverResp.Data != "" {
				chunk, err := base64.StdEncoding.DecodeString(serverResp.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
				}
				audio.Write(chunk)
			}

			finished := msg.hasEvent() && msg.EventType == EventTypeSessionFinished
			if finished || msg.IsLastPacket() || serverResp.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, fmt.Errorf("TTS audio is empty")
				}
				if reqID == "" {
					reqID = connectID
				}
				return &speechmodel.TTSResponse{
					SessionID: uid,
					AudioData: audio.Bytes(),
					Duration:  duration,
					Format:    ttsReq.ReqParams.AudioParams.Format,
					RequestID: reqID,
					CreatedAt: time.Now(),
				}, nil
			}

		default:
			c.logger.Debug("unexpected TTS frame", zap.Uint8("type", uint8(msg.Header.MessageType)))
		}
	}
}

func (c *VolcengineTTSClient) buildTTSRequest(req *speechmodel.TTSRequest, speaker string) (*volcengineTTSRequest, string) {
	ttsReq := &volcengineTTSRequest{}

	uid := strings.TrimSpace(req.SessionID)
	if uid == "" {
		uid = uuid.NewString()
	}
	ttsReq.User.UID = uid
	ttsReq.ReqParams.Speaker = speaker
	ttsReq.ReqParams.Text = req.Text

	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = strings.TrimSpace(c.config.TTSFormat)
	}
	if format == "" || format == "wav" {
		format = "mp3"
	}
	ttsReq.ReqParams.AudioParams.Format = format
	ttsReq.ReqParams.AudioParams.SampleRate = 24000

	if req.Rate > 0 && req.Rate != 1.0 {
		ttsReq.ReqParams.AudioParams.SpeedRatio = req.Rate
	}
	if req.Pitch > 0 && req.Pitch != 1.0 {
		ttsReq.ReqParams.AudioParams.PitchRatio = req.Pitch
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(c.config.TTSLanguage)
	}
	ttsReq.ReqParams.Language = language

	return ttsReq, uid
}

func resolveTTSResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}

	return []string{defaultResource, seedResource}
}
