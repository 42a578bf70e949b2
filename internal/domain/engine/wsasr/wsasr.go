// Package wsasr transcribes sealed audio over a binary-framed websocket
// speech service (ByteDance openspeech protocol and compatibles). Unlike a
// conversation server it never keeps a long-lived stream: each gesture opens
// a connection, pushes the whole utterance in chunks, and reads the final
// result.
package wsasr

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"voicehold/internal/domain/audio"
	"voicehold/internal/domain/engine"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Protocol constants
const (
	clientFullRequest   = 0x1
	clientAudioRequest  = 0x2
	serverFullResponse  = 0x9
	serverErrorResponse = 0xF

	noSequence  = 0x0
	negSequence = 0x2

	jsonFormat      = 0x1
	gzipCompression = 0x1

	handshakeTimeout = 10 * time.Second
	chunkMillis      = 200
)

const defaultURL = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

var _ engine.Transcriber = (*Engine)(nil)

func init() {
	engine.RegisterTranscriber("wsasr", NewEngine)
}

// Engine speaks the openspeech binary websocket protocol.
type Engine struct {
	appID       string
	accessToken string
	wsURL       string
	model       string
	language    string
	logger      *logging.Logger
	ready       atomic.Bool
}

// NewEngine builds the engine from its provider config block.
func NewEngine(cfg *config.ASRConfig, logger *logging.Logger) (engine.Transcriber, error) {
	if cfg.AppID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("missing appid or access_token for websocket transcription")
	}

	e := &Engine{
		appID:       cfg.AppID,
		accessToken: cfg.AccessToken,
		wsURL:       cfg.BaseURL,
		model:       cfg.ModelName,
		language:    cfg.Language,
		logger:      logger,
	}
	if e.wsURL == "" {
		e.wsURL = defaultURL
	}
	if e.model == "" {
		e.model = "bigmodel"
	}
	e.ready.Store(true)
	return e, nil
}

func (e *Engine) Name() string { return "wsasr/" + e.model }

func (e *Engine) Ready() bool { return e.ready.Load() }

func (e *Engine) Close() error {
	e.ready.Store(false)
	return nil
}

// Transcribe opens a connection, streams the sealed utterance and waits for
// the final package. The connection dies with ctx so a timed-out or
// cancelled call cannot leak a reader.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	start := time.Now()
	reqID := uuid.New().String()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	headers := http.Header{}
	headers.Set("X-Api-App-Key", e.appID)
	headers.Set("X-Api-Access-Key", e.accessToken)
	headers.Set("X-Api-Resource-Id", "volc.bigasr.sauc.duration")
	headers.Set("X-Api-Connect-Id", reqID)

	conn, resp, err := dialer.DialContext(ctx, e.wsURL, headers)
	if err != nil {
		if resp != nil {
			return "", fmt.Errorf("dial %s: %w (status %s)", e.wsURL, err, resp.Status)
		}
		return "", fmt.Errorf("dial %s: %w", e.wsURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := e.sendFullRequest(conn, reqID); err != nil {
		return "", err
	}
	if err := e.sendAudio(conn, audio.EncodePCM16(samples)); err != nil {
		return "", err
	}

	text, err := e.readResult(conn)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}

	text = strings.TrimSpace(text)
	e.logger.InfoASR("%.2fs of audio -> %d chars in %s", audio.Duration(samples), len(text), time.Since(start).Round(time.Millisecond))
	return text, nil
}

func header(messageType, flags, serialization uint8) []byte {
	h := make([]byte, 4)
	h[0] = (1 << 4) | 1
	h[1] = (messageType << 4) | flags
	h[2] = (serialization << 4) | gzipCompression
	h[3] = 0
	return h
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) sendFullRequest(conn *websocket.Conn, reqID string) error {
	req := map[string]interface{}{
		"user": map[string]interface{}{
			"uid": reqID,
		},
		"audio": map[string]interface{}{
			"format":   "pcm",
			"rate":     audio.CanonicalSampleRate,
			"bits":     16,
			"channel":  1,
			"language": e.language,
		},
		"request": map[string]interface{}{
			"model_name":  e.model,
			"enable_punc": true,
			"enable_itn":  true,
			"result_type": "single",
		},
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	compressed, err := gzipBytes(payload)
	if err != nil {
		return fmt.Errorf("compress request: %w", err)
	}

	frame := header(clientFullRequest, noSequence, jsonFormat)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(compressed)))
	frame = append(frame, compressed...)

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

func (e *Engine) sendAudio(conn *websocket.Conn, pcm []byte) error {
	chunkBytes := audio.CanonicalSampleRate * 2 * chunkMillis / 1000
	for offset := 0; offset < len(pcm) || offset == 0; offset += chunkBytes {
		end := offset + chunkBytes
		last := end >= len(pcm)
		if last {
			end = len(pcm)
		}

		compressed, err := gzipBytes(pcm[offset:end])
		if err != nil {
			return fmt.Errorf("compress audio: %w", err)
		}

		flags := uint8(noSequence)
		if last {
			flags = negSequence
		}
		frame := header(clientAudioRequest, flags, jsonFormat)
		frame = binary.BigEndian.AppendUint32(frame, uint32(len(compressed)))
		frame = append(frame, compressed...)

		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("send audio chunk: %w", err)
		}
		if last {
			break
		}
	}
	return nil
}

type resultPayload struct {
	Result struct {
		Text string `json:"text"`
	} `json:"result"`
	Error string `json:"error,omitempty"`
}

// readResult consumes server frames until the last package arrives and
// returns the accumulated text.
func (e *Engine) readResult(conn *websocket.Conn) (string, error) {
	var text string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		if len(data) < 4 {
			return "", fmt.Errorf("response frame too short: %d bytes", len(data))
		}

		headerSize := int(data[0]&0x0f) * 4
		messageType := data[1] >> 4
		flags := data[1] & 0x0f
		compression := data[2] & 0x0f
		payload := data[headerSize:]

		last := flags&0x02 != 0
		if flags&0x01 != 0 {
			// Leading sequence number; the text payload follows.
			if len(payload) < 4 {
				return "", fmt.Errorf("response frame missing sequence")
			}
			payload = payload[4:]
		}

		switch messageType {
		case serverFullResponse:
			if len(payload) < 4 {
				return "", fmt.Errorf("response frame missing payload size")
			}
			body := payload[4:]
			if compression == gzipCompression {
				zr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					return "", fmt.Errorf("decompress response: %w", err)
				}
				var buf bytes.Buffer
				if _, err := buf.ReadFrom(zr); err != nil {
					zr.Close()
					return "", fmt.Errorf("decompress response: %w", err)
				}
				zr.Close()
				body = buf.Bytes()
			}

			var result resultPayload
			if err := sonic.Unmarshal(body, &result); err != nil {
				return "", fmt.Errorf("parse response: %w", err)
			}
			if result.Error != "" {
				return "", fmt.Errorf("transcription service: %s", result.Error)
			}
			if result.Result.Text != "" {
				text = result.Result.Text
			}
			if last {
				return text, nil
			}

		case serverErrorResponse:
			if len(payload) < 8 {
				return "", fmt.Errorf("malformed error frame")
			}
			code := binary.BigEndian.Uint32(payload[:4])
			return "", fmt.Errorf("transcription service error %d", code)

		default:
			if last {
				return text, nil
			}
		}
	}
}
