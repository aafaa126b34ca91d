package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Krimson/neuro-risk/assessment-service/internal/imaging"
	"github.com/Krimson/neuro-risk/assessment-service/internal/service"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

const (
	streamWriteWait = 10 * time.Second
	// запас на ключи, имена файлов и ответы анкеты
	streamJSONOverhead = 64 << 10
)

// streamReadLimit покрывает два изображения по maxUpload байт в base64
func streamReadLimit(maxUpload int64) int64 {
	return 2*((maxUpload+2)/3*4) + streamJSONOverhead
}

// StreamImage - изображение внутри StreamRequest. В JSON Data передается в base64
type StreamImage struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// StreamRequest - единственное сообщение клиента /ws/assessments.
// AssessmentID необязателен: если он задан, по нему можно заранее
// подписаться на /ws/events?assessment_id=...
type StreamRequest struct {
	AssessmentID string            `json:"assessment_id,omitempty"`
	Spiral  *StreamImage      `json:"spiral"`
	MRI     *StreamImage      `json:"mri,omitempty"`
	Answers map[string]string `json:"answers"`
}

// Типы сообщений потока
const (
	MessageEvent  = "event"
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage - любое сообщение сервера в /ws/assessments
type StreamMessage struct {
	Type   string                `json:"type"`
	Event  *models.ModalityEvent `json:"event,omitempty"`
	Result *models.FusionResult  `json:"result,omitempty"`
	Error  *models.ErrorResponse `json:"error,omitempty"`
}

// streamConn сериализует запись от параллельно завершающихся модальностей
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *streamConn) write(msg StreamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return s.conn.WriteJSON(msg)
}

// StreamAssessment проводит одну оценку через websocket. Клиент шлет
// StreamRequest, сервер отвечает сообщением "event" на каждую завершенную
// модальность, затем "result" или "error", и закрывает соединение.
func (h *HTTPHandler) StreamAssessment(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(streamReadLimit(h.maxUpload))
	sc := &streamConn{conn: conn}

	var req StreamRequest
	if err := conn.ReadJSON(&req); err != nil {
		sc.write(errorMessage(http.StatusBadRequest, "Invalid request message", err.Error()))
		return
	}

	svcReq, err := req.toServiceRequest()
	if err != nil {
		sc.write(errorMessage(http.StatusBadRequest, "Invalid upload", err.Error()))
		return
	}

	sink := service.SinkFunc(func(ctx context.Context, e models.ModalityEvent) error {
		return sc.write(StreamMessage{Type: MessageEvent, Event: &e})
	})

	result, err := h.assessor.AssessWithSink(r.Context(), svcReq, sink)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrSpiralRequired) || errors.Is(err, models.ErrInvalidID) {
			status = http.StatusBadRequest
		}
		sc.write(errorMessage(status, "Assessment failed", err.Error()))
		return
	}

	if err := sc.write(StreamMessage{Type: MessageResult, Result: result}); err != nil {
		log.Printf("[ERROR] Failed to send result for %s: %v", result.AssessmentID, err)
		return
	}

	sc.mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(streamWriteWait))
	sc.mu.Unlock()
}

func (req StreamRequest) toServiceRequest() (service.Request, error) {
	out := service.Request{ID: req.AssessmentID, Answers: req.Answers}

	if req.Spiral == nil || len(req.Spiral.Data) == 0 {
		return out, models.ErrSpiralRequired
	}
	if !imaging.AllowedFile(req.Spiral.Filename) {
		return out, fmt.Errorf("%w: %s", models.ErrUnsupportedImage, req.Spiral.Filename)
	}
	out.Spiral = &models.ImageSample{Filename: req.Spiral.Filename, Data: req.Spiral.Data}

	if req.MRI != nil && len(req.MRI.Data) > 0 {
		if imaging.AllowedFile(req.MRI.Filename) {
			out.MRI = &models.ImageSample{Filename: req.MRI.Filename, Data: req.MRI.Data}
		} else {
			log.Printf("[WARN] Ignoring MRI upload %q: unsupported extension", req.MRI.Filename)
		}
	}

	return out, nil
}

func errorMessage(status int, message, details string) StreamMessage {
	return StreamMessage{
		Type: MessageError,
		Error: &models.ErrorResponse{
			Error:   message,
			Details: details,
			Status:  status,
		},
	}
}
