package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"celo-quiz-settlement/internal/app"
	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WSHandler struct {
	coordinator *app.SettlementCoordinator
	quiz        *app.QuizService
	log         *logrus.Entry
	upgrader    websocket.Upgrader
}

func NewWSHandler(coordinator *app.SettlementCoordinator, quiz *app.QuizService, log *logrus.Entry) *WSHandler {
	return &WSHandler{
		coordinator: coordinator,
		quiz:        quiz,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type payPayload struct {
	TxHash string `json:"txHash"`
}

type resumePayload struct {
	PaymentHash string `json:"paymentHash"`
}

type answerPayload struct {
	Index int `json:"index"`
}

// publicQuestion is a question as shown before it is answered.
type publicQuestion struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type sessionPayload struct {
	Session   domain.SessionView `json:"session"`
	Questions []publicQuestion   `json:"questions"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and drives one player's settlements.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("player")
	if !common.IsHexAddress(raw) {
		http.Error(w, "missing or invalid player address", http.StatusBadRequest)
		return
	}
	player := common.HexToAddress(raw)
	log := h.log.WithField("player", player.Hex())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := &wsConn{
		handler: h,
		player:  player,
		log:     log,
		send:    make(chan outboundMessage[any], 16),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				_ = conn.Close()
				// keep draining so producers never block on a dead connection
				for range c.send {
				}
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.handle(r, inbound)
	}

	c.unwatch()
	close(c.send)
	<-writerDone
}

// wsConn is the state of one websocket: the player it speaks for and the settlement it follows.
type wsConn struct {
	handler *WSHandler
	player  common.Address
	log     *logrus.Entry
	send    chan outboundMessage[any]

	settlementID string
	stopWatch    func()
}

func (c *wsConn) handle(r *http.Request, inbound inboundMessage) {
	ctx := r.Context()
	coordinator := c.handler.coordinator

	switch inbound.Type {
	case "pay":
		var payload payPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.TxHash == "" {
			c.sendError(errors.New("invalid pay payload"))
			return
		}
		st, err := coordinator.RequestPayment(ctx, c.player, payload.TxHash)
		if err != nil {
			c.sendError(err)
			return
		}
		c.watch(st.ID)
	case "resume":
		var payload resumePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.PaymentHash == "" {
			c.sendError(errors.New("invalid resume payload"))
			return
		}
		st, err := coordinator.Resume(ctx, c.player, common.HexToHash(payload.PaymentHash))
		if err != nil {
			c.sendError(err)
			return
		}
		c.watch(st.ID)
	case "start":
		if !c.hasSettlement() {
			return
		}
		view, err := coordinator.Start(ctx, c.settlementID, c.player)
		if err != nil {
			c.sendError(err)
			return
		}
		quiz, err := c.handler.quiz.Quiz(ctx)
		if err != nil {
			c.sendError(err)
			return
		}
		c.send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{Session: view, Questions: publicQuestions(quiz)}}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.sendError(errors.New("invalid answer payload"))
			return
		}
		if !c.hasSettlement() {
			return
		}
		outcome, err := coordinator.SubmitAnswer(ctx, c.settlementID, c.player, payload.Index)
		if outcome.Answered > 0 || outcome.State.Terminal() {
			c.send <- outboundMessage[any]{Type: "answerResult", Payload: outcome}
		}
		if err != nil {
			c.sendError(err)
		}
	case "claim":
		if !c.hasSettlement() {
			return
		}
		if _, err := coordinator.Claim(ctx, c.settlementID, c.player); err != nil {
			c.sendError(err)
		}
	case "abandon":
		if !c.hasSettlement() {
			return
		}
		if _, err := coordinator.Abandon(ctx, c.settlementID, c.player); err != nil {
			c.sendError(err)
		}
	default:
		c.sendError(errors.New("unsupported message type"))
	}
}

func (c *wsConn) hasSettlement() bool {
	if c.settlementID == "" {
		c.sendError(domain.ErrSettlementNotFound)
		return false
	}
	return true
}

// watch forwards snapshots of settlement id to the client, replacing any earlier subscription.
func (c *wsConn) watch(id string) {
	updates, cancel, err := c.handler.coordinator.Subscribe(id)
	if err != nil {
		c.sendError(err)
		return
	}
	c.unwatch()

	closeSignals := make(chan struct{})
	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case c.send <- outboundMessage[any]{Type: "settlement", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	c.settlementID = id
	c.stopWatch = func() {
		close(closeSignals)
		<-updatesDone
		cancel()
	}
}

func (c *wsConn) unwatch() {
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
}

func (c *wsConn) sendError(err error) {
	c.send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
}

func publicQuestions(quiz domain.Quiz) []publicQuestion {
	out := make([]publicQuestion, len(quiz.Questions))
	for i, q := range quiz.Questions {
		out[i] = publicQuestion{Text: q.Text, Options: q.Options}
	}
	return out
}
