// Package gateway is the realtime session layer: it authenticates
// websocket connections, routes inbound events to the match manager, and
// fans manager broadcasts out to game rooms.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/JalenduP/Chess-it/internal/adapter/gamepresenter"
	"github.com/JalenduP/Chess-it/internal/auth"
	"github.com/JalenduP/Chess-it/internal/domain"
	"github.com/JalenduP/Chess-it/internal/match"
	"github.com/JalenduP/Chess-it/internal/msgcat"
	"github.com/JalenduP/Chess-it/internal/obslog"
	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

const maxChatLen = 500

type Server struct {
	mgr   *match.Manager
	authn *auth.Authenticator
	cat   *msgcat.Catalog
	hub   *hub
}

func NewServer(mgr *match.Manager, authn *auth.Authenticator, cat *msgcat.Catalog) *Server {
	s := &Server{mgr: mgr, authn: authn, cat: cat, hub: newHub()}
	mgr.AttachBroadcaster(s.hub)
	return s
}

// Broadcaster exposes the room registry for wiring into the manager.
func (s *Server) Broadcaster() match.Broadcaster { return s.hub }

// Run serves the websocket endpoint until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept", zap.Error(err))
		return
	}

	sess := newSession(conn, *identity)
	obslog.L().Info("ws_connect", zap.String("user_id", identity.ID), zap.String("username", identity.Username))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go sess.writePump(ctx)

	s.readLoop(ctx, sess)

	s.hub.leaveAll(sess)
	sess.close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnect", zap.String("user_id", identity.ID))
}

// authenticate accepts the token from the Authorization header or, for
// browser clients that cannot set headers on the handshake, the token
// query parameter.
func (s *Server) authenticate(r *http.Request) (*auth.Identity, error) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return s.authn.Verify(token)
}

// inboundEnvelope defers payload decoding until the event is known.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) readLoop(ctx context.Context, sess *session) {
	for {
		var env inboundEnvelope
		if err := wsjson.Read(ctx, sess.conn, &env); err != nil {
			return
		}
		s.dispatch(ctx, sess, env)
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session, env inboundEnvelope) {
	var err error
	switch env.Event {
	case gamedto.EvJoinGame:
		err = s.handleJoin(ctx, sess, env.Data)
	case gamedto.EvMakeMove:
		err = s.handleMove(ctx, sess, env.Data)
	case gamedto.EvOfferDraw:
		err = s.handleOfferDraw(ctx, sess, env.Data)
	case gamedto.EvRespondDraw:
		err = s.handleRespondDraw(ctx, sess, env.Data)
	case gamedto.EvResign:
		err = s.handleResign(ctx, sess, env.Data)
	case gamedto.EvChat:
		err = s.handleChat(sess, env.Data)
	default:
		err = errBadRequest
	}
	if err != nil {
		s.sendError(sess, err)
	}
}

func (s *Server) handleJoin(ctx context.Context, sess *session, raw json.RawMessage) error {
	var req gamedto.JoinGameRequest
	if err := json.Unmarshal(raw, &req); err != nil || strings.TrimSpace(req.GameID) == "" {
		return errBadRequest
	}
	g, err := s.mgr.Game(ctx, req.GameID)
	if err != nil {
		return err
	}

	s.hub.join(g.ID, sess)

	now := time.Now()
	sess.send(gamedto.Envelope{Event: gamedto.EvGameState, Data: gamedto.GameState{
		Game:        gamepresenter.ToGameView(g, now),
		ViewerColor: string(g.PlayerColor(sess.identity.ID)),
	}})

	if g.IsParticipant(sess.identity.ID) && !g.Terminal() {
		s.hub.ToRoomExcept(g.ID, sess.identity.ID, gamedto.EvOpponentJoined, gamedto.OpponentJoined{
			Username: sess.identity.Username,
		})
	}
	return nil
}

func (s *Server) handleMove(ctx context.Context, sess *session, raw json.RawMessage) error {
	var req gamedto.MakeMoveRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.GameID == "" || req.From == "" || req.To == "" {
		return errBadRequest
	}
	_, _, err := s.mgr.MakeMove(ctx, sess.identity.ID, req.GameID, req.From, req.To, req.Promotion)
	return err
}

func (s *Server) handleOfferDraw(ctx context.Context, sess *session, raw json.RawMessage) error {
	var req gamedto.OfferDrawRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.GameID == "" {
		return errBadRequest
	}
	_, err := s.mgr.OfferDraw(ctx, sess.identity.ID, req.GameID)
	return err
}

func (s *Server) handleRespondDraw(ctx context.Context, sess *session, raw json.RawMessage) error {
	var req gamedto.RespondDrawRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.GameID == "" {
		return errBadRequest
	}
	_, err := s.mgr.RespondDraw(ctx, sess.identity.ID, req.GameID, req.Accept)
	return err
}

func (s *Server) handleResign(ctx context.Context, sess *session, raw json.RawMessage) error {
	var req gamedto.ResignRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.GameID == "" {
		return errBadRequest
	}
	_, err := s.mgr.Resign(ctx, sess.identity.ID, req.GameID)
	return err
}

// handleChat relays room chat as-is; the server stores nothing.
func (s *Server) handleChat(sess *session, raw json.RawMessage) error {
	var req gamedto.ChatRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.GameID == "" {
		return errBadRequest
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return errBadRequest
	}
	if len(msg) > maxChatLen {
		msg = msg[:maxChatLen]
	}
	if !sess.inRoom(req.GameID) {
		return domain.ErrNotAuthorized
	}
	s.hub.ToRoom(req.GameID, gamedto.EvChatMessage, gamedto.ChatMessage{
		From:      sess.identity.Username,
		Message:   msg,
		Timestamp: time.Now(),
	})
	return nil
}

var errBadRequest = errors.New("bad request")

// sendError maps a failure to its catalog message and delivers it to the
// offending connection only.
func (s *Server) sendError(sess *session, err error) {
	msg := s.cat.RenderOr(errorKey(err), "Something went wrong. Please try again.", nil)
	sess.send(gamedto.Envelope{Event: gamedto.EvError, Data: gamedto.ErrorPayload{Message: msg}})
}

func errorKey(err error) string {
	switch {
	case errors.Is(err, domain.ErrGameNotFound):
		return "error.game_not_found"
	case errors.Is(err, domain.ErrUserNotFound):
		return "error.user_not_found"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "error.not_authorized"
	case errors.Is(err, domain.ErrInvalidGameState):
		return "error.invalid_game_state"
	case errors.Is(err, domain.ErrNotYourTurn):
		return "error.not_your_turn"
	case errors.Is(err, domain.ErrIllegalMove):
		return "error.illegal_move"
	case errors.Is(err, domain.ErrNoActiveOffer):
		return "error.no_active_offer"
	case errors.Is(err, domain.ErrGameFlagged):
		return "error.game_flagged"
	case errors.Is(err, domain.ErrInvalidTimeControl):
		return "error.invalid_time_control"
	case errors.Is(err, errBadRequest):
		return "error.bad_request"
	default:
		return "error.internal"
	}
}
