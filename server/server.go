package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/wordchain/broadcast"
	"github.com/wfunc/wordchain/chain"
	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/monitor"
	"github.com/wfunc/wordchain/network"
	wordchain_rpc "github.com/wfunc/wordchain/rpc"
	"github.com/wfunc/wordchain/services"
	"github.com/wfunc/wordchain/session"
	"github.com/wfunc/wordchain/timer"
)

type Options struct {
	HTTPAddress string
	RPCAddress  string
	// Heartbeat is the interval bridges are expected to ping at. Sessions
	// silent for three intervals are dropped.
	Heartbeat time.Duration
}

// Deps are the services the gateway exposes.
type Deps struct {
	Validator   *services.ChainValidator
	Leaderboard *services.LeaderboardAggregator
	Admin       *services.AdminService
	Chains      *chain.Manager
	Monitor     *monitor.Monitor
}

// GameServer is the bridge gateway: websocket packets in, decisions out,
// plus the HTTP API and the admin RPC endpoint.
type GameServer struct {
	options        Options
	deps           Deps
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	timers         *timer.TimerManager
	rpcServer      *wordchain_rpc.Server
	httpServer     *http.Server
	ctx            context.Context
	cancel         context.CancelFunc
	connections    sync.WaitGroup
	shutdownOnce   sync.Once
}

func NewGameServer(options Options, deps Deps) *GameServer {
	if options.Heartbeat <= 0 {
		options.Heartbeat = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		options:        options,
		deps:           deps,
		sessionManager: session.NewManager(),
		ctx:            ctx,
		cancel:         cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewSubscriptionBroadcaster(s.sessionManager)
	return s
}

// Start serves HTTP and RPC until Shutdown.
func (s *GameServer) Start() error {
	rpcServer, err := wordchain_rpc.NewServer(s.options.RPCAddress)
	if err != nil {
		return err
	}
	err = rpcServer.Register(wordchain_rpc.NewAdminService(s.deps.Admin, s.deps.Validator, s.deps.Leaderboard))
	if err != nil {
		return err
	}
	s.rpcServer = rpcServer
	go s.rpcServer.Start()

	s.timers = timer.NewTimerManager(time.Second)
	s.timers.AddTimer(s.options.Heartbeat, s.options.Heartbeat, s.sweepSessions)
	s.timers.AddTimer(0, 5*time.Second, s.refreshGauges)

	s.httpServer = &http.Server{
		Addr:    s.options.HTTPAddress,
		Handler: s.Router(),
	}
	logger.Log.Infof("Game server listening on %s", s.options.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting work, drops the bridges and waits for in-flight
// submissions.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		if s.timers != nil {
			s.timers.Stop()
		}
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
		s.connections.Wait()
		s.cancel()
	})
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.connections.Add(1)
	go func() {
		defer s.connections.Done()
		s.handleConnection(conn)
	}()
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.options.Heartbeat)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.deps.Monitor.Metrics.IncBridgeSessions()
	work := newLanes(0)

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		work.Close()
		s.sessionManager.Remove(sess.GetID())
		s.deps.Monitor.Metrics.DecBridgeSessions()
		wsConn.Close()
	}()

	for {
		packet, err := wsConn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(sess, work, packet)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, work *lanes, packet *network.Packet) {
	sess.Touch()
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeSubscribe, network.MsgTypeUnsubscribe:
		var req network.Subscribe
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			s.sendError(sess, "", "malformed subscribe request")
			return
		}
		if packet.MsgID == network.MsgTypeSubscribe {
			sess.Subscribe(req.ServerIDs...)
		} else {
			sess.Unsubscribe(req.ServerIDs...)
		}
	case network.MsgTypeSubmitWord:
		var req network.SubmitWord
		if err := json.Unmarshal(packet.Data, &req); err != nil || req.ServerID == "" {
			s.sendError(sess, "", "malformed submission")
			return
		}
		if req.CorrelationID == "" {
			req.CorrelationID = uuid.New().String()
		}
		work.Submit(req.ServerID, func() { s.handleSubmit(sess, req) })
	case network.MsgTypeCheckWord:
		var req network.CheckWord
		if err := json.Unmarshal(packet.Data, &req); err != nil || req.ServerID == "" {
			s.sendError(sess, "", "malformed check request")
			return
		}
		work.Submit(req.ServerID, func() { s.handleCheck(sess, req) })
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleSubmit(sess *session.Session, req network.SubmitWord) {
	decision, err := s.deps.Validator.HandleMessage(s.ctx, services.Message{
		ServerID:  req.ServerID,
		ChannelID: req.ChannelID,
		UserID:    req.UserID,
		Text:      req.Text,
	})
	if err != nil {
		logger.Log.Errorf("Submission %s on server %s failed: %v", req.CorrelationID, req.ServerID, err)
		s.sendError(sess, req.CorrelationID, "submission could not be processed")
		return
	}

	result, _ := json.Marshal(decision)
	data, err := json.Marshal(network.Decision{
		CorrelationID: req.CorrelationID,
		ServerID:      req.ServerID,
		ChannelID:     req.ChannelID,
		UserID:        req.UserID,
		Outcome:       decision.Outcome.String(),
		Reason:        decision.Reason.String(),
		Result:        result,
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode decision: %v", err)
		return
	}

	if decision.Outcome == services.Ignored {
		sess.Send(network.MsgTypeDecision, data)
		return
	}
	if !sess.Subscribed(req.ServerID) {
		sess.Send(network.MsgTypeDecision, data)
	}
	s.broadcaster.BroadcastToServer(req.ServerID, network.MsgTypeDecision, data)
}

func (s *GameServer) handleCheck(sess *session.Session, req network.CheckWord) {
	result, err := s.deps.Validator.CheckWord(s.ctx, req.ServerID, req.Text)
	if err != nil {
		logger.Log.Errorf("Check on server %s failed: %v", req.ServerID, err)
		s.sendError(sess, req.CorrelationID, "check could not be processed")
		return
	}
	payload, _ := json.Marshal(result)
	data, _ := json.Marshal(network.CheckResult{
		CorrelationID: req.CorrelationID,
		ServerID:      req.ServerID,
		Result:        payload,
	})
	sess.Send(network.MsgTypeCheckResult, data)
}

func (s *GameServer) sendError(sess *session.Session, correlationID, message string) {
	data, _ := json.Marshal(network.Error{CorrelationID: correlationID, Message: message})
	sess.Send(network.MsgTypeError, data)
}

// sweepSessions drops bridges that stopped sending heartbeats.
func (s *GameServer) sweepSessions() {
	for _, sess := range s.sessionManager.Idle(time.Now().Add(-3 * s.options.Heartbeat)) {
		logger.Log.Warnf("Session %s missed its heartbeats, closing", sess.GetID())
		sess.Close()
	}
}

func (s *GameServer) refreshGauges() {
	s.deps.Monitor.Metrics.SetActiveChains(s.deps.Chains.CountActive())
}
