package rpc

import (
	"context"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/models"
	"github.com/wfunc/wordchain/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr. Services are added with Register before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
		rpc:      rpc.NewServer(),
	}, nil
}

func (s *Server) Register(service interface{}) error {
	return s.rpc.Register(service)
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

const callTimeout = 30 * time.Second

// AdminService exposes server administration over net/rpc.
// Methods follow the net/rpc signature: exported arguments, a pointer reply
// and an error result.
type AdminService struct {
	admin       *services.AdminService
	validator   *services.ChainValidator
	leaderboard *services.LeaderboardAggregator
}

func NewAdminService(admin *services.AdminService, validator *services.ChainValidator, leaderboard *services.LeaderboardAggregator) *AdminService {
	return &AdminService{admin: admin, validator: validator, leaderboard: leaderboard}
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

type Empty struct{}

type LanguageArgs struct {
	ServerID string
	Code     string
}

type LanguagesReply struct {
	Languages []string
}

func (a *AdminService) AddLanguage(args *LanguageArgs, reply *LanguagesReply) error {
	ctx, cancel := callContext()
	defer cancel()
	langs, err := a.admin.AddLanguage(ctx, args.ServerID, args.Code)
	if err != nil {
		return err
	}
	reply.Languages = langs
	return nil
}

func (a *AdminService) RemoveLanguage(args *LanguageArgs, reply *LanguagesReply) error {
	ctx, cancel := callContext()
	defer cancel()
	langs, err := a.admin.RemoveLanguage(ctx, args.ServerID, args.Code)
	if err != nil {
		return err
	}
	reply.Languages = langs
	return nil
}

type ChannelArgs struct {
	ServerID  string
	ChannelID string
}

func (a *AdminService) SetChannel(args *ChannelArgs, reply *Empty) error {
	ctx, cancel := callContext()
	defer cancel()
	return a.admin.SetChannel(ctx, args.ServerID, args.ChannelID)
}

type RoleArgs struct {
	ServerID string
	Kind     string
	// RoleID empty removes the role.
	RoleID string
}

func (a *AdminService) SetRole(args *RoleArgs, reply *Empty) error {
	kind, err := models.ParseRoleKind(args.Kind)
	if err != nil {
		return err
	}
	ctx, cancel := callContext()
	defer cancel()
	return a.admin.SetRole(ctx, args.ServerID, kind, args.RoleID)
}

type ListArgs struct {
	ServerID string
	Kind     string
	Word     string
}

type ListReply struct {
	Words []string
}

func (a *AdminService) AddListWord(args *ListArgs, reply *ListReply) error {
	kind, err := models.ParseListKind(args.Kind)
	if err != nil {
		return err
	}
	ctx, cancel := callContext()
	defer cancel()
	folded, err := a.admin.AddListWord(ctx, args.ServerID, kind, args.Word)
	if err != nil {
		return err
	}
	reply.Words = []string{folded}
	return nil
}

func (a *AdminService) RemoveListWord(args *ListArgs, reply *Empty) error {
	kind, err := models.ParseListKind(args.Kind)
	if err != nil {
		return err
	}
	ctx, cancel := callContext()
	defer cancel()
	return a.admin.RemoveListWord(ctx, args.ServerID, kind, args.Word)
}

func (a *AdminService) ListWords(args *ListArgs, reply *ListReply) error {
	kind, err := models.ParseListKind(args.Kind)
	if err != nil {
		return err
	}
	ctx, cancel := callContext()
	defer cancel()
	words, err := a.admin.ListWords(ctx, args.ServerID, kind)
	if err != nil {
		return err
	}
	reply.Words = words
	return nil
}

type MemberArgs struct {
	ServerID string
	UserID   string
}

func (a *AdminService) BanMember(args *MemberArgs, reply *Empty) error {
	ctx, cancel := callContext()
	defer cancel()
	return a.admin.BanMember(ctx, args.UserID)
}

func (a *AdminService) UnbanMember(args *MemberArgs, reply *Empty) error {
	ctx, cancel := callContext()
	defer cancel()
	return a.admin.UnbanMember(ctx, args.UserID)
}

func (a *AdminService) DeleteUserData(args *MemberArgs, reply *Empty) error {
	ctx, cancel := callContext()
	defer cancel()
	return a.admin.DeleteUserData(ctx, args.UserID)
}

func (a *AdminService) Stats(args *MemberArgs, reply *models.UserRank) error {
	ctx, cancel := callContext()
	defer cancel()
	rank, err := a.leaderboard.UserRank(ctx, args.ServerID, args.UserID)
	if err != nil {
		return err
	}
	*reply = *rank
	return nil
}

type CheckArgs struct {
	ServerID string
	Word     string
}

func (a *AdminService) CheckWord(args *CheckArgs, reply *services.CheckResult) error {
	ctx, cancel := callContext()
	defer cancel()
	result, err := a.validator.CheckWord(ctx, args.ServerID, args.Word)
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

type LeaderboardArgs struct {
	ServerID string
	Metric   string
	Limit    int
}

type LeaderboardReply struct {
	Entries []models.LeaderboardEntry
}

func (a *AdminService) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	metric, err := models.ParseMetric(args.Metric)
	if err != nil {
		return err
	}
	ctx, cancel := callContext()
	defer cancel()
	entries, err := a.leaderboard.TopUsers(ctx, services.Query{ServerID: args.ServerID, Metric: metric, Limit: args.Limit})
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}
