package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"gym-chat/auth"
	"gym-chat/infrastructure/grpc/adminpb"
	"gym-chat/infrastructure/grpc/client"
	"gym-chat/infrastructure/grpc/server"
	"gym-chat/infrastructure/websocket"
	"gym-chat/internal"
	"gym-chat/moderation"
	"gym-chat/observability"
	"gym-chat/repositories"
	"gym-chat/repositories/sqlite"
	"gym-chat/runtime"
	"gym-chat/services"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/mux"
	gws "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
)

const (
	secret    = "e2e-secret"
	issuer    = "gym-app"
	adminRole = "admin"
)

// BaseSuite runs the whole server in process: one store, one hub,
// the websocket transport on an httptest server and the admin service on a loopback port.
type BaseSuite struct {
	suite.Suite
	Config Config

	tokens   *auth.TokenManager
	hub      *services.Hub
	store    repositories.IMessageRepository
	http     *httptest.Server
	ws       *websocket.Server
	grpc     *grpc.Server
	grpcAddr string
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// SetupTest starts a fresh stack so scenarios never share state.
func (s *BaseSuite) SetupTest() {
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	s.store = s.openStore(log)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	registry := runtime.NewRegistry()
	router := runtime.NewGroupRouter(log, metrics)
	dedup := runtime.NewDeduplicator()
	notifier := runtime.NewNotifier(log, registry, router)
	s.tokens = auth.NewTokenManager(secret, issuer)
	dictionary, err := moderation.LoadDictionary()
	s.Require().NoError(err)
	moderator, err := moderation.NewModerator(dictionary.Words, '*', log)
	s.Require().NoError(err)

	s.hub = services.NewHub(log, registry, router, dedup, notifier, s.store,
		auth.NewJWTResolver(log, s.tokens), moderator, services.NewEchoResponder(10*time.Millisecond), metrics,
		services.HubConfig{MaxBodyLength: 500, AssistantTimeout: time.Second})

	s.ws = websocket.NewServer(log, s.hub, websocket.Config{
		BufferSize:    64,
		MaxFrameBytes: 1 << 16,
		PingInterval:  time.Second,
		PongTimeout:   5 * time.Second,
		InvokeRate:    100,
		InvokeBurst:   100,
	})
	r := mux.NewRouter()
	s.ws.Register(r)
	s.http = httptest.NewServer(r)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(auth.AdminInterceptor(log, s.tokens, adminRole)))
	adminpb.RegisterAdminServiceServer(s.grpc, server.NewAdminServer(log, s.hub))
	go func() { _ = s.grpc.Serve(lis) }()
	s.grpcAddr = lis.Addr().String()
}

func (s *BaseSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.ws.Shutdown(ctx)
	s.http.Close()
	s.grpc.Stop()
	s.hub.Wait()
	_ = s.store.Close()
}

func (s *BaseSuite) openStore(log *slog.Logger) repositories.IMessageRepository {
	dir := s.T().TempDir()
	switch s.Config.StoreDriver {
	case internal.StoreSQLite:
		db, err := sqlite.Open(filepath.Join(dir, "e2e.db"))
		s.Require().NoError(err)
		store := sqlite.NewMessageRepository(db, log)
		s.Require().NoError(store.Migrate(context.Background()))
		return store
	default:
		db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
		s.Require().NoError(err)
		return repositories.NewMessageRepository(db, log)
	}
}

// Step prints a colorized header so scenario logs read like a script.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Device is one websocket session of a user.
type Device struct {
	s      *BaseSuite
	t      *testing.T
	conn   *gws.Conn
	nextID int
}

func (s *BaseSuite) Connect(userID, role string) *Device {
	token, err := s.tokens.GenerateToken(userID, []string{role}, time.Minute)
	s.Require().NoError(err)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	before := s.hub.Presence(userID)
	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.http.URL, "http")+"/ws", header)
	s.Require().NoError(err)
	s.Require().Eventually(func() bool { return s.hub.Presence(userID) > before }, 2*time.Second, 10*time.Millisecond)
	return &Device{s: s, t: s.T(), conn: conn}
}

func (s *BaseSuite) Admin() *client.AdminClient {
	token, err := s.tokens.GenerateToken("ops", []string{adminRole}, time.Minute)
	s.Require().NoError(err)
	admin, err := client.NewAdminClient(s.grpcAddr, token)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = admin.Close() })
	return admin
}

// Frame is a loose view of anything the server writes.
type Frame struct {
	Type         string                `json:"type"`
	Target       string                `json:"target"`
	InvocationID string                `json:"invocationId"`
	Payload      json.RawMessage       `json:"payload"`
	Result       json.RawMessage       `json:"result"`
	Error        *websocket.FrameError `json:"error"`
}

// Call invokes method and returns its completion, skipping pushed events.
func (d *Device) Call(method string, args any) Frame {
	d.nextID++
	id := fmt.Sprint(d.nextID)
	raw, err := json.Marshal(args)
	d.s.Require().NoError(err)
	d.s.Require().NoError(d.conn.WriteJSON(websocket.InboundFrame{
		Type: websocket.FrameInvocation, InvocationID: id, Target: method, Arguments: raw,
	}))
	return d.Await(func(f Frame) bool { return f.Type == websocket.FrameCompletion && f.InvocationID == id })
}

// Await reads frames until one matches.
func (d *Device) Await(match func(Frame) bool) Frame {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		d.s.Require().NoError(d.conn.SetReadDeadline(deadline))
		var f Frame
		d.s.Require().NoError(d.conn.ReadJSON(&f))
		if d.s.Config.DebugJSON {
			raw, _ := json.Marshal(f)
			d.t.Log(string(raw))
		}
		if match(f) {
			return f
		}
	}
	d.s.Require().FailNow("frame never arrived")
	return Frame{}
}

func (d *Device) AwaitEvent(target string) Frame {
	return d.Await(func(f Frame) bool { return f.Type == websocket.FrameEvent && f.Target == target })
}

func (d *Device) Close() {
	_ = d.conn.Close()
}
