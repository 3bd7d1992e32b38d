package proxy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/robinbraemer/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermc/ember/internal/forwarding"
	"github.com/embermc/ember/pkg/config"
	"github.com/embermc/ember/pkg/netmc"
	"github.com/embermc/ember/pkg/profile"
	"github.com/embermc/ember/pkg/proto"
	"github.com/embermc/ember/pkg/proto/packet"
	"github.com/embermc/ember/pkg/proto/states"
	"github.com/embermc/ember/pkg/proto/version"
	"github.com/embermc/ember/pkg/proxy/phase"
	"github.com/embermc/ember/pkg/util/errs"
	"github.com/embermc/ember/pkg/util/uuid"
)

// fakeConn is an in-memory netmc.MinecraftConn recording everything the
// session handlers do to it.
type fakeConn struct {
	ctx      context.Context
	cancel   context.CancelFunc
	protocol proto.Protocol
	addr     net.Addr

	mu        sync.Mutex
	state     states.State
	connType  phase.ConnectionType
	handler   netmc.SessionHandler
	written   []proto.Packet
	threshold int
	closed    bool
}

var _ netmc.MinecraftConn = (*fakeConn)(nil)

func newFakeConn(protocol proto.Protocol) *fakeConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeConn{
		ctx:      ctx,
		cancel:   cancel,
		protocol: protocol,
		addr:     &net.TCPAddr{IP: net.IPv4(203, 0, 113, 42), Port: 25565},
		state:    states.LoginState,
		connType: phase.Vanilla,
	}
}

func (c *fakeConn) Context() context.Context { return c.ctx }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	handler := c.handler
	c.mu.Unlock()
	c.cancel()
	if handler != nil {
		handler.Disconnected()
	}
	return nil
}

func (c *fakeConn) State() states.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) SetState(state states.State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *fakeConn) Protocol() proto.Protocol     { return c.protocol }
func (c *fakeConn) SetProtocol(p proto.Protocol) { c.protocol = p }
func (c *fakeConn) RemoteAddr() net.Addr         { return c.addr }

func (c *fakeConn) Type() phase.ConnectionType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connType
}

func (c *fakeConn) SetType(t phase.ConnectionType) {
	c.mu.Lock()
	c.connType = t
	c.mu.Unlock()
}

func (c *fakeConn) SessionHandler() netmc.SessionHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

func (c *fakeConn) SetSessionHandler(handler netmc.SessionHandler) {
	c.mu.Lock()
	old := c.handler
	c.handler = handler
	c.mu.Unlock()
	if old != nil {
		old.Deactivated()
	}
	handler.Activated()
}

func (c *fakeConn) SetCompressionThreshold(threshold int) error {
	c.mu.Lock()
	c.threshold = threshold
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) WritePacket(p proto.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return netmc.ErrClosedConn
	}
	c.written = append(c.written, p)
	return nil
}

func (c *fakeConn) writtenPackets() []proto.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]proto.Packet(nil), c.written...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// backendLoginTest wires a player, a backend connection and the login
// session handler together the way a connection request does.
type backendLoginTest struct {
	client     *fakeConn
	backend    *fakeConn
	player     *connectedPlayer
	serverConn *serverConnection
	deps       *sessionHandlerDeps
	reqCtx     *connRequestCxt
	resultChan chan *connResponse
	handler    netmc.SessionHandler
}

func testGameProfile() *profile.GameProfile {
	id, _ := uuid.Parse("ec74f217-2f97-4c3e-91aa-2d71923520f1")
	return &profile.GameProfile{
		ID:   id,
		Name: "Steve",
		Properties: []profile.Property{
			{Name: "textures", Value: "dGV4dHVyZXM=", Signature: "c2ln"},
		},
	}
}

func setupBackendLogin(t *testing.T, cfg *config.Config) *backendLoginTest {
	t.Helper()
	client := newFakeConn(version.Minecraft_1_16.Protocol)
	player := newConnectedPlayer(client, testGameProfile(), testr.New(t))
	server := &registeredServer{info: NewServerInfo("lobby",
		&net.TCPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 25566})}
	serverConn := newServerConnection(server, player)
	backend := newFakeConn(version.Minecraft_1_16.Protocol)

	deps := &sessionHandlerDeps{
		eventMgr:       event.New(),
		configProvider: (*staticConfigProvider)(cfg),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	resultChan := make(chan *connResponse, 1)
	reqCtx := &connRequestCxt{Context: ctx, response: resultChan}

	serverConn.setConnection(backend)
	handler := newBackendLoginSessionHandler(serverConn, reqCtx, deps)
	backend.SetSessionHandler(handler)

	return &backendLoginTest{
		client:     client,
		backend:    backend,
		player:     player,
		serverConn: serverConn,
		deps:       deps,
		reqCtx:     reqCtx,
		resultChan: resultChan,
		handler:    handler,
	}
}

func pctx(p proto.Packet) *proto.PacketContext {
	return &proto.PacketContext{
		Direction: proto.ClientBound,
		Protocol:  version.Minecraft_1_16.Protocol,
		Packet:    p,
	}
}

func (b *backendLoginTest) mustResult(t *testing.T) *connResponse {
	t.Helper()
	select {
	case r := <-b.resultChan:
		return r
	case <-time.After(time.Second):
		t.Fatal("login attempt did not resolve")
		return nil
	}
}

func (b *backendLoginTest) requireUnresolved(t *testing.T) {
	t.Helper()
	select {
	case r := <-b.resultChan:
		t.Fatalf("login attempt resolved early: %+v", r)
	default:
	}
}

func legacyConfig() *config.Config {
	return &config.Config{Forwarding: config.Forwarding{Mode: config.LegacyForwardingMode}}
}

func modernConfig(secret string) *config.Config {
	return &config.Config{Forwarding: config.Forwarding{
		Mode:   config.ModernForwardingMode,
		Secret: secret,
	}}
}

func noneConfig() *config.Config {
	return &config.Config{Forwarding: config.Forwarding{Mode: config.NoneForwardingMode}}
}

func TestBackendLogin_ServerDisconnect(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	reason := `{"text":"Server is full"}`
	b.handler.HandlePacket(pctx(&packet.Disconnect{Reason: &reason}))

	r := b.mustResult(t)
	require.NoError(t, r.error)
	assert.True(t, r.Status().ServerDisconnected())
	require.NotNil(t, r.Reason())
	assert.True(t, b.backend.isClosed(), "backend connection must be torn down")
}

func TestBackendLogin_UnexpectedClose(t *testing.T) {
	t.Run("legacy mode names BungeeCord forwarding", func(t *testing.T) {
		b := setupBackendLogin(t, legacyConfig())
		_ = b.backend.Close()

		r := b.mustResult(t)
		require.Error(t, r.error)
		var silent *errs.SilentError
		require.ErrorAs(t, r.error, &silent)
		assert.Contains(t, r.error.Error(), "BungeeCord")
	})
	t.Run("other modes get the generic message", func(t *testing.T) {
		b := setupBackendLogin(t, modernConfig("s3cret"))
		_ = b.backend.Close()

		r := b.mustResult(t)
		require.Error(t, r.error)
		assert.NotContains(t, r.error.Error(), "BungeeCord")
	})
}

func TestBackendLogin_EncryptionRequest(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	b.handler.HandlePacket(pctx(&packet.EncryptionRequest{}))

	r := b.mustResult(t)
	require.ErrorIs(t, r.error, ErrServerOnlineMode)
	assert.True(t, b.backend.isClosed())
}

func TestBackendLogin_SetCompression(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	b.handler.HandlePacket(pctx(&packet.SetCompression{Threshold: 256}))

	b.requireUnresolved(t)
	assert.Equal(t, 256, b.backend.threshold)
}

func TestBackendLogin_ModernForwarding(t *testing.T) {
	const secret = "hunter2"
	b := setupBackendLogin(t, modernConfig(secret))

	b.handler.HandlePacket(pctx(&packet.LoginPluginMessage{
		ID:      7,
		Channel: forwarding.IPForwardingChannel,
		Data:    []byte{forwarding.DefaultForwardingVersion},
	}))

	written := b.backend.writtenPackets()
	require.Len(t, written, 1)
	resp, ok := written[0].(*packet.LoginPluginResponse)
	require.True(t, ok)
	assert.Equal(t, 7, resp.ID)
	assert.True(t, resp.Success)
	require.Greater(t, len(resp.Data), sha256.Size)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(resp.Data[sha256.Size:])
	assert.True(t, hmac.Equal(resp.Data[:sha256.Size], mac.Sum(nil)),
		"response must carry a valid signature over the payload")

	b.requireUnresolved(t)

	// The backend accepts the login now that it holds the forwarded identity.
	b.handler.HandlePacket(pctx(&packet.ServerLoginSuccess{
		UUID:     b.player.ID(),
		Username: b.player.Username(),
	}))

	r := b.mustResult(t)
	require.NoError(t, r.error)
	assert.True(t, r.Status().Successful())
	assert.Equal(t, states.PlayState, b.backend.State())
	assert.Same(t, b.serverConn, b.player.connectedServer())

	// The client, still logging in, gets the proxy's login success with the
	// player's real id and moves to Play.
	clientWritten := b.client.writtenPackets()
	require.Len(t, clientWritten, 1)
	success, ok := clientWritten[0].(*packet.ServerLoginSuccess)
	require.True(t, ok)
	assert.Equal(t, b.player.ID(), success.UUID)
	assert.Equal(t, "Steve", success.Username)
	assert.Equal(t, states.PlayState, b.client.State())

	// The transition handler owns the backend connection now.
	_, isTransition := b.backend.SessionHandler().(*backendTransitionSessionHandler)
	assert.True(t, isTransition)
}

func TestBackendLogin_ModernForwardingNotRequested(t *testing.T) {
	b := setupBackendLogin(t, modernConfig("hunter2"))

	// Login success without a prior identity request on the forwarding
	// channel means the backend is not set up for modern forwarding.
	b.handler.HandlePacket(pctx(&packet.ServerLoginSuccess{
		UUID:     b.player.ID(),
		Username: b.player.Username(),
	}))

	r := b.mustResult(t)
	require.NoError(t, r.error)
	assert.True(t, r.Status().ServerDisconnected())
	assert.Equal(t, ipForwardingFailure, r.Reason())
	assert.True(t, b.backend.isClosed())
	assert.Empty(t, b.client.writtenPackets(), "client must not see a login success")
}

func TestBackendLogin_ModernForwardingEmptySecret(t *testing.T) {
	b := setupBackendLogin(t, modernConfig(""))

	b.handler.HandlePacket(pctx(&packet.LoginPluginMessage{
		ID:      1,
		Channel: forwarding.IPForwardingChannel,
	}))

	r := b.mustResult(t)
	require.ErrorIs(t, r.error, forwarding.ErrInvalidSecret)
	assert.True(t, b.backend.isClosed())
}

func TestBackendLogin_ForwardingChannelOutsideModernMode(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	// Without modern forwarding the request is just an unknown message
	// and gets answered negatively.
	b.handler.HandlePacket(pctx(&packet.LoginPluginMessage{
		ID:      3,
		Channel: forwarding.IPForwardingChannel,
	}))

	written := b.backend.writtenPackets()
	require.Len(t, written, 1)
	resp := written[0].(*packet.LoginPluginResponse)
	assert.Equal(t, 3, resp.ID)
	assert.False(t, resp.Success)
	b.requireUnresolved(t)
}

func TestBackendLogin_DeclinesUnknownChannel(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	b.handler.HandlePacket(pctx(&packet.LoginPluginMessage{
		ID:      11,
		Channel: "custom:unhandled",
		Data:    []byte("hello"),
	}))

	written := b.backend.writtenPackets()
	require.Len(t, written, 1)
	resp := written[0].(*packet.LoginPluginResponse)
	assert.Equal(t, 11, resp.ID)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Data)
}

func TestBackendLogin_ExtensionSubscriberResponds(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	event.Subscribe(b.deps.eventMgr, 0, func(e *ServerLoginPluginMessageEvent) {
		assert.Equal(t, "custom:handshake", e.Channel().ID())
		assert.Equal(t, []byte("ping"), e.Contents())
		assert.Equal(t, 21, e.SequenceID())
		e.SetResult(NewServerLoginPluginMessageResult([]byte("pong")))
	})

	b.handler.HandlePacket(pctx(&packet.LoginPluginMessage{
		ID:      21,
		Channel: "custom:handshake",
		Data:    []byte("ping"),
	}))

	require.Eventually(t, func() bool {
		return len(b.backend.writtenPackets()) == 1
	}, time.Second, time.Millisecond, "subscriber response must reach the backend")

	resp := b.backend.writtenPackets()[0].(*packet.LoginPluginResponse)
	assert.Equal(t, 21, resp.ID)
	assert.True(t, resp.Success)
	assert.Equal(t, []byte("pong"), resp.Data)
}

func TestBackendLogin_ExtensionSubscriberDeclines(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	event.Subscribe(b.deps.eventMgr, 0, func(e *ServerLoginPluginMessageEvent) {
		// Leaves no result: answered negatively.
	})

	b.handler.HandlePacket(pctx(&packet.LoginPluginMessage{
		ID:      22,
		Channel: "custom:handshake",
	}))

	require.Eventually(t, func() bool {
		return len(b.backend.writtenPackets()) == 1
	}, time.Second, time.Millisecond)

	resp := b.backend.writtenPackets()[0].(*packet.LoginPluginResponse)
	assert.Equal(t, 22, resp.ID)
	assert.False(t, resp.Success)
}

func TestBackendLogin_OfflineIDWithoutForwarding(t *testing.T) {
	b := setupBackendLogin(t, noneConfig())

	b.handler.HandlePacket(pctx(&packet.ServerLoginSuccess{
		UUID:     uuid.OfflinePlayerUUID("Steve"),
		Username: "Steve",
	}))

	r := b.mustResult(t)
	require.NoError(t, r.error)
	assert.True(t, r.Status().Successful())

	// The backend hashed the name itself, so the proxy mirrors the
	// offline-mode id to the client.
	clientWritten := b.client.writtenPackets()
	require.Len(t, clientWritten, 1)
	success := clientWritten[0].(*packet.ServerLoginSuccess)
	assert.Equal(t, uuid.OfflinePlayerUUID("Steve"), success.UUID)
	assert.NotEqual(t, b.player.ID(), success.UUID)
}

func TestBackendLogin_ServerSwitchSkipsClientLoginSuccess(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())
	b.client.SetState(states.PlayState) // already playing on another server

	b.handler.HandlePacket(pctx(&packet.ServerLoginSuccess{
		UUID:     b.player.ID(),
		Username: b.player.Username(),
	}))

	r := b.mustResult(t)
	require.NoError(t, r.error)
	assert.True(t, r.Status().Successful())
	assert.Empty(t, b.client.writtenPackets(),
		"a switching client must not see the backend login exchange")
}

func TestBackendLogin_ResolvesExactlyOnce(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	reason := `{"text":"nope"}`
	b.handler.HandlePacket(pctx(&packet.Disconnect{Reason: &reason}))
	// Tearing down fires Disconnected on the handler; later packets hit the
	// settled guard. Neither may produce a second result.
	b.handler.HandlePacket(pctx(&packet.ServerLoginSuccess{
		UUID: b.player.ID(), Username: b.player.Username(),
	}))
	b.handler.Disconnected()

	r := b.mustResult(t)
	assert.True(t, r.Status().ServerDisconnected())
	select {
	case r := <-b.resultChan:
		t.Fatalf("got second result: %+v", r)
	default:
	}
}

func TestBackendLogin_ContextCancelResolves(t *testing.T) {
	client := newFakeConn(version.Minecraft_1_16.Protocol)
	player := newConnectedPlayer(client, testGameProfile(), testr.New(t))
	server := &registeredServer{info: NewServerInfo("lobby", nil)}
	serverConn := newServerConnection(server, player)
	backend := newFakeConn(version.Minecraft_1_16.Protocol)

	deps := &sessionHandlerDeps{
		eventMgr:       event.New(),
		configProvider: (*staticConfigProvider)(legacyConfig()),
	}
	ctx, cancel := context.WithCancel(context.Background())
	resultChan := make(chan *connResponse, 1)
	reqCtx := &connRequestCxt{Context: ctx, response: resultChan}

	serverConn.setConnection(backend)
	backend.SetSessionHandler(newBackendLoginSessionHandler(serverConn, reqCtx, deps))

	cancel()

	select {
	case r := <-resultChan:
		require.Error(t, r.error)
		assert.Contains(t, r.error.Error(), "deadline exceeded")
	case <-time.After(time.Second):
		t.Fatal("canceled context must resolve the attempt")
	}
	require.Eventually(t, backend.isClosed, time.Second, time.Millisecond)
}

func TestBackendLogin_ModernForgeSwitchResetsClient(t *testing.T) {
	client := newFakeConn(version.Minecraft_1_16.Protocol)
	client.SetType(phase.ModernForge)
	client.SetState(states.PlayState)
	player := newConnectedPlayer(client, testGameProfile(), testr.New(t))

	oldBackend := newFakeConn(version.Minecraft_1_16.Protocol)
	oldServer := newServerConnection(
		&registeredServer{info: NewServerInfo("old", nil)}, player)
	oldServer.setConnection(oldBackend)
	player.setConnectedServer(oldServer)

	newBackend := newFakeConn(version.Minecraft_1_16.Protocol)
	newServer := newServerConnection(
		&registeredServer{info: NewServerInfo("new", nil)}, player)
	newServer.setConnection(newBackend)

	deps := &sessionHandlerDeps{
		eventMgr:       event.New(),
		configProvider: (*staticConfigProvider)(legacyConfig()),
	}
	ctx, cancelCtx := context.WithCancel(context.Background())
	t.Cleanup(cancelCtx)
	reqCtx := &connRequestCxt{Context: ctx, response: make(chan *connResponse, 1)}

	newBackend.SetSessionHandler(newBackendLoginSessionHandler(newServer, reqCtx, deps))

	assert.True(t, oldBackend.isClosed(), "old backend must be flushed and closed")
	assert.Nil(t, player.connectedServer())
	_, isTransition := client.SessionHandler().(*clientTransitionSessionHandler)
	assert.True(t, isTransition, "client must be parked in the transition handler")
}

func TestLoginToBackend(t *testing.T) {
	client := newFakeConn(version.Minecraft_1_16.Protocol)
	player := newConnectedPlayer(client, testGameProfile(), testr.New(t))
	server := &registeredServer{info: NewServerInfo("lobby", nil)}
	serverConn := newServerConnection(server, player)
	backend := newFakeConn(version.Minecraft_1_16.Protocol)

	deps := &sessionHandlerDeps{
		eventMgr:       event.New(),
		configProvider: (*staticConfigProvider)(legacyConfig()),
	}

	type outcome struct {
		result ConnectionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := serverConn.loginToBackend(context.Background(), backend, deps)
		done <- outcome{result, err}
	}()

	// The login start packet must go out before anything else.
	require.Eventually(t, func() bool {
		return len(backend.writtenPackets()) >= 1
	}, time.Second, time.Millisecond)
	login, ok := backend.writtenPackets()[0].(*packet.ServerLogin)
	require.True(t, ok)
	assert.Equal(t, "Steve", login.Username)
	assert.Equal(t, player.ID(), login.HolderID)

	backend.SessionHandler().HandlePacket(pctx(&packet.ServerLoginSuccess{
		UUID:     player.ID(),
		Username: player.Username(),
	}))

	select {
	case o := <-done:
		require.NoError(t, o.err)
		assert.True(t, o.result.Status().Successful())
	case <-time.After(time.Second):
		t.Fatal("loginToBackend did not return")
	}
}

func TestCreateLegacyForwardingAddress(t *testing.T) {
	client := newFakeConn(version.Minecraft_1_16.Protocol)
	player := newConnectedPlayer(client, testGameProfile(), testr.New(t))
	serverConn := newServerConnection(
		&registeredServer{info: NewServerInfo("lobby", nil)}, player)

	addr := serverConn.createLegacyForwardingAddress("play.example.org")
	fields := strings.Split(addr, "\000")
	require.Len(t, fields, 4)
	assert.Equal(t, "play.example.org", fields[0])
	assert.Equal(t, "203.0.113.42", fields[1])
	assert.Equal(t, player.GameProfile().ID.Undashed(), fields[2])
	assert.Contains(t, fields[3], `"textures"`)
}

func TestForwardingStrategyFor(t *testing.T) {
	assert.IsType(t, &noneForwardingStrategy{}, forwardingStrategyFor(noneConfig()))
	assert.IsType(t, &legacyForwardingStrategy{}, forwardingStrategyFor(legacyConfig()))
	assert.IsType(t, &modernForwardingStrategy{}, forwardingStrategyFor(modernConfig("s")))

	assert.False(t, forwardingStrategyFor(noneConfig()).confirmationRequired())
	assert.False(t, forwardingStrategyFor(legacyConfig()).confirmationRequired())
	assert.True(t, forwardingStrategyFor(modernConfig("s")).confirmationRequired())
}

func TestForwardingStrategy_HandshakeAddr(t *testing.T) {
	client := newFakeConn(version.Minecraft_1_16.Protocol)
	player := newConnectedPlayer(client, testGameProfile(), testr.New(t))
	serverConn := newServerConnection(
		&registeredServer{info: NewServerInfo("lobby", nil)}, player)

	plain := forwardingStrategyFor(noneConfig()).handshakeAddr("vhost", serverConn)
	assert.Equal(t, "vhost", plain)

	injected := forwardingStrategyFor(legacyConfig()).handshakeAddr("vhost", serverConn)
	assert.True(t, strings.HasPrefix(injected, "vhost\000"))
	assert.NotEqual(t, "vhost", injected)
}

func TestBackendLogin_IgnoresUnknownPackets(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	b.handler.HandlePacket(&proto.PacketContext{
		Direction: proto.ClientBound,
		Protocol:  version.Minecraft_1_16.Protocol,
		PacketID:  0x7f,
		Payload:   []byte{0x7f, 0x01, 0x02},
	})

	b.requireUnresolved(t)
	assert.False(t, b.backend.isClosed())
	assert.Empty(t, b.backend.writtenPackets())
}

func TestDisconnectResultForPacket_BadReason(t *testing.T) {
	b := setupBackendLogin(t, legacyConfig())

	reason := "not json"
	b.handler.HandlePacket(pctx(&packet.Disconnect{Reason: &reason}))

	// A malformed reason must still settle the attempt.
	r := b.mustResult(t)
	require.NoError(t, r.error)
	assert.True(t, r.Status().ServerDisconnected())
}
