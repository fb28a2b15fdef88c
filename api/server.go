package api

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/katatrina/gundam-live/internal/backend"
	"github.com/katatrina/gundam-live/internal/live"
	"github.com/katatrina/gundam-live/internal/notification"
	"github.com/katatrina/gundam-live/internal/realtime"
	"github.com/katatrina/gundam-live/internal/session"
	"github.com/katatrina/gundam-live/internal/token"
	"github.com/katatrina/gundam-live/internal/util"
	"github.com/rs/zerolog/log"
)

// TransportFactory opens the push transport of one hub for one session.
// An empty session is used for public streams.
type TransportFactory func(hubURL string, sess session.Session) realtime.Transport

type Server struct {
	router     *gin.Engine
	tokenMaker token.Maker
	config     *util.Config
	backend    *backend.Client
	transports TransportFactory
	views      *viewRegistry[*live.AuctionView]
	centers    *viewRegistry[*notification.Center]
}

// NewServer creates a new HTTP server and set up routing.
func NewServer(config *util.Config, backendClient *backend.Client, transports TransportFactory) (*Server, error) {
	// Create a new JWT token maker
	tokenMaker, err := token.NewJWTMaker(config.TokenSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token maker: %w", err)
	}
	log.Info().Msg("Token maker created successfully ✅")

	if transports == nil {
		transports = NewTransportFactory(config)
	}

	server := &Server{
		tokenMaker: tokenMaker,
		config:     config,
		backend:    backendClient,
		transports: transports,
		views:      newViewRegistry[*live.AuctionView](),
		centers:    newViewRegistry[*notification.Center](),
	}

	server.setupRouter()
	return server, nil
}

// NewTransportFactory picks the push transport configured by REALTIME_TRANSPORT.
func NewTransportFactory(config *util.Config) TransportFactory {
	switch config.RealtimeTransport {
	case util.TransportNATS:
		return func(_ string, _ session.Session) realtime.Transport {
			natsConfig := realtime.DefaultNATSConfig()
			natsConfig.URL = config.NATSURL
			natsConfig.SubjectPrefix = config.NATSSubjectPrefix
			natsConfig.Timeout = config.RequestTimeout
			return realtime.NewNATSTransport(natsConfig)
		}
	default:
		return func(hubURL string, sess session.Session) realtime.Transport {
			return realtime.NewWebSocketTransport(hubURL, sess.AccessToken, realtime.DefaultWebSocketConfig())
		}
	}
}

// setupRouter configures the HTTP server routes.
func (server *Server) setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	v1 := router.Group("/v1")

	v1.POST("/tokens/verify", server.verifyAccessToken)

	// Bảng bước giá
	v1.GET("/increments", server.listIncrements)

	// API công khai cho phiên đấu giá (không cần đăng nhập)
	auctionPublicGroup := v1.Group("/auctions")
	{
		// Trạng thái hiện tại của phiên đấu giá
		auctionPublicGroup.GET(":auctionID/status", server.getAuctionStatus)

		// Endpoint SSE: bảng giá, lịch sử giá và trạng thái
		auctionPublicGroup.GET(":auctionID/stream", server.streamAuction)
	}

	// API đặt giá tự động của người dùng (cần đăng nhập)
	userAuctionGroup := v1.Group("/users/me/auctions", authMiddleware(server.tokenMaker))
	{
		userAuctionGroup.GET(":auctionID/auto-bid", server.getAutoBid)
		userAuctionGroup.PUT(":auctionID/auto-bid", server.activateAutoBid)
		userAuctionGroup.DELETE(":auctionID/auto-bid", server.deactivateAutoBid)
	}

	userNotificationGroup := v1.Group("/users/me/notifications", authMiddleware(server.tokenMaker))
	{
		userNotificationGroup.GET("stream", server.streamNotifications)
		userNotificationGroup.POST(":notificationID/read", server.markNotificationRead)
	}

	// Nhóm API cho tranh chấp
	disputeGroup := v1.Group("/disputes", authMiddleware(server.tokenMaker))
	{
		disputeGroup.GET(":disputeID/messages", server.getDisputeMessages)
		disputeGroup.GET(":disputeID/stream", server.streamDispute)
	}

	server.router = router
	return router
}

// Start runs the HTTP server on a specific address.
func (server *Server) Start(address string) error {
	return server.router.Run(address)
}

// newManager builds the realtime manager of one view.
func (server *Server) newManager(name string, hubURL string, sess session.Session) *realtime.Manager {
	return realtime.NewManager(name, server.transports(hubURL, sess),
		realtime.WithReconnect(
			server.config.ReconnectMaxAttempts,
			server.config.ReconnectBaseDelay,
			server.config.ReconnectMaxDelay,
		),
		realtime.WithHandshakeTimeout(server.config.RequestTimeout),
	)
}
