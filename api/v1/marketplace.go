package v1

import (
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/auth"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications/websocket"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/scheduling"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/tasks"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/verification"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/storage"
)

// Dependencies are the external resources the marketplace API is built from.
// A nil DB selects the in-process repositories.
type Dependencies struct {
	DB             *sqlx.DB
	Gorm           *gorm.DB
	Documents      storage.S3Client
	DocumentBucket string
	VerifierToken  string
	Pusher         notifications.Pusher
	Calendar       scheduling.CalendarConfig
	MaxPending     int
	MaxTries       uint
	Logger         *zap.Logger
}

// MarketplaceAPI holds the marketplace API dependencies
type MarketplaceAPI struct {
	Tasks         *tasks.Service
	Verification  *verification.Service
	Calendar      *scheduling.Calendar
	Resolver      *scheduling.Resolver
	Notifications *notifications.Service
	Emitter       *notifications.Emitter
	Realtime      *websocket.Manager

	handlers []routeRegistrar
}

type routeRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

type repositories struct {
	tasks        tasks.Repository
	scheduling   scheduling.Repository
	verification verification.Repository
	store        notifications.Store
	preferences  notifications.PreferenceStore
	tx           database.TxManager
}

// SetupMarketplaceAPI sets up the marketplace API with all dependencies
func SetupMarketplaceAPI(deps Dependencies) (*MarketplaceAPI, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	repos, err := newRepositories(deps)
	if err != nil {
		return nil, err
	}

	documents := deps.Documents
	if documents == nil {
		documents = storage.NewMemoryS3Client()
	}

	realtime := websocket.NewManager(logger.Named("realtime"))
	notifier := notifications.NewService(repos.store, realtime, deps.Pusher, logger.Named("notifications"),
		notifications.WithPreferences(repos.preferences))

	var emitterOpts []notifications.EmitterOption
	if deps.MaxPending > 0 {
		emitterOpts = append(emitterOpts, notifications.WithMaxPending(deps.MaxPending))
	}
	if deps.MaxTries > 0 {
		emitterOpts = append(emitterOpts, notifications.WithBackOff(
			func() backoff.BackOff { return backoff.NewExponentialBackOff() }, deps.MaxTries))
	}
	emitter := notifications.NewEmitter(notifier, logger.Named("emitter"), emitterOpts...)

	calendar := scheduling.NewCalendar(repos.scheduling, repos.tx, deps.Calendar, logger.Named("calendar"))
	resolver := scheduling.NewResolver(repos.scheduling, repos.tx, logger.Named("resolver"))
	taskService := tasks.NewService(repos.tasks, resolver, repos.tx, emitter, logger.Named("tasks"))
	verificationService := verification.NewService(
		repos.verification,
		repos.tx,
		verification.NewDocumentStore(documents, deps.DocumentBucket),
		emitter,
		logger.Named("verification"),
	)

	return &MarketplaceAPI{
		Tasks:         taskService,
		Verification:  verificationService,
		Calendar:      calendar,
		Resolver:      resolver,
		Notifications: notifier,
		Emitter:       emitter,
		Realtime:      realtime,
		handlers: []routeRegistrar{
			tasks.NewHandler(taskService, logger),
			scheduling.NewHandler(calendar, resolver, logger),
			verification.NewHandler(verificationService, auth.Verifier(deps.VerifierToken, logger), logger),
			notifications.NewHandler(notifier, realtime, logger),
		},
	}, nil
}

func newRepositories(deps Dependencies) (*repositories, error) {
	if deps.DB == nil {
		taskRepo := tasks.NewMemoryRepository()
		schedulingRepo := scheduling.NewMemoryRepository()
		verificationRepo := verification.NewMemoryRepository()
		return &repositories{
			tasks:        taskRepo,
			scheduling:   schedulingRepo,
			verification: verificationRepo,
			store:        notifications.NewMemoryStore(),
			preferences:  notifications.NewMemoryPreferenceStore(),
			tx:           database.NewMemoryTxManager(taskRepo, schedulingRepo, verificationRepo),
		}, nil
	}

	if deps.Gorm == nil {
		return nil, fmt.Errorf("gorm handle is required with a sql database")
	}
	store, err := notifications.NewGormStore(deps.Gorm)
	if err != nil {
		return nil, err
	}
	preferences, err := notifications.NewGormPreferenceStore(deps.Gorm)
	if err != nil {
		return nil, err
	}
	return &repositories{
		tasks:        tasks.NewRepository(deps.DB),
		scheduling:   scheduling.NewRepository(deps.DB),
		verification: verification.NewRepository(deps.DB),
		store:        store,
		preferences:  preferences,
		tx:           database.NewTxManager(deps.DB),
	}, nil
}

// RegisterMarketplaceRoutes registers every marketplace route on the router group
func RegisterMarketplaceRoutes(router *gin.RouterGroup, api *MarketplaceAPI) {
	for _, h := range api.handlers {
		h.RegisterRoutes(router)
	}
}

// Close drops realtime connections
func (a *MarketplaceAPI) Close() {
	a.Realtime.Close()
}
