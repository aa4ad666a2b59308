package router

import (
	"errors"
	"net/http"

	authsvc "sacco-backend/internal/application/auth"
	divsvc "sacco-backend/internal/application/dividends"
	"sacco-backend/internal/application/emails"
	healthsvc "sacco-backend/internal/application/health"
	"sacco-backend/internal/application/ledger"
	shsvc "sacco-backend/internal/application/shareholders"
	sharesvc "sacco-backend/internal/application/shares"
	txsvc "sacco-backend/internal/application/transactions"
	transfersvc "sacco-backend/internal/application/transfers"
	"sacco-backend/internal/config"
	"sacco-backend/internal/constants"
	"sacco-backend/internal/infrastructure/database"
	authhandler "sacco-backend/internal/interfaces/handlers/auth"
	divhandler "sacco-backend/internal/interfaces/handlers/dividends"
	healthhandler "sacco-backend/internal/interfaces/handlers/health"
	memberhandler "sacco-backend/internal/interfaces/handlers/member"
	shhandler "sacco-backend/internal/interfaces/handlers/shareholders"
	sharehandler "sacco-backend/internal/interfaces/handlers/shares"
	txhandler "sacco-backend/internal/interfaces/handlers/transactions"
	transferhandler "sacco-backend/internal/interfaces/handlers/transfers"
	"sacco-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var errNoDatabase = errors.New("router: no database configured (set DATABASE_URL_DEV, DATABASE_URL_TEST or DATABASE_URL_PROD)")

// Services groups the application services shared by the HTTP layer and
// the dividend scheduler.
type Services struct {
	Ledger       *ledger.Service
	Shareholders *shsvc.Service
	Shares       *sharesvc.Service
	Transfers    *transfersvc.Service
	Dividends    *divsvc.Service
	Transactions *txsvc.Service
	Auth         *authsvc.Service
}

// NewServices wires every service over one database handle.
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	l := ledger.NewService(db, cfg.SettlementRetries)
	sh := &shsvc.Service{DB: db}
	return &Services{
		Ledger:       l,
		Shareholders: sh,
		Shares:       &sharesvc.Service{DB: db, Ledger: l},
		Transfers:    transfersvc.NewService(db, l, cfg.Currency),
		Dividends:    divsvc.NewService(db, l, cfg.Currency),
		Transactions: &txsvc.Service{DB: db, Ledger: l, Currency: cfg.Currency},
		Auth:         &authsvc.Service{DB: db, Shareholders: sh},
	}
}

// CreateApp connects Postgres (or SQLite) and Redis, migrates the schema and
// returns the configured app.
func CreateApp(cfg *config.Config) (*fiber.App, *Services, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errNoDatabase
	}
	sessionHandler, rdb, err := middleware.Session(sessionConfig(cfg))
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}
	svc := NewServices(cfg, db)
	return NewApp(cfg, db, rdb, sessionHandler, svc), svc, rdb, nil
}

// NewApp mounts middleware and routes over already-open connections.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, sessionHandler fiber.Handler, svc *Services) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Service:        &healthsvc.Service{Rdb: rdb, DB: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	var mailer emails.Sender
	if cfg.SendinblueAPIKey != "" {
		mailer = &emails.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom, OrgName: cfg.SaccoName}
	}

	api := app.Group("/api/v1")

	// Auth
	ah := &authhandler.Handlers{
		UserFinder: &authsvc.GormUserFinder{DB: db},
		Service:    svc.Auth,
		Rdb:        rdb,
		Config:     sessionConfig(cfg),
		Mailer:     mailer,
	}
	authGroup := api.Group("/auth")
	authGroup.Post("/login", middleware.NewRateLimiter(cfg.LoginRatePerMinute).Handler(), ah.Login)
	authGroup.Post("/register", ah.Register)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	// Shareholders
	shh := &shhandler.Handlers{Service: svc.Shareholders, Ledger: svc.Ledger, Mailer: mailer}
	shg := api.Group("/shareholders", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ManageShareholders))
	shg.Post("/", shh.CreateShareholder)
	shg.Get("/", shh.ListShareholders)
	shg.Get("/:id", shh.GetShareholder)
	shg.Put("/:id", shh.UpdateShareholder)
	shg.Patch("/:id/approve", shh.ApproveShareholder)
	shg.Delete("/:id", shh.DeleteShareholder)
	shg.Get("/:id/shares", shh.Shares)
	shg.Get("/:id/ledger", middleware.AuthorizePermission(constants.ViewReports), shh.Ledger)
	shg.Get("/:id/reconcile", middleware.AuthorizePermission(constants.ViewReports), shh.Reconcile)

	// Shares
	sh := &sharehandler.Handlers{Service: svc.Shares}
	sg := api.Group("/shares", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ManageShares))
	sg.Post("/", sh.CreateShare)
	sg.Get("/", sh.ListShares)
	sg.Get("/next-certificate-number", sh.NextCertificateNumber)
	sg.Get("/:id", sh.GetShare)
	sg.Get("/:id/transactions", sh.Transactions)
	sg.Put("/:id", sh.UpdateShare)
	sg.Delete("/:id", sh.DeleteShare)

	// Transfers
	trh := &transferhandler.Handlers{Service: svc.Transfers}
	trg := api.Group("/transfers", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ManageTransfers))
	trg.Post("/", trh.CreateTransfer)
	trg.Get("/", trh.ListTransfers)
	trg.Get("/:id", trh.GetTransfer)
	trg.Put("/:id", trh.UpdateTransfer)
	trg.Post("/:id/cancel", trh.CancelTransfer)
	trg.Delete("/:id", trh.DeleteTransfer)

	// Dividends
	dh := &divhandler.Handlers{Service: svc.Dividends}
	dg := api.Group("/dividends", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ManageDividends))
	dg.Post("/calculate", dh.Calculate)
	dg.Post("/", dh.CreateDividend)
	dg.Get("/", dh.ListDividends)
	dg.Get("/:id", dh.GetDividend)
	dg.Put("/:id", dh.UpdateDividend)
	dg.Delete("/:id", dh.DeleteDividend)
	dg.Post("/:id/distribute", dh.Distribute)
	dg.Get("/:id/payouts", dh.Payouts)

	// Transactions
	txh := &txhandler.Handlers{Service: svc.Transactions}
	txg := api.Group("/transactions", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ManageTransactions))
	txg.Post("/", txh.CreateTransaction)
	txg.Get("/", txh.GetTransactions)
	txg.Get("/summary", middleware.AuthorizePermission(constants.ViewReports), txh.Summary)
	txg.Get("/:id", txh.GetTransaction)
	txg.Put("/:id", txh.UpdateTransaction)
	txg.Delete("/:id", txh.DeleteTransaction)

	// Member self-service
	mh := &memberhandler.Handlers{Shareholders: svc.Shareholders, Ledger: svc.Ledger, Transfers: svc.Transfers}
	mg := api.Group("/member", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ViewOwnAccount))
	mg.Get("/profile", mh.Profile)
	mg.Get("/ledger", mh.Ledger)
	mg.Get("/transfers", mh.Transfers)

	return app
}

func sessionConfig(cfg *config.Config) middleware.SessionConfig {
	return middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
}

// Handler adapts the app for net/http hosts (serverless entrypoints).
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
