package main

import (
	"fmt"
	"net/http"
	"time"

	_ "github.com/itayelfasy/nominal-assignment/docs" // Import generated docs
	"github.com/itayelfasy/nominal-assignment/internal/config"
	"github.com/itayelfasy/nominal-assignment/internal/controllers"
	"github.com/itayelfasy/nominal-assignment/internal/database"
	"github.com/itayelfasy/nominal-assignment/internal/middleware"
	"github.com/itayelfasy/nominal-assignment/internal/observability"
	"github.com/itayelfasy/nominal-assignment/internal/quickbooks"
	"github.com/itayelfasy/nominal-assignment/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/swaggo/files"
	"github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

var (
	db                *gorm.DB
	qbClient          *quickbooks.Client
	tokenService      services.TokenService
	accountService    services.AccountService
	authController    *controllers.AuthController
	accountController *controllers.AccountController
	configuration     *config.Config
)

// @title QuickBooks Integration API
// @version 1.0
// @description API for QuickBooks Online integration using OAuth 2.0
// @host localhost:8080
// @BasePath /
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration = loadConfig()

	// Initialize error reporting
	if err := observability.InitSentry(configuration.SentryDSN, config.GetEnvWithDefault("APP_ENV", "development")); err != nil {
		log.WithError(err).Warn("Sentry initialization failed, continuing without it")
	}
	defer observability.FlushSentry()

	// Initialize database connection
	setupDatabase(configuration)

	// Initialize upstream client, services and controllers
	qbClient = quickbooks.NewClient(configuration)
	tokenService = services.NewTokenService(db, qbClient)
	accountService = services.NewAccountService(tokenService, qbClient)
	authController = controllers.NewAuthController(qbClient, tokenService)
	accountController = controllers.NewAccountController(accountService, configuration.QuickBooksRealmID)

	// Initialize Gin router
	var router *gin.Engine = setupRouter()

	// Start the server
	log.Infof("Starting server on %s:%d", configuration.Host, configuration.Port)
	router.Run(fmt.Sprintf("%v:%d", configuration.Host, configuration.Port))
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	log.Info("Loading configuration from environment variables")
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	log.Infof("Configuration loaded: %+v", conf)
	return conf
}

// setupDatabase initializes the database connection and migrates the credential table
func setupDatabase(conf *config.Config) *gorm.DB {
	var err error
	db, err = database.InitDatabase(database.FromConfig(conf))
	checkPanicErr(err)
	return db
}

// setupRouter initializes the Gin router and sets up the routes
// It returns the configured router
func setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(observability.Recover())
	router.Use(middleware.CORS())

	// Define routes
	setupRoutes(router)

	return router
}

// setupRoutes defines the routes for the Gin router
func setupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", healthCheckHandler)

	// Welcome endpoint listing the API surface
	router.GET("/", rootHandler)

	// OAuth consent flow
	router.GET("/auth/quickbooks", authController.BeginAuth)
	router.GET("/callback", authController.Callback)

	// Accounts proxy, optionally guarded by a service token
	accounts := router.Group("/")
	if configuration.RequireServiceToken {
		accounts.Use(middleware.RequireServiceToken([]byte(configuration.JWTSecret)))
	}
	accounts.GET("/accounts", accountController.GetAccounts)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// rootHandler lists the endpoints exposed by the service
func rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the QuickBooks Integration API",
		"endpoints": gin.H{
			"auth":     "/auth/quickbooks",
			"callback": "/callback",
			"accounts": "/accounts",
		},
	})
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "quickbooks-integration",
	})
}
