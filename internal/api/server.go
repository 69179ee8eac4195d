package api

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/volunteerhub/volunteer-hub-api/docs"
	v1 "github.com/volunteerhub/volunteer-hub-api/internal/api/handler/v1"
	"github.com/volunteerhub/volunteer-hub-api/internal/api/middleware"
	"github.com/volunteerhub/volunteer-hub-api/internal/config"
	"github.com/volunteerhub/volunteer-hub-api/internal/repository"
	"github.com/volunteerhub/volunteer-hub-api/internal/repository/dao"
	"github.com/volunteerhub/volunteer-hub-api/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	// Registrations is exposed so the app can run the periodic counter
	// reconciliation sweep against the same service instance.
	Registrations *service.RegistrationService
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	authHandler := s.initAuthHandler(db)
	userHandler := s.initUserHandler(db)
	eventHandler := s.initEventHandler(db)
	registrationHandler := s.initRegistrationHandler(db)
	s.MountHandlers(authHandler, userHandler, eventHandler, registrationHandler)

	return s
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewAuthService(repo)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initUserHandler(db *gorm.DB) *v1.UserHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewUserService(repo)
	handler := v1.NewUserHandler(svc)

	return handler
}

func (s *Server) initEventHandler(db *gorm.DB) *v1.EventHandler {
	eventDAO := dao.NewEventDAO(db)
	repo := repository.NewEventRepository(eventDAO)
	svc := service.NewEventService(repo, service.NewLogNotifier())
	uSvc := service.NewUserService(repository.NewUserRepository(dao.NewUserDAO(db)))
	handler := v1.NewEventHandler(svc, uSvc)

	return handler
}

func (s *Server) initRegistrationHandler(db *gorm.DB) *v1.RegistrationHandler {
	registrationDAO := dao.NewRegistrationDAO(db)
	repo := repository.NewRegistrationRepository(registrationDAO)
	eventRepo := repository.NewEventRepository(dao.NewEventDAO(db))

	cutoff := service.DefaultRegistrationCutoff
	if s.Config.API.RegistrationCutoffHours > 0 {
		cutoff = time.Duration(s.Config.API.RegistrationCutoffHours) * time.Hour
	}

	svc := service.NewRegistrationService(repo, eventRepo, service.NewLogNotifier(), cutoff)
	s.Registrations = svc

	eventSvc := service.NewEventService(eventRepo, service.NewLogNotifier())
	uSvc := service.NewUserService(repository.NewUserRepository(dao.NewUserDAO(db)))
	handler := v1.NewRegistrationHandler(svc, eventSvc, uSvc)

	return handler
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(authHandler *v1.AuthHandler, userHandler *v1.UserHandler, eventHandler *v1.EventHandler, registrationHandler *v1.RegistrationHandler) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	users := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		users.GET("/users", userHandler.HandleListUsers)
		users.GET("/users/:userID", userHandler.HandleGetUser)
	}

	events := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		events.GET("/events", eventHandler.HandleListEvents)
		events.POST("/events", eventHandler.HandleCreateEvent)
		events.GET("/events/:id", eventHandler.HandleGetEvent)
		events.PATCH("/events/:id", eventHandler.HandleUpdateEvent)
		events.POST("/events/:id/submit", eventHandler.HandleSubmitEvent)
		events.POST("/events/:id/approve", eventHandler.HandleApproveEvent)
		events.POST("/events/:id/reject", eventHandler.HandleRejectEvent)
		events.POST("/events/:id/complete", registrationHandler.HandleCompleteEvent)

		events.POST("/events/:id/registrations", registrationHandler.HandleRegister)
		events.DELETE("/events/:id/registrations", registrationHandler.HandleCancelRegistration)
		events.GET("/events/:id/registrations", registrationHandler.HandleListEventRegistrations)
	}

	registrations := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		registrations.GET("/registrations", registrationHandler.HandleListMyRegistrations)
		registrations.GET("/registrations/:id", registrationHandler.HandleGetRegistration)
		registrations.POST("/registrations/:id/approve", registrationHandler.HandleApproveRegistration)
		registrations.POST("/registrations/:id/reject", registrationHandler.HandleRejectRegistration)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Volunteer Hub API"
	docs.SwaggerInfo.Description = "Volunteer event and registration workflow API."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
