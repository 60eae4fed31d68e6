package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/database/postgres"
	attendanceHandler "github.com/tararauzumaki/autoattend/internal/api/attendance/handler"
	attendanceRepository "github.com/tararauzumaki/autoattend/internal/api/attendance/repository"
	attendanceService "github.com/tararauzumaki/autoattend/internal/api/attendance/service"
	enrollmentHandler "github.com/tararauzumaki/autoattend/internal/api/enrollment/handler"
	enrollmentRepository "github.com/tararauzumaki/autoattend/internal/api/enrollment/repository"
	enrollmentService "github.com/tararauzumaki/autoattend/internal/api/enrollment/service"
	"github.com/tararauzumaki/autoattend/internal/middleware"
	"github.com/tararauzumaki/autoattend/internal/recognition"
	"github.com/tararauzumaki/autoattend/pkg/extractor"
	"github.com/tararauzumaki/autoattend/pkg/redis"
	"github.com/tararauzumaki/autoattend/pkg/s3"
	"github.com/tararauzumaki/autoattend/pkg/utils"
)

type ServerOption func(*Server) error

type Server struct {
	engine          *fiber.App
	db              *sqlx.DB
	log             *logrus.Logger
	middleware      middleware.Middleware
	validator       *validator.Validate
	utils           utils.IUtils
	handlers        []handler
	redisServer     redis.IRedis
	extractorClient extractor.IExtractor
	s3Client        s3.ItfS3
	scheduler       *gocron.Scheduler
	sessionDomain   attendanceService.SessionDomain
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithExtractorClient(client extractor.IExtractor) ServerOption {
	return func(s *Server) error {
		s.extractorClient = client
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithScheduler() ServerOption {
	return func(s *Server) error {
		s.scheduler = gocron.NewScheduler(time.Local)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Enrollment Domain
	enrollmentRepo := enrollmentRepository.New(s.db, s.log)
	enrollmentServices := enrollmentService.New(s.log, enrollmentRepo, s.s3Client, s.extractorClient, s.utils)
	enrollmentHandlers := enrollmentHandler.New(s.log, enrollmentServices, s.validator, s.middleware)

	// Attendance Domain
	builder := recognition.NewBuilder(s.log, s.s3Client, s.extractorClient)
	matcher := recognition.NewMatcherFromEnv()
	attendanceRepo := attendanceRepository.New(s.db, s.log)
	attendanceServices := attendanceService.New(s.log, attendanceRepo, enrollmentRepo, s.redisServer, builder, matcher, s.extractorClient, s.utils)
	attendanceHandlers := attendanceHandler.New(s.log, attendanceServices, s.validator, s.middleware)

	s.sessionDomain = attendanceServices.Session()

	s.setupHealthCheck()
	s.handlers = append(s.handlers, enrollmentHandlers, attendanceHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())
	router.Use(s.middleware.NewRateLimiter)

	for _, h := range s.handlers {
		h.Start(router)
	}

	if s.scheduler != nil && s.sessionDomain != nil {
		if _, err := s.scheduler.Every(10).Minutes().Do(s.sessionDomain.ReapStaleSessions); err != nil {
			return fmt.Errorf("failed to schedule session reaper: %w", err)
		}
		s.scheduler.StartAsync()
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", port)); err != nil {
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		if s.extractorClient != nil {
			s.extractorClient.Close()
		}
		return err
	}

	return nil
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
