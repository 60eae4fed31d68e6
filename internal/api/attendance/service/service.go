package attendanceService

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	attendanceRepository "github.com/tararauzumaki/autoattend/internal/api/attendance/repository"
	enrollmentRepository "github.com/tararauzumaki/autoattend/internal/api/enrollment/repository"
	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/internal/recognition"
	"github.com/tararauzumaki/autoattend/pkg/redis"
	"github.com/tararauzumaki/autoattend/pkg/utils"
)

type AttendanceService interface {
	Ledger() LedgerDomain
	Session() SessionDomain
	Report() ReportDomain
	GetRepository() attendanceRepository.Repository
}

// LedgerDomain owns the append-only attendance records. It doubles as the
// recognition loop's event sink.
type LedgerDomain interface {
	RecordPresent(c context.Context, event entity.RecognitionEvent) error
	HandleRecognition(c context.Context, event entity.RecognitionEvent) error
	CloseDay(c context.Context, courseID, day string) (*attendance.CloseSessionResponse, error)
}

type SessionDomain interface {
	StartSession(c context.Context, req attendance.StartSessionRequest) (*attendance.SessionResponse, error)
	GetSession(c context.Context, sessionID string) (*attendance.SessionResponse, error)
	PauseSession(c context.Context, sessionID string) error
	ResumeSession(c context.Context, sessionID string) error
	StopSession(c context.Context, sessionID string) error
	CloseSession(c context.Context, sessionID string) (*attendance.CloseSessionResponse, error)

	AttachFeed(sessionID string) error
	DetachFeed(sessionID string)
	OfferFrame(sessionID string, frame []byte) error
	Events(sessionID string) (<-chan entity.RecognitionEvent, error)

	ReapStaleSessions()
}

type ReportDomain interface {
	RecordsByRange(c context.Context, courseID, from, to string) (*attendance.RecordQueryResponse, error)
	DayStatus(c context.Context, courseID, day string) (*attendance.DayStatusResponse, error)
}

// FrameSource feeds live frames into recognition loops and reports whether
// the embedding service behind it is reachable. Session start refuses to
// proceed when it is not.
type FrameSource interface {
	recognition.FrameExtractor
	IsConnected() bool
	Reconnect() error
}

type attendanceService struct {
	log            *logrus.Logger
	attendanceRepo attendanceRepository.Repository
	enrollmentRepo enrollmentRepository.Repository
	redisServer    redis.IRedis
	utils          utils.IUtils

	ledgerDomain  LedgerDomain
	sessionDomain SessionDomain
	reportDomain  ReportDomain
}

func (a *attendanceService) Ledger() LedgerDomain {
	return a.ledgerDomain
}

func (a *attendanceService) Session() SessionDomain {
	return a.sessionDomain
}

func (a *attendanceService) Report() ReportDomain {
	return a.reportDomain
}

func (a *attendanceService) GetRepository() attendanceRepository.Repository {
	return a.attendanceRepo
}

type ledgerDomainImpl struct {
	log            *logrus.Logger
	attendanceRepo attendanceRepository.Repository
	enrollmentRepo enrollmentRepository.Repository
	redisServer    redis.IRedis
	utils          utils.IUtils
}

type sessionDomainImpl struct {
	log            *logrus.Logger
	enrollmentRepo enrollmentRepository.Repository
	builder        *recognition.Builder
	matcher        *recognition.Matcher
	frames         FrameSource
	ledger         LedgerDomain
	utils          utils.IUtils

	mu             sync.RWMutex
	sessions       map[string]*session
	activeByCourse map[string]string
}

type reportDomainImpl struct {
	log            *logrus.Logger
	attendanceRepo attendanceRepository.Repository
	enrollmentRepo enrollmentRepository.Repository
	utils          utils.IUtils
}

func New(log *logrus.Logger,
	attendanceRepo attendanceRepository.Repository,
	enrollmentRepo enrollmentRepository.Repository,
	redisServer redis.IRedis,
	builder *recognition.Builder,
	matcher *recognition.Matcher,
	frames FrameSource,
	utils utils.IUtils,
) AttendanceService {
	ledger := &ledgerDomainImpl{
		log:            log,
		attendanceRepo: attendanceRepo,
		enrollmentRepo: enrollmentRepo,
		redisServer:    redisServer,
		utils:          utils,
	}

	return &attendanceService{
		log:            log,
		attendanceRepo: attendanceRepo,
		enrollmentRepo: enrollmentRepo,
		redisServer:    redisServer,
		utils:          utils,

		ledgerDomain: ledger,
		sessionDomain: &sessionDomainImpl{
			log:            log,
			enrollmentRepo: enrollmentRepo,
			builder:        builder,
			matcher:        matcher,
			frames:         frames,
			ledger:         ledger,
			utils:          utils,
			sessions:       make(map[string]*session),
			activeByCourse: make(map[string]string),
		},
		reportDomain: &reportDomainImpl{
			log:            log,
			attendanceRepo: attendanceRepo,
			enrollmentRepo: enrollmentRepo,
			utils:          utils,
		},
	}
}
