package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/orm"
	"github.com/booking/scheduler/internal/scheduler"
)

var Provider = wire.NewSet(
	NewServer,
	NewDoorHandler,
	NewPowerOffHandler,
	NewTaskHandler,
	NewNotificationHandler,
)

// Server HTTP服务
type Server struct {
	router  *gin.Engine
	storage *orm.Storage
	sched   *scheduler.Scheduler
	checker *scheduler.HealthChecker
	logger  *zap.Logger
}

func NewServer(
	storage *orm.Storage,
	sched *scheduler.Scheduler,
	checker *scheduler.HealthChecker,
	doorHandler *DoorHandler,
	powerOffHandler *PowerOffHandler,
	taskHandler *TaskHandler,
	notificationHandler *NotificationHandler,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		storage: storage,
		sched:   sched,
		checker: checker,
		logger:  logger,
	}

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	// CORS配置
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID"}
	engine.Use(cors.New(corsConfig))

	v1 := engine.Group("/api/v1")
	{
		doors := v1.Group("/doors")
		{
			doors.POST("/open", doorHandler.OpenDoor)
		}

		powerOff := v1.Group("/power-off")
		{
			powerOff.POST("/schedule", powerOffHandler.Schedule)
			powerOff.GET("/tasks", powerOffHandler.List)
			powerOff.DELETE("/tasks/:booking_id/:room_id", powerOffHandler.Cancel)
			powerOff.GET("/audit-log", powerOffHandler.AuditLog)
			powerOff.GET("/scheduler/status", powerOffHandler.SchedulerStatus)
		}

		v1.POST("/reminders", taskHandler.ScheduleReminder)
		tasks := v1.Group("/tasks")
		{
			tasks.GET("/booking/:booking_id", taskHandler.ListByBooking)
			tasks.DELETE("/:task_id", taskHandler.Cancel)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("/user/:user_id", notificationHandler.ListByUser)
			notifications.GET("/booking/:booking_id", notificationHandler.ListByBooking)
			notifications.POST("/retry-failed", notificationHandler.RetryFailed)
			notifications.POST("/cleanup-old", notificationHandler.CleanupOld)
		}
	}

	engine.GET("/health", s.healthCheck)

	s.router = engine
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// healthCheck 存活探针，带网关可用状态明细
func (s *Server) healthCheck(c *gin.Context) {
	if err := s.storage.Ping(); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, Response{
			Code:    http.StatusServiceUnavailable,
			Message: "database unreachable",
		})
		return
	}

	respondOK(c, gin.H{
		"status":   "healthy",
		"time":     time.Now(),
		"leader":   s.sched.Running(),
		"gateways": s.checker.Snapshot(),
	})
}
