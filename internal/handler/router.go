package handler

import (
	"github.com/gin-gonic/gin"

	internalmiddleware "github.com/noah-isme/hostel-outing-api/internal/middleware"
	"github.com/noah-isme/hostel-outing-api/internal/models"
)

// Routes bundles the handlers mounted under the API prefix.
type Routes struct {
	Outings   *OutingHandler
	Gate      *GateHandler
	Scheduler *SchedulerHandler
	Students  *StudentHandler
	Metrics   *MetricsHandler

	Auth  internalmiddleware.TokenValidator
	Audit internalmiddleware.AuditWriter
}

var (
	approverRoles = []models.UserRole{models.RoleFloorIncharge, models.RoleHostelIncharge, models.RoleWarden, models.RoleAdmin}
	gateRoles     = []models.UserRole{models.RoleSecurity, models.RoleWarden, models.RoleAdmin}
	passRoles     = []models.UserRole{models.RoleWarden, models.RoleAdmin}
	staffRoles    = []models.UserRole{models.RoleWarden, models.RoleAdmin}
)

// Register mounts every authenticated route on group.
func (r Routes) Register(group *gin.RouterGroup) {
	secured := group.Group("")
	secured.Use(internalmiddleware.JWT(r.Auth))

	if r.Outings != nil {
		outings := secured.Group("/outings")
		outings.POST("", internalmiddleware.RequireRoles(models.RoleStudent), r.Outings.Create)
		outings.GET("", r.Outings.List)
		outings.GET("/:id", r.Outings.Get)
		outings.GET("/:id/pass", internalmiddleware.Audit(r.Audit, models.AuditActionPassDownload), r.Outings.PassSlip)
		outings.POST("/:id/decision", internalmiddleware.RequireRoles(approverRoles...), r.Outings.Decide)
		outings.POST("/:id/passes/regenerate", internalmiddleware.RequireRoles(passRoles...), r.Outings.Regenerate)
		outings.POST("/:id/passes/:direction", internalmiddleware.RequireRoles(passRoles...), r.Outings.Issue)
	}

	if r.Gate != nil {
		gate := secured.Group("/gate", internalmiddleware.RequireRoles(gateRoles...))
		gate.POST("/scan", r.Gate.Scan)
		gate.POST("/validate", r.Gate.Validate)
	}

	admin := secured.Group("/admin", internalmiddleware.RequireRoles(staffRoles...))
	if r.Scheduler != nil {
		admin.POST("/scheduler/tick", r.Scheduler.Tick)
		admin.POST("/scheduler/sweep", r.Scheduler.Sweep)
	}
	if r.Students != nil {
		admin.DELETE("/students/:id/cache", r.Students.ForgetCache)
	}
	if r.Metrics != nil {
		admin.GET("/metrics", r.Metrics.Snapshot)
	}
}
