package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

type staticValidator map[string]*models.JWTClaims

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newProtectedRouter(audit AuditWriter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := staticValidator{
		"guard":   {UserID: "guard-1", Role: models.RoleSecurity},
		"student": {UserID: "stu-1", Role: models.RoleStudent},
	}
	router := gin.New()
	router.Use(JWT(validator))
	router.GET("/gate/:id", RequireRoles(models.RoleSecurity, models.RoleWarden), Audit(audit, models.AuditActionPassDownload), func(c *gin.Context) {
		actor, _ := CurrentActor(c)
		c.String(http.StatusOK, actor.ID)
	})
	return router
}

func TestJWTAndRoles(t *testing.T) {
	audit := &recordingAudit{}
	router := newProtectedRouter(audit)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic guard", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer student", status: http.StatusForbidden},
		{name: "allowed", header: "Bearer guard", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/gate/out-1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(recorder, req)
			if recorder.Code != tc.status {
				t.Fatalf("unexpected status: %d", recorder.Code)
			}
		})
	}

	if len(audit.logs) != 1 {
		t.Fatalf("expected one audit log, got %d", len(audit.logs))
	}
	log := audit.logs[0]
	if log.ResourceID == nil || *log.ResourceID != "out-1" {
		t.Fatalf("unexpected resource id: %v", log.ResourceID)
	}
	if log.UserID == nil || *log.UserID != "guard-1" {
		t.Fatalf("unexpected user id: %v", log.UserID)
	}
}
