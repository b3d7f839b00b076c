package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/app"
	iauth "github.com/alptraumtech/lms/internal/auth"
	"github.com/alptraumtech/lms/internal/database/testutil"
	"github.com/alptraumtech/lms/internal/models"
)

type routerFixture struct {
	router     *gin.Engine
	jwt        *iauth.JWTService
	employee   *models.Employee
	supervisor *models.Employee
	admin      *models.Employee
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "lms",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	router, err := NewRouter(db, jwtService, &app.Config{}, nil)
	require.NoError(t, err)

	return &routerFixture{
		router:     router,
		jwt:        jwtService,
		employee:   seedRouterEmployee(t, db, "Moser", models.RoleEmployee),
		supervisor: seedRouterEmployee(t, db, "Huber", models.RoleSupervisor),
		admin:      seedRouterEmployee(t, db, "Root", models.RoleAdmin),
	}
}

func seedRouterEmployee(t *testing.T, db *gorm.DB, lastName, role string) *models.Employee {
	t.Helper()
	employee := &models.Employee{
		CompanyID: 1,
		LastName:  lastName,
		FirstName: "Test",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, db.Create(employee).Error)
	return employee
}

func (f *routerFixture) bearer(t *testing.T, employee *models.Employee) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		EmployeeID: employee.ID,
		Role:       employee.Role,
		CompanyID:  employee.CompanyID,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *routerFixture) perform(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	f := newRouterFixture(t)

	require.Equal(t, http.StatusOK, f.perform(t, http.MethodGet, "/health", "", nil).Code)

	require.Equal(t, http.StatusUnauthorized, f.perform(t, http.MethodGet, "/api/auth/me", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, f.perform(t, http.MethodGet, "/api/employees", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, f.perform(t, http.MethodGet, "/api/items", "Bearer not-a-token", nil).Code)

	rec := f.perform(t, http.MethodGet, "/api/auth/me", f.bearer(t, f.employee), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Moser")
}

func TestRouterRoleGates(t *testing.T) {
	f := newRouterFixture(t)

	employeeTok := f.bearer(t, f.employee)
	supervisorTok := f.bearer(t, f.supervisor)
	adminTok := f.bearer(t, f.admin)

	// Administrator-only mutations reject both lower roles.
	adminOnly := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/permits/types", gin.H{"name": "Forklift"}},
		{http.MethodPost, "/api/categories", gin.H{"code": "EL", "description": "Electronics"}},
		{http.MethodPost, "/api/categories/EL/subcategories", gin.H{"code": "RES"}},
		{http.MethodPost, "/api/subcategories/RES/parameters", gin.H{"name": "Resistance"}},
		{http.MethodPost, "/api/labels/templates", gin.H{"name": "Badge", "kind": "employee", "body": "<Template/>"}},
		{http.MethodDelete, "/api/employees/" + strconv.FormatUint(uint64(f.employee.ID), 10), nil},
		{http.MethodDelete, "/api/items/EL-RES-1", nil},
	}
	for _, route := range adminOnly {
		require.Equal(t, http.StatusForbidden,
			f.perform(t, route.method, route.path, employeeTok, route.body).Code, route.path)
		require.Equal(t, http.StatusForbidden,
			f.perform(t, route.method, route.path, supervisorTok, route.body).Code, route.path)
	}

	// The same gates open for an administrator.
	require.Equal(t, http.StatusCreated,
		f.perform(t, http.MethodPost, "/api/permits/types", adminTok, gin.H{"name": "Forklift"}).Code)
	require.Equal(t, http.StatusCreated,
		f.perform(t, http.MethodPost, "/api/categories", adminTok, gin.H{"code": "EL", "description": "Electronics"}).Code)

	// Supervisor-level mutations reject plain employees but pass supervisors.
	newEmployee := gin.H{"last_name": "Frey", "first_name": "Urs"}
	require.Equal(t, http.StatusForbidden,
		f.perform(t, http.MethodPost, "/api/employees", employeeTok, newEmployee).Code)
	require.Equal(t, http.StatusCreated,
		f.perform(t, http.MethodPost, "/api/employees", supervisorTok, newEmployee).Code)

	// Reads stay open to every authenticated role.
	require.Equal(t, http.StatusOK, f.perform(t, http.MethodGet, "/api/permits/types", employeeTok, nil).Code)
	require.Equal(t, http.StatusOK, f.perform(t, http.MethodGet, "/api/categories", employeeTok, nil).Code)

	// Licensing routes are not registered when licensing is disabled.
	require.Equal(t, http.StatusNotFound, f.perform(t, http.MethodGet, "/api/license", adminTok, nil).Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	require.Equal(t, http.StatusOK, f.perform(t, http.MethodGet, "/health", "", nil).Code)

	rec := f.perform(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(),
		`lms_api_latency_seconds_count{method="GET",path="/health",status="200"}`))
}
