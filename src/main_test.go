package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"safaribuddy/src/checkout"
	"safaribuddy/src/db"
	"safaribuddy/src/lib"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		ConnPool: conn,
	})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
		v.RegisterValidation("ltdate", ltfield)
		v.RegisterValidation("kephone", kenyanPhoneValidatorFunc)
	}
}

func (s *TestSuite) SetupTest() {
	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Setenv("MAINTENANCE_MODE", "false")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestAuthValidation() {
	router := setupRouter()
	guestAuthRoutes(router)

	s.Run("login without password returns 400", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"email": "someone@example.com",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		errMsg := gjson.Get(w.Body.String(), "error").String()
		assert.NotEmpty(s.T(), errMsg)
	})

	s.Run("register with an invalid phone returns 400", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"full_name": "Amina Wanjiru",
			"email":     "amina@example.com",
			"phone":     "12345",
			"password":  "hunter22",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestLoginStatusRules() {
	router := setupRouter()
	guestAuthRoutes(router)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	s.Require().NoError(err)

	login := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"email":    "joseph@example.com",
			"password": "hunter22",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)
		return w
	}

	s.Run("a pending provider can log in", func() {
		s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
			WillReturnRows(sqlmock.
				NewRows([]string{"id", "email", "password_hash", "role", "status"}).
				AddRow(4, "joseph@example.com", string(hash), "guide", "pending"))
		s.Mock.ExpectBegin()
		s.Mock.ExpectExec(`UPDATE "users" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Mock.ExpectCommit()

		w := login()
		assert.Equal(s.T(), 200, w.Code)
		assert.NotEmpty(s.T(), gjson.Get(w.Body.String(), "token").String())
		assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
	})

	s.Run("a suspended account is rejected", func() {
		s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
			WillReturnRows(sqlmock.
				NewRows([]string{"id", "email", "password_hash", "role", "status"}).
				AddRow(4, "joseph@example.com", string(hash), "guide", "suspended"))

		w := login()
		assert.Equal(s.T(), 403, w.Code)
		assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
	})
}

func (s *TestSuite) TestRegisterDuplicatePhone() {
	router := setupRouter()
	guestAuthRoutes(router)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT "id" FROM "users" WHERE .*phone`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	s.Mock.ExpectRollback()

	w := httptest.NewRecorder()
	jbody := map[string]any{
		"full_name": "Amina Wanjiru",
		"email":     "amina2@example.com",
		"phone":     "0712345678",
		"password":  "hunter22",
	}
	sbody, _ := json.Marshal(&jbody)
	req, _ := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
	assert.Contains(s.T(), gjson.Get(w.Body.String(), "error").String(), "already registered")
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestSettledPaymentIsImmutable() {
	s.Mock.ExpectQuery(`SELECT \* FROM "payments"`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "booking_id", "status", "checkout_request_id"}).
			AddRow("0b2c6f3a-9a1d-4a57-8a0e-5d2f6c1b7e90", 9, "pending", "ws_CO_191220191020363925"))
	s.Mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(9, 3))
	s.Mock.ExpectBegin()
	// Another writer settled the attempt between the read and the write, the
	// conditional update touches no rows.
	s.Mock.ExpectExec(`UPDATE "payments" SET .* WHERE .*status`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.Mock.ExpectCommit()

	err := settleMpesaPayment(&lib.STKCallback{
		CheckoutRequestID:  "ws_CO_191220191020363925",
		ResultCode:         0,
		ResultDesc:         "The service request is processed successfully.",
		MpesaReceiptNumber: "NLJ7RT61SV",
	})
	s.NoError(err)
	// No booking update or notification follows a lost write.
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestListTours() {
	router := setupRouter()
	publicTourRoutes(router)

	s.Mock.ExpectQuery(`SELECT count\(\*\) FROM "tours"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.Mock.ExpectQuery(`SELECT \* FROM "tours"`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "title", "slug", "category", "destination", "duration_days", "price_per_person", "current_participants", "is_active"}).
			AddRow(1, "Maasai Mara Classic", "maasai-mara-classic", "safari", "Maasai Mara", 3, 45000.0, 0, true))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tours", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	body := w.Body.String()
	assert.Equal(s.T(), int64(1), gjson.Get(body, "count").Int())
	assert.Equal(s.T(), "Maasai Mara Classic", gjson.Get(body, "data.0.title").String())

	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestGetTourNotFound() {
	router := setupRouter()
	publicTourRoutes(router)

	s.Mock.ExpectQuery(`SELECT \* FROM "tours"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tours/999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 404, w.Code)
}

func (s *TestSuite) TestUnauthenticatedBookingRejected() {
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(func(ctx *gin.Context) {
		if ctx.Request.Header.Get("Authorization") == "" {
			ctx.AbortWithStatus(http.StatusUnauthorized)
		}
	})
	bookingHandlers(authorized)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestCheckoutErrorResponses() {
	s.Run("validation errors carry their fields", func() {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		respondCheckoutError(ctx, &checkout.ValidationError{Fields: map[string]string{
			"party_size": "party size must be at least 1",
		}})
		assert.Equal(s.T(), 400, w.Code)
		assert.Contains(s.T(), gjson.Get(w.Body.String(), "fields.party_size").String(), "at least 1")
	})

	s.Run("a submission already in flight conflicts", func() {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		respondCheckoutError(ctx, checkout.ErrSubmissionInFlight)
		assert.Equal(s.T(), 409, w.Code)
	})

	s.Run("unknown tours are not found", func() {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		respondCheckoutError(ctx, &checkout.NotFoundError{TourID: 99})
		assert.Equal(s.T(), 404, w.Code)
	})

	s.Run("failed payments ask for payment again", func() {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		respondCheckoutError(ctx, &checkout.PaymentError{Reason: "insufficient funds"})
		assert.Equal(s.T(), 402, w.Code)
		assert.Equal(s.T(), "insufficient funds", gjson.Get(w.Body.String(), "reason").String())
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
