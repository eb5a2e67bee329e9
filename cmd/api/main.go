package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/geo"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/identity"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/roster"
	"geoattend/internal/schedule"
	"geoattend/internal/stats"
	"geoattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "geoattend:audit")
	}

	catalog := roster.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)
	ledger := attendance.NewService(records, catalog)
	resolver := schedule.NewResolver(catalog)
	engine := stats.NewEngine(records, catalog)
	tokens := auth.NewTokenStore(db.Client)
	verifier := identity.New(cfg.IdentityURL, cfg.IdentitySkip)

	if cfg.IdentitySkip {
		log.Println("identity provider skipped (IDENTITY_SKIP=true); all credentials accepted")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	issueTokens := func(c *gin.Context, person roster.Person) (auth.TokenPair, bool) {
		pair, err := auth.Issue(person.ID, string(person.Role), person.DepartmentID, person.Level,
			cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return auth.TokenPair{}, false
		}
		if err := tokens.Save(c.Request.Context(), person.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
			log.Printf("refresh token save failed: %v", err)
		}
		return pair, true
	}

	// Student login doubles as a presence gate: credentials, an active class
	// for the student's department and an in-fence location are all required.
	r.POST("/v1/auth/student-login", func(c *gin.Context) {
		var req struct {
			MatricNumber string   `json:"matric_number" binding:"required"`
			Password     string   `json:"password" binding:"required"`
			Latitude     *float64 `json:"latitude" binding:"required"`
			Longitude    *float64 `json:"longitude" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		if err := verifier.Verify(ctx, req.MatricNumber, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		person, err := catalog.GetPersonByMatric(ctx, req.MatricNumber)
		if err != nil || person.Role != roster.RoleAttendee {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		entry, err := resolver.ResolveActive(ctx, person.DepartmentID, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "schedule lookup failed"})
			return
		}
		if entry == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "no active class at this time"})
			return
		}

		venue, err := catalog.GetVenue(ctx, entry.VenueID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "venue lookup failed"})
			return
		}
		res, err := geo.Evaluate(
			geo.Coordinate{Lat: venue.Latitude, Lon: venue.Longitude},
			geo.Coordinate{Lat: *req.Latitude, Lon: *req.Longitude},
			venue.RadiusMeters,
		)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
			return
		}
		if !res.Inside {
			c.JSON(http.StatusForbidden, gin.H{
				"error":          "you must be in the venue to mark attendance",
				"distance":       res.DistanceMeters,
				"allowed_radius": venue.RadiusMeters,
			})
			return
		}

		if err := catalog.UpdateLastLoginLocation(ctx, person.ID, *req.Latitude, *req.Longitude, time.Now()); err != nil {
			log.Printf("last login location update failed: %v", err)
		}

		pair, ok := issueTokens(c, person)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "login successful",
			"user":    person,
			"current_class": gin.H{
				"schedule_entry": entry,
				"venue":          venue,
				"time":           entry.Window(),
			},
			"tokens": gin.H{
				"access":  pair.AccessToken,
				"refresh": pair.RefreshToken,
			},
		})
	})

	r.POST("/v1/auth/lecturer-login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		if err := verifier.Verify(ctx, req.Email, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		person, err := catalog.GetPersonByEmail(ctx, req.Email)
		if err != nil || person.Role != roster.RolePresenter {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		pair, ok := issueTokens(c, person)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "login successful",
			"user":    person,
			"tokens": gin.H{
				"access":  pair.AccessToken,
				"refresh": pair.RefreshToken,
			},
		})
	})

	authGroup := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/auth/logout", func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tokens.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	})

	authGroup.GET("/classes/current", auth.RequireRole(string(roster.RoleAttendee)), func(c *gin.Context) {
		claims := auth.FromContext(c)
		entry, err := resolver.ResolveActive(c.Request.Context(), claims.Department, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "schedule lookup failed"})
			return
		}
		if entry == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active class at this time"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"schedule_entry": entry, "time": entry.Window()})
	})

	authGroup.POST("/attendance", auth.RequireRole(string(roster.RoleAttendee)), func(c *gin.Context) {
		var req struct {
			Latitude  *float64 `json:"latitude" binding:"required"`
			Longitude *float64 `json:"longitude" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		claims := auth.FromContext(c)

		person, err := catalog.GetPerson(ctx, claims.Subject)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown person"})
			return
		}

		entry, err := resolver.ResolveActive(ctx, person.DepartmentID, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "schedule lookup failed"})
			return
		}

		rec, err := ledger.MarkPresent(ctx, person, entry, geo.Coordinate{Lat: *req.Latitude, Lon: *req.Longitude})
		if err != nil {
			writeMarkError(c, err)
			return
		}

		metrics.MarksAccepted.Inc()
		c.JSON(http.StatusCreated, gin.H{"message": "attendance marked successfully", "attendance": rec})
	})

	authGroup.GET("/attendance", auth.RequireRole(string(roster.RoleAttendee)), func(c *gin.Context) {
		claims := auth.FromContext(c)
		recs, err := ledger.RecordsForPerson(c.Request.Context(), claims.Subject, c.Query("course_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	authGroup.GET("/courses/:id/records", auth.RequireRole(string(roster.RolePresenter)), func(c *gin.Context) {
		ctx := c.Request.Context()
		claims := auth.FromContext(c)
		courseID := c.Param("id")

		if !presenterTeaches(c, catalog, claims.Subject, courseID) {
			return
		}
		recs, err := ledger.RecordsForCourse(ctx, courseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	authGroup.GET("/courses/:id/stats", func(c *gin.Context) {
		ctx := c.Request.Context()
		claims := auth.FromContext(c)
		courseID := c.Param("id")

		if _, err := catalog.GetCourse(ctx, courseID); err != nil {
			if errors.Is(err, roster.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		switch claims.Role {
		case string(roster.RoleAttendee):
			rep, err := engine.PersonReport(ctx, claims.Subject, courseID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, rep)

		case string(roster.RolePresenter):
			if !presenterTeaches(c, catalog, claims.Subject, courseID) {
				return
			}
			reps, err := engine.CohortReport(ctx, courseID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"students": reps})

		default:
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		}
	})

	// On-demand audit: enqueue for the auditor binary rather than running the
	// batch inside a request.
	authGroup.POST("/audit/run", auth.RequireRole(string(roster.RoleAdmin)), func(c *gin.Context) {
		claims := auth.FromContext(c)
		msg := queue.Message{Type: queue.TypeAuditRun, Body: []byte(claims.Subject)}
		if err := q.Publish(c.Request.Context(), msg); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "audit enqueue failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "audit scheduled"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

// presenterTeaches writes the error response itself when the check fails.
func presenterTeaches(c *gin.Context, catalog *roster.Repository, presenterID, courseID string) bool {
	teaches, err := catalog.Teaches(c.Request.Context(), presenterID, courseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if !teaches {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not teaching this course"})
		return false
	}
	return true
}

// writeMarkError maps ledger errors onto HTTP statuses and bumps the
// rejection counters.
func writeMarkError(c *gin.Context, err error) {
	var oor *attendance.OutOfRangeError
	switch {
	case errors.Is(err, attendance.ErrNoActiveSession):
		metrics.MarksRejected.WithLabelValues(metrics.ReasonNoSession).Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "no active class at this time"})
	case errors.As(err, &oor):
		metrics.MarksRejected.WithLabelValues(metrics.ReasonOutOfRange).Inc()
		c.JSON(http.StatusForbidden, gin.H{
			"error":          "you must be in the venue to mark attendance",
			"distance":       oor.DistanceMeters,
			"allowed_radius": oor.RadiusMeters,
		})
	case errors.Is(err, attendance.ErrAlreadyMarked):
		metrics.MarksRejected.WithLabelValues(metrics.ReasonDuplicate).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "attendance already marked for this class"})
	case errors.Is(err, attendance.ErrForbidden):
		metrics.MarksRejected.WithLabelValues(metrics.ReasonForbidden).Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "only students can mark attendance"})
	case errors.Is(err, geo.ErrInvalidCoordinate):
		metrics.MarksRejected.WithLabelValues(metrics.ReasonBadCoordinate).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
	case errors.Is(err, roster.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "referenced record not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// corsMiddleware handles browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeaders hardens responses.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
