/*
 * Copyright 2025 SMSDesk Pty Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/smsdesk/pulse/pkg/models"
)

type contextKey string

const userContextKey contextKey = "user"

// userHolder carries the authenticated user between middlewares. The
// instrument middleware plants it before auth runs, so the identity set
// downstream is visible when the request is recorded.
type userHolder struct {
	mu   sync.Mutex
	user *models.User
}

func (h *userHolder) set(user *models.User) {
	h.mu.Lock()
	h.user = user
	h.mu.Unlock()
}

func (h *userHolder) get() *models.User {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.user
}

func holderFromContext(ctx context.Context) *userHolder {
	holder, _ := ctx.Value(userContextKey).(*userHolder)
	return holder
}

// userFromContext returns the authenticated user attached by authMiddleware.
func userFromContext(ctx context.Context) *models.User {
	if holder := holderFromContext(ctx); holder != nil {
		return holder.get()
	}

	return nil
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	return false
}

// authMiddleware resolves the bearer token and attaches the user to the
// request context. Without a configured auth service the API is open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := s.auth.VerifyToken(r.Context(), token)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Token verification failed")
			writeError(w, http.StatusUnauthorized, "invalid token")

			return
		}

		if holder := holderFromContext(r.Context()); holder != nil {
			holder.set(user)
			next.ServeHTTP(w, r)

			return
		}

		holder := &userHolder{user: user}
		ctx := context.WithValue(r.Context(), userContextKey, holder)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimPrefix(header, prefix)
}

// clientLimiter keeps one token bucket per client key.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newClientLimiter(r float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = int(r)
		if burst < 1 {
			burst = 1
		}
	}

	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(r),
		burst:    burst,
	}
}

func (c *clientLimiter) get(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(c.rate, c.burst)
		c.limiters[key] = l
	}

	return l
}

// rateLimitMiddleware throttles per client. Over-limit requests get 429
// with a Retry-After header so well-behaved clients back off for exactly
// that long.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		limiter := s.limiter.get(clientKey(r))

		reservation := limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()

			retryAfter := int(delay.Seconds() + 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")

			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a client by bearer token when present, else by
// remote address.
func clientKey(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

type httpMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newHTTPMetrics builds a per-server registry so multiple servers can
// coexist in one process.
func newHTTPMetrics() *httpMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &httpMetrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "Total HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrumentMiddleware records prometheus series and, when a persistence
// service is wired, an APICall row feeding the metrics snapshot.
func (s *Server) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades hijack the connection; the recorder would
		// misreport them.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(context.WithValue(r.Context(), userContextKey, &userHolder{}))

		next.ServeHTTP(recorder, r)

		elapsed := time.Since(start)
		route := routeTemplate(r)

		s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
		s.metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())

		if s.db == nil || !strings.HasPrefix(r.URL.Path, "/api/") {
			return
		}

		call := &models.APICall{
			Method:       r.Method,
			Endpoint:     route,
			StatusCode:   recorder.status,
			ResponseTime: float64(elapsed.Milliseconds()),
			CreatedAt:    start,
		}

		if user := userFromContext(r.Context()); user != nil {
			call.UserID = user.ID
		}

		// The response is already flushed; recording here delays nothing
		// the client can observe.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.db.RecordAPICall(ctx, call); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to record API call")
		}
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}

	return r.URL.Path
}
