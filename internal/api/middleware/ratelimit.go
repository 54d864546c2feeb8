package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"homelet/api/internal/config"
)

// clientLimiter stores the rate limiter for a specific client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware applies a token bucket per client.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
}

// NewRateLimiterMiddleware creates a new RateLimiterMiddleware using the
// configured refill rate and bucket size. Idle clients are pruned until ctx is done.
func NewRateLimiterMiddleware(ctx context.Context, cfg *config.Config) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(cfg.RateLimitRPS),
		burst:   cfg.RateLimitBurst,
	}
	// Start a background goroutine to clean up old client entries
	go rm.cleanupClients(ctx, 10*time.Minute, 30*time.Minute)
	return rm
}

// getClientIdentifier keys authenticated callers by user id and everyone else by IP.
func getClientIdentifier(c *gin.Context) string {
	if principal, ok := PrincipalFrom(c); ok {
		return fmt.Sprintf("user|%d", principal.ID)
	}
	return "ip|" + c.ClientIP()
}

// getClientLimiter retrieves or creates the rate limiter for a given client identifier.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{limiter: rate.NewLimiter(rm.rps, rm.burst)}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

// cleanupClients periodically removes client entries not seen within maxIdle.
func (rm *RateLimiterMiddleware) cleanupClients(ctx context.Context, every, maxIdle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if count := rm.prune(maxIdle); count > 0 {
				log.Printf("Rate limiter cleanup removed %d old client entries.", count)
			}
		}
	}
}

// prune drops clients idle for longer than maxIdle and returns how many went.
func (rm *RateLimiterMiddleware) prune(maxIdle time.Duration) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if time.Since(client.lastSeen) > maxIdle {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := getClientIdentifier(c)
		limiter := rm.getClientLimiter(clientKey)

		if !limiter.limiter.Allow() {
			log.Printf("Rate limit exceeded for client: %s on %s %s", clientKey, c.Request.Method, c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
