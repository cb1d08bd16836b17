package httpserver

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessChecks maps a dependency name to its probe.
type ReadinessChecks map[string]func(ctx context.Context) error

const readinessTimeout = 2 * time.Second

func (checks ReadinessChecks) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]string, len(checks))
		)
		for name, check := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status := "ok"
				if err := check(ctx); err != nil {
					status = err.Error()
				}
				mu.Lock()
				results[name] = status
				mu.Unlock()
			}()
		}
		wg.Wait()

		failing := make([]string, 0)
		for name, status := range results {
			if status != "ok" {
				failing = append(failing, name)
			}
		}
		sort.Strings(failing)

		if len(failing) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": results, "failing": failing})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
	}
}
