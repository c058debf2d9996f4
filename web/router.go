package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/loxodon-net/loxodon/activitypub"
	"github.com/loxodon-net/loxodon/util"
	"golang.org/x/time/rate"
)

// NewRouter builds the federation HTTP surface: actor and note documents
// for other servers to fetch, plus the shared and per-user inboxes.
func NewRouter(conf *util.AppConfig, processor *activitypub.Processor) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = util.GetLogWriter()
	gin.DefaultErrorWriter = util.GetLogWriter()

	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/users/:actor", func(c *gin.Context) {
		HandleActor(c, conf)
	})
	g.GET("/notes/:id", func(c *gin.Context) {
		HandleNote(c, conf)
	})

	// Stricter limits on the write path: 5 req/sec per IP, 1MB bodies.
	inboxLimiter := NewRateLimiter(rate.Limit(5), 10)
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

	inbox := NewInboxHandler(conf, processor)
	g.POST("/inbox", RateLimitMiddleware(inboxLimiter), maxBodySize, inbox.Handle)
	g.POST("/users/:actor/inbox", RateLimitMiddleware(inboxLimiter), maxBodySize, inbox.HandlePerUser)

	if conf.Conf.WithPprof {
		registerPprof(g)
	}

	return g
}

// Serve runs the router until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, conf *util.AppConfig, engine *gin.Engine) error {
	addr := fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting federation server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Println("Shutting down federation server")
		return srv.Shutdown(shutdownCtx)
	}
}

func registerPprof(g *gin.Engine) {
	grp := g.Group("/debug/pprof")
	grp.GET("/", gin.WrapF(pprof.Index))
	grp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	grp.GET("/profile", gin.WrapF(pprof.Profile))
	grp.GET("/symbol", gin.WrapF(pprof.Symbol))
	grp.GET("/trace", gin.WrapF(pprof.Trace))
	grp.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	grp.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}
