package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/respio/client"
	"github.com/luma/respio/internal/env"
	"github.com/luma/respio/protocol"
)

var (
	benchAddr     string
	benchClients  int
	benchRequests int
	benchPipeline int
	benchRESP3    bool
	benchHTTPPort string
)

func init() {
	flags := benchCmd.PersistentFlags()

	flags.StringVarP(&benchAddr, "addr", "a", "", "The server address (defaults to RESPIO_ADDR, then 127.0.0.1:6379)")
	flags.IntVarP(&benchClients, "clients", "c", 8, "The number of concurrent workers")
	flags.IntVarP(&benchRequests, "requests", "n", 100000, "The total number of requests to send")
	flags.IntVarP(&benchPipeline, "pipeline", "P", 1, "The number of commands batched per round trip")
	flags.BoolVar(&benchRESP3, "resp3", false, "Handshake with HELLO 3 instead of speaking RESP2")
	flags.StringVar(&benchHTTPPort, "http-port", "7362", "The port to expose pool stats on over HTTP")
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a SET/GET throughput benchmark",
	Long: `Run a SET/GET throughput benchmark

Usage
	respio bench -c 16 -n 200000 -P 10

While the benchmark runs, pool occupancy is served as JSON on
http://localhost:<http-port>/stats.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		log, err := env.MakeLogger()
		if err != nil {
			return err
		}

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		opts := client.Options{
			Addr:     conf.Addr,
			Username: conf.Username,
			Password: conf.Password,
			DB:       conf.DB,
			PoolMin:  benchClients,
			PoolMax:  benchClients,
			Log:      log.Named("client"),
		}
		if benchAddr != "" {
			opts.Addr = benchAddr
		}
		if benchRESP3 {
			opts.Protocol = protocol.RESP3
		}

		c, err := client.New(opts)
		if err != nil {
			return err
		}
		defer c.Close()

		router := setupRouter(conf.DebugHTTP, log)

		router.GET("/ping", func(g *gin.Context) {
			g.String(http.StatusOK, "pong")
		})
		router.GET("/stats", func(g *gin.Context) {
			g.JSON(http.StatusOK, c.Stats())
		})

		s := &http.Server{
			Addr:    net.JoinHostPort("localhost", benchHTTPPort),
			Handler: router,
		}

		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Benchmarking",
			zap.String("addr", opts.Addr),
			zap.Int("clients", benchClients),
			zap.Int("requests", benchRequests),
			zap.Int("pipeline", benchPipeline))

		completed, elapsed, err := runBench(ctx, c)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.SetKeepAlivesEnabled(false)
		if serr := s.Shutdown(shutdownCtx); serr != nil {
			log.Error("Http server forced to shutdown", zap.Error(serr))
		}

		if err != nil {
			return err
		}

		rate := float64(completed) / elapsed.Seconds()
		fmt.Printf("%d requests in %s: %.0f req/s\n", completed, elapsed.Round(time.Millisecond), rate)
		return nil
	},
}

// runBench fans the request budget out over the worker count. Each
// round trip alternates SET and GET on a per-worker key.
func runBench(ctx context.Context, c *client.Client) (int64, time.Duration, error) {
	pipeline := benchPipeline
	if pipeline < 1 {
		pipeline = 1
	}

	var (
		wg        sync.WaitGroup
		completed int64
		firstErr  error
		errOnce   sync.Once
	)

	perWorker := benchRequests / benchClients
	start := time.Now()

	for w := 0; w < benchClients; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			key := fmt.Sprintf("bench:%d", worker)
			value := []byte("x")

			for sent := 0; sent < perWorker; sent += pipeline {
				if ctx.Err() != nil {
					return
				}

				batch := make([]protocol.Command, 0, pipeline)
				for i := 0; i < pipeline && sent+i < perWorker; i++ {
					if (sent+i)%2 == 0 {
						batch = append(batch, protocol.NewCommandBytes([]byte("SET"), []byte(key), value))
					} else {
						batch = append(batch, protocol.NewCommandStrings("GET", key))
					}
				}

				replies, err := c.Pipeline(ctx, batch...)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				atomic.AddInt64(&completed, int64(len(replies)))
			}
		}(w)
	}

	wg.Wait()
	return atomic.LoadInt64(&completed), time.Since(start), firstErr
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.Ginzap(log, time.RFC3339, true))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}
