// Command camsim serves a fake network camera for local development: a
// multipart MJPEG stream and a still snapshot, both stamped with the time.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gomjpeg "github.com/mattn/go-mjpeg"
	"go.uber.org/zap"

	"camproxy/internal/logger"
	"camproxy/internal/placeholder"
)

func main() {
	port := flag.Int("port", 8081, "listen port")
	fps := flag.Int("fps", 5, "frames per second on the stream")
	flag.Parse()

	log, err := logger.New("info", "console")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream := gomjpeg.NewStream()
	defer stream.Close()
	go pump(ctx, stream, *fps, log)

	mux := http.NewServeMux()
	mux.Handle("/mjpg/video.mjpg", stream)
	mux.HandleFunc("/snapshot.jpg", func(w http.ResponseWriter, r *http.Request) {
		frame, err := placeholder.Render(frameLabel(time.Now()))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
		w.Write(frame)
	})

	server := &http.Server{Addr: fmt.Sprintf(":%d", *port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("camsim failed", zap.Error(err))
			os.Exit(1)
		}
	}()
	log.Info("camsim listening",
		zap.Int("port", *port),
		zap.String("stream", fmt.Sprintf("http://localhost:%d/mjpg/video.mjpg", *port)),
		zap.String("snapshot", fmt.Sprintf("http://localhost:%d/snapshot.jpg", *port)))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}

func frameLabel(t time.Time) string {
	return "CAMSIM " + t.Format("15:04:05.000")
}

func pump(ctx context.Context, stream *gomjpeg.Stream, fps int, log *zap.Logger) {
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame, err := placeholder.Render(frameLabel(now))
			if err != nil {
				log.Warn("Frame render failed", zap.Error(err))
				continue
			}
			if err := stream.Update(frame); err != nil {
				log.Warn("Stream update failed", zap.Error(err))
			}
		}
	}
}
