// Package server - HTTP and WebSocket surface for a detector engine.
package server

import (
	"context"
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detection"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Detector is the engine surface the server needs.
type Detector interface {
	detector.Runner
	ID() string
	ParserName() string
}

// ImageResult is the detection output for one submitted image.
type ImageResult struct {
	File   string               `json:"file,omitempty"`
	Image  images.Image         `json:"image"`
	Result *detection.DetResult `json:"result"`
}

// DetectResponse is the body of a successful detect call.
type DetectResponse struct {
	RequestID string        `json:"request_id"`
	Engine    string        `json:"engine"`
	Results   []ImageResult `json:"results"`
}

// Server routes requests to one detector.
type Server struct {
	detector Detector
	pipeline *detector.Pipeline
	cfg      config.Config
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the routes.
//
// Arguments:
//   - d: The detector to serve.
//   - cfg: Preprocessing, decode and server settings.
//   - collector: Exposed on /metrics when non-nil.
//
// Returns:
//   - *Server: A server ready for Handler or Run.
func New(d Detector, cfg config.Config, collector *metrics.Collector) *Server {
	s := &Server{
		detector: d,
		pipeline: detector.NewPipeline(d, cfg),
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.Use(gin.Recovery(), accessLog())
	r.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/model", s.handleModel)
	r.POST("/api/detect", s.handleDetect)
	r.GET("/ws", s.handleStream)
	if collector != nil {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	s.router = r
	return s
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Server.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Log().Info("listening", zap.String("addr", srv.Addr), zap.String("engine", s.detector.ID()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) handleModel(c *gin.Context) {
	size := s.detector.InputSize()
	c.JSON(http.StatusOK, gin.H{
		"id":          s.detector.ID(),
		"plugin":      s.detector.ParserName(),
		"max_batch":   s.detector.MaxBatchSize(),
		"input":       gin.H{"width": size.X, "height": size.Y},
		"class_names": s.cfg.ClassNames(),
		"letterbox":   s.pipeline.Letterbox,
	})
}

func (s *Server) handleDetect(c *gin.Context) {
	if limit := s.cfg.Server.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a multipart form: " + err.Error()})
		return
	}
	files := append(form.File["images"], form.File["image"]...)
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image files in fields image or images"})
		return
	}

	mats := make([]gocv.Mat, 0, len(files))
	defer func() {
		for _, m := range mats {
			_ = m.Close()
		}
	}()
	results := make([]ImageResult, 0, len(files))
	for _, fh := range files {
		mat, info, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "file": fh.Filename})
			return
		}
		mats = append(mats, mat)
		results = append(results, ImageResult{File: fh.Filename, Image: info})
	}

	detections, err := s.pipeline.Detect(c.Request.Context(), mats)
	if err != nil {
		logger.Log().Error("detection failed", zap.Error(err), zap.Int("images", len(mats)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range results {
		results[i].Result = detections[i]
	}

	c.JSON(http.StatusOK, DetectResponse{
		RequestID: uuid.NewString(),
		Engine:    s.detector.ID(),
		Results:   results,
	})
}

// handleStream runs one detection per message. Binary messages carry encoded
// image bytes; text messages carry base64, optionally as a data URL.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if limit := s.cfg.Server.MaxUploadBytes; limit > 0 {
		conn.SetReadLimit(limit)
	}

	session := uuid.NewString()
	log := logger.Log().With(zap.String("session", session))
	log.Info("stream opened", zap.String("client", c.ClientIP()))

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			log.Info("stream closed", zap.Error(err))
			return
		}

		var data []byte
		switch mt {
		case websocket.BinaryMessage:
			data = msg
		case websocket.TextMessage:
			data, err = decodeBase64(string(msg))
			if err != nil {
				if err := conn.WriteJSON(gin.H{"error": err.Error()}); err != nil {
					return
				}
				continue
			}
		default:
			continue
		}

		reply := s.detectOne(c.Request.Context(), data)
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("failed to write result", zap.Error(err))
			return
		}
	}
}

func (s *Server) detectOne(ctx context.Context, data []byte) any {
	mat, info, err := images.DecodeMat(data)
	if err != nil {
		return gin.H{"error": err.Error()}
	}
	defer mat.Close()

	results, err := s.pipeline.Detect(ctx, []gocv.Mat{mat})
	if err != nil {
		return gin.H{"error": err.Error()}
	}
	return DetectResponse{
		RequestID: uuid.NewString(),
		Engine:    s.detector.ID(),
		Results:   []ImageResult{{Image: info, Result: results[0]}},
	}
}

func readUpload(fh *multipart.FileHeader) (gocv.Mat, images.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return gocv.Mat{}, images.Image{}, errors.Wrapf(err, "failed to open %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return gocv.Mat{}, images.Image{}, errors.Wrapf(err, "failed to read %s", fh.Filename)
	}
	mat, info, err := images.DecodeMat(data)
	if err != nil {
		return gocv.Mat{}, images.Image{}, errors.Wrapf(err, "%s", fh.Filename)
	}
	return mat, info, nil
}

func decodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 image")
	}
	return data, nil
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("client", c.ClientIP()))
	}
}
