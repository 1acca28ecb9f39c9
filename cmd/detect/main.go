package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detection"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML configuration file")
		modelPath  = flag.String("model", "", "Path to ONNX model file (overrides model.path)")
		plugin     = flag.String("plugin", "", "Output convention: amirstan, faster_rcnn or mmdeploy (overrides model.plugin)")
		outputDir  = flag.String("output", "", "Directory for annotated images")
		single     = flag.Bool("single", false, "Run images one at a time instead of batching")
		letterbox  = flag.Bool("letterbox", false, "Keep aspect ratio when resizing to the model input")
		threshold  = flag.Float64("threshold", -1, "Minimum confidence (overrides decode.confidence_threshold)")
		camera     = flag.Int("camera", -1, "Video capture device to read instead of image files")
		show       = flag.Bool("show", false, "Display camera frames with detections")
		timeout    = flag.Duration("timeout", 0, "Abort after this duration (0 disables)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] image-or-dir...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *plugin != "" {
		cfg.Model.Plugin = *plugin
	}
	if *letterbox {
		cfg.Preprocess.Letterbox.Enabled = true
	}
	if *threshold >= 0 {
		cfg.Decode.ConfidenceThreshold = float32(*threshold)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *camera < 0 && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	engine, err := detector.NewFromConfig(cfg)
	if err != nil {
		logger.Fatal("failed to create detector", zap.Error(err))
	}
	defer engine.Close()

	pipeline := detector.NewPipeline(engine, cfg)
	if *camera >= 0 {
		err = runCamera(ctx, pipeline, *camera, *show, cfg.ClassNames())
	} else {
		err = runFiles(ctx, pipeline, flag.Args(), *single, *outputDir, cfg.ClassNames())
	}
	if err != nil {
		logger.Log().Error("detection failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runFiles(ctx context.Context, p *detector.Pipeline, args []string, single bool, outputDir string, names []string) error {
	files, err := util.LoadImageFiles(args...)
	if err != nil {
		return err
	}
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}
	}

	mats := make([]gocv.Mat, 0, len(files))
	defer func() {
		for _, m := range mats {
			_ = m.Close()
		}
	}()
	for _, f := range files {
		mat, _, err := images.DecodeMat(f.Data)
		if err != nil {
			logger.Log().Warn("skipping unreadable image", zap.String("path", f.Path), zap.Error(err))
			mat = gocv.NewMat()
		}
		mats = append(mats, mat)
	}

	var results []*detection.DetResult
	start := time.Now()
	if single {
		for _, m := range mats {
			r, err := p.Detect(ctx, []gocv.Mat{m})
			if err != nil {
				return err
			}
			results = append(results, r...)
		}
	} else {
		results, err = p.Detect(ctx, mats)
		if err != nil {
			return err
		}
	}
	logger.Log().Info("detection complete",
		zap.Int("images", len(files)),
		zap.Duration("elapsed", time.Since(start)))

	for i, f := range files {
		fmt.Printf("%s\n%s\n", f.Path, results[i])
		if outputDir == "" || mats[i].Empty() {
			continue
		}
		drawn := results[i].Draw(mats[i], names)
		out := filepath.Join(outputDir, filepath.Base(f.Path))
		if filepath.Ext(out) == ".webp" {
			out = out[:len(out)-len(".webp")] + ".png"
		}
		if ok := gocv.IMWrite(out, drawn); !ok {
			logger.Log().Warn("failed to write annotated image", zap.String("path", out))
		}
		_ = drawn.Close()
	}
	return nil
}

func runCamera(ctx context.Context, p *detector.Pipeline, deviceID int, show bool, names []string) error {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return err
	}
	defer webcam.Close()

	var window *gocv.Window
	if show {
		window = gocv.NewWindow("detect")
		defer window.Close()
	}

	img := gocv.NewMat()
	defer img.Close()

	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	logger.Log().Info("reading camera", zap.Int("device", deviceID))
	for ctx.Err() == nil {
		if ok := webcam.Read(&img); !ok {
			return errors.Errorf("cannot read device %d", deviceID)
		}
		if img.Empty() {
			continue
		}

		results, err := p.Detect(ctx, []gocv.Mat{img})
		if err != nil {
			return err
		}

		frameCount++
		if elapsed := time.Since(lastTime); elapsed >= time.Second {
			fps = float64(frameCount) / elapsed.Seconds()
			frameCount = 0
			lastTime = time.Now()
			logger.Log().Debug("camera", zap.Float64("fps", fps), zap.Int("detections", results[0].DefectNum()))
		}

		if window == nil {
			continue
		}
		drawn := results[0].Draw(img, names)
		gocv.PutText(&drawn, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, 30),
			gocv.FontHersheyPlain, 1.5, color.RGBA{G: 255}, 2)
		window.IMShow(drawn)
		_ = drawn.Close()
		if window.WaitKey(1) == 27 {
			return nil
		}
	}
	return nil
}
