package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/logger"
	"github.com/vzahanych/binsight/internal/video"
)

func main() {
	var (
		configPath string
		videoPath  string
		confidence float64
		outPath    string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&videoPath, "video", "", "Video file to process")
	flag.Float64Var(&confidence, "confidence", 0, "Confidence threshold (0 uses the configured default)")
	flag.StringVar(&outPath, "out", "annotated.mp4", "Write the annotated video to this path")
	flag.Parse()

	if videoPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: test-video-pipeline -video <file> [-confidence 0.25] [-out annotated.mp4]")
		os.Exit(1)
	}

	fmt.Println("=== Video Pipeline Test ===")
	fmt.Printf("Video: %s\n", videoPath)
	fmt.Println()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.LogConfig{Level: "info", Format: "text"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ffmpeg, err := video.NewFFmpegWrapper(cfg.Video, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffmpeg not available: %v\n", err)
		os.Exit(1)
	}
	if v, err := ffmpeg.GetVersion(); err == nil {
		fmt.Printf("✅ ffmpeg: %s\n", v)
	}

	ctx := context.Background()

	info, err := ffmpeg.Probe(ctx, videoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Probe: %dx%d @ %.2f fps, ~%d frames, %.1fs\n",
		info.Width, info.Height, info.FPS, info.TotalFrames, info.Duration)
	fmt.Println()

	gateway := detect.NewGateway(cfg.Model, log)
	defer gateway.Close()

	reader, err := ffmpeg.OpenFrameReader(ctx, videoPath, info.Width, info.Height)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open frame reader: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	writer, err := ffmpeg.OpenFrameWriter(ctx, outPath, info.Width, info.Height, info.FPS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open frame writer: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Processing frames...")
	start := time.Now()
	frames := 0
	total := 0
	stats := make(map[string]int)

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writer.Abort()
			fmt.Fprintf(os.Stderr, "Read failed at frame %d: %v\n", frames, err)
			os.Exit(1)
		}

		detections, annotated, err := gateway.InferFrame(ctx, frame, confidence)
		if err != nil {
			writer.Abort()
			fmt.Fprintf(os.Stderr, "Inference failed at frame %d: %v\n", frames, err)
			os.Exit(1)
		}
		if err := writer.Write(annotated); err != nil {
			writer.Abort()
			fmt.Fprintf(os.Stderr, "Encode failed at frame %d: %v\n", frames, err)
			os.Exit(1)
		}

		frames++
		total += len(detections)
		for _, d := range detections {
			stats[d.ClassName]++
		}
		if frames%25 == 0 {
			fmt.Printf("  %d frames, %d detections\n", frames, total)
		}
	}

	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Finalizing annotated video failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	fmt.Println()
	if elapsed > 0 {
		fmt.Printf("✅ Processed %d frames in %v (%.1f fps)\n", frames, elapsed, float64(frames)/elapsed.Seconds())
	} else {
		fmt.Printf("✅ Processed %d frames\n", frames)
	}
	fmt.Printf("Total detections: %d\n", total)
	for name, count := range stats {
		fmt.Printf("  %s: %d\n", name, count)
	}
	fmt.Printf("✅ Annotated video written to %s\n", outPath)
}
