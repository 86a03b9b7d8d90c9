package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/logger"
)

func main() {
	var (
		configPath string
		imagePath  string
		confidence float64
		outPath    string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&imagePath, "image", "", "Image file to run detection on")
	flag.Float64Var(&confidence, "confidence", 0, "Confidence threshold (0 uses the configured default)")
	flag.StringVar(&outPath, "out", "", "Write the annotated image to this path")
	flag.Parse()

	if imagePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: test-inference -image <file> [-confidence 0.25] [-out annotated.jpg]")
		os.Exit(1)
	}

	fmt.Println("=== Detection Inference Test ===")
	fmt.Printf("Image: %s\n", imagePath)
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

	fmt.Printf("Backend: %s\n", cfg.Model.Backend)
	fmt.Printf("Weights: %s\n", cfg.Model.WeightsPath)
	fmt.Println()

	gateway := detect.NewGateway(cfg.Model, log)
	defer gateway.Close()

	fmt.Println("Loading model and running inference...")
	start := time.Now()
	detections, annotated, err := gateway.InferImage(context.Background(), imagePath, confidence)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inference failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Inference completed in %v\n", time.Since(start))
	fmt.Printf("Detections: %d\n", len(detections))
	for i, d := range detections {
		fmt.Printf("  [%d] %s %.1f%% box=(%.0f,%.0f)-(%.0f,%.0f)\n",
			i, d.ClassName, d.Confidence*100, d.X1, d.Y1, d.X2, d.Y2)
	}

	if summary, err := json.MarshalIndent(detect.Summarize(detections), "", "  "); err == nil {
		fmt.Println()
		fmt.Println(string(summary))
	}

	if outPath != "" {
		if err := imaging.Save(annotated, outPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save annotated image: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ Annotated image written to %s\n", outPath)
	}
}
