package detect

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vzahanych/binsight/internal/config"
)

var (
	runtimeMu          sync.Mutex
	runtimeInitialized bool
)

// initRuntime initializes the ONNX runtime environment once per process.
// A failed initialization is not cached so a later call can retry.
func initRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInitialized {
		return nil
	}

	libPath, err := sharedLibPath(libraryPath)
	if err != nil {
		return err
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initializing onnxruntime environment: %w", err)
	}

	runtimeInitialized = true
	return nil
}

// sharedLibPath resolves the onnxruntime shared library for this platform.
func sharedLibPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.dylib", nil
		}
		return "./third_party/onnxruntime.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}

	return "", fmt.Errorf("no onnxruntime shared library known for %s/%s; set model.library_path", runtime.GOOS, runtime.GOARCH)
}

// anchorCount returns the number of prediction anchors a YOLO head emits
// for a square input: one cell per 8, 16 and 32 pixel stride.
func anchorCount(inputSize int) int {
	return (inputSize/8)*(inputSize/8) + (inputSize/16)*(inputSize/16) + (inputSize/32)*(inputSize/32)
}

// ModelSession bundles an ONNX session with its bound input/output tensors.
type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// newModelSession builds one session against the weights file.
func newModelSession(cfg config.ModelConfig) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("setting inter-op threads: %w", err)
	}

	size := int64(cfg.InputSize)
	inputShape := ort.NewShape(1, 3, size, size)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(4+len(cfg.ClassNames)), int64(anchorCount(cfg.InputSize)))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.WeightsPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("creating onnx session: %w", err)
	}

	return &ModelSession{
		Session: session,
		Input:   inputTensor,
		Output:  outputTensor,
	}, nil
}

// run feeds one preprocessed input through the session and returns the raw
// output buffer. The buffer is owned by the session; callers must consume
// it before releasing the session back to its pool.
func (m *ModelSession) run(input []float32) ([]float32, error) {
	copy(m.Input.GetData(), input)
	if err := m.Session.Run(); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	return m.Output.GetData(), nil
}

// Destroy releases the session and its tensors.
func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
}
