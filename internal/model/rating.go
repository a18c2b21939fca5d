package model

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/bagtoad/tagcluster/internal/onnxlib"
	ort "github.com/yalue/onnxruntime_go"
)

// Labels are the rating classes in model output order.
var Labels = []string{"general", "sensitive", "questionable", "explicit"}

// RatingSession holds a loaded rating model ready for inference.
type RatingSession struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	// extracted is the embedded runtime unpacked for this session, if any.
	extracted string
}

// NewRatingSession loads the rating model from modelsDir. If libPath is
// empty, it tries the embedded ONNX Runtime library first, then platform
// defaults.
func NewRatingSession(libPath, modelsDir string) (*RatingSession, error) {
	onnxrtLibPath := libPath
	var extracted string
	if onnxrtLibPath == "" {
		if p, err := onnxlib.Extract(); err == nil {
			onnxrtLibPath, extracted = p, p
		} else {
			onnxrtLibPath = defaultONNXRuntimePath()
		}
	}
	ort.SetSharedLibraryPath(onnxrtLibPath)
	if err := ort.InitializeEnvironment(); err != nil {
		onnxlib.Remove(extracted)
		return nil, fmt.Errorf("cannot initialize ONNX Runtime: %w", err)
	}

	modelPath, err := FilePath(modelsDir, RequiredFiles[0].Name)
	if err != nil {
		ort.DestroyEnvironment()
		onnxlib.Remove(extracted)
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{"input"}, []string{"output"}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		onnxlib.Remove(extracted)
		return nil, fmt.Errorf("cannot create ONNX session: %w", err)
	}
	return &RatingSession{session: session, extracted: extracted}, nil
}

// Scores returns the softmax probability of each label for img.
func (r *RatingSession) Scores(img image.Image) (map[string]float32, error) {
	pixels := PreprocessImage(img)

	input, err := ort.NewTensor(ort.NewShape(1, 3, ratingImageSize, ratingImageSize), pixels)
	if err != nil {
		return nil, fmt.Errorf("cannot create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(Labels))))
	if err != nil {
		return nil, fmt.Errorf("cannot create output tensor: %w", err)
	}
	defer output.Destroy()

	r.mu.Lock()
	err = r.session.Run([]ort.Value{input}, []ort.Value{output})
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	probs := softmax(output.GetData())
	result := make(map[string]float32, len(Labels))
	for i, label := range Labels {
		result[label] = probs[i]
	}
	return result, nil
}

// Rate returns the most probable label for img.
func (r *RatingSession) Rate(img image.Image) (string, error) {
	scores, err := r.Scores(img)
	if err != nil {
		return "", err
	}
	return Top(scores), nil
}

// Top returns the label with the highest score. Ties go to the earlier label.
func Top(scores map[string]float32) string {
	best := Labels[0]
	for _, l := range Labels[1:] {
		if scores[l] > scores[best] {
			best = l
		}
	}
	return best
}

// Destroy releases resources held by the session.
func (r *RatingSession) Destroy() {
	if r.session != nil {
		r.session.Destroy()
	}
	ort.DestroyEnvironment()
	onnxlib.Remove(r.extracted)
}

func softmax(logits []float32) []float32 {
	hi := logits[0]
	for _, v := range logits[1:] {
		if v > hi {
			hi = v
		}
	}

	sum := float32(0)
	result := make([]float32, len(logits))
	for i, v := range logits {
		result[i] = float32(math.Exp(float64(v - hi)))
		sum += result[i]
	}
	for i := range result {
		result[i] /= sum
	}
	return result
}

func defaultONNXRuntimePath() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "/opt/homebrew/lib/libonnxruntime.dylib"
		}
		return "/usr/local/lib/libonnxruntime.dylib"
	case "linux":
		return "/usr/lib/libonnxruntime.so"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
