package backend

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"scrapweigh/internal/preprocess"
)

// DNNDetector runs the deployed detection network through OpenCV's DNN
// module. It fills the detector role when a model file is configured;
// otherwise the heuristic detector serves instead.
type DNNDetector struct {
	mu  sync.Mutex // gocv.Net is not safe for concurrent Forward calls
	net gocv.Net
}

// NewDNNDetector loads the network from modelPath (and optional
// configPath for formats that need one). Fails if the files are
// missing or the network cannot be read.
func NewDNNDetector(modelPath, configPath string) (*DNNDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("model config not found: %s", configPath)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return nil, fmt.Errorf("failed to set net backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return nil, fmt.Errorf("failed to set net target: %w", err)
	}

	return &DNNDetector{net: net}, nil
}

// Close releases the underlying network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func (d *DNNDetector) Name() string { return "dnn_detector" }
func (d *DNNDetector) Kind() Kind   { return KindDetector }
func (d *DNNDetector) Cost() int    { return 5 }

func (d *DNNDetector) TensorSpec() preprocess.TensorSpec {
	return preprocess.TensorSpec{
		Name: d.Name(), Width: 224, Height: 224, Channels: 3,
		Layout: preprocess.LayoutNCHW, Source: preprocess.SourceNormalizedRGB,
	}
}

func (d *DNNDetector) Estimate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := req.Tensor.Spec
	input, err := gocv.NewMatWithSizesFromBytes(
		[]int{1, spec.Channels, spec.Height, spec.Width},
		gocv.MatTypeCV32F, float32SliceToBytes(req.Tensor.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer input.Close()

	d.mu.Lock()
	d.net.SetInput(input, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	if output.Empty() || output.Total() < 2 {
		return nil, fmt.Errorf("network produced no output")
	}

	// Output head: [0] weight as a fraction of the material's typical
	// range, [1] model confidence. Matches the deployed model's export.
	frac := float64(output.GetFloatAt(0, 0))
	conf := clamp01(float64(output.GetFloatAt(0, 1)))
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	profile := materialProfile(req.Material)
	weight := profile.WeightMin + frac*(profile.WeightMax-profile.WeightMin)

	return &Result{
		Backend:        d.Name(),
		Kind:           d.Kind(),
		Weight:         weight,
		Confidence:     conf,
		Uncertainty:    (profile.WeightMax - profile.WeightMin) * (1 - conf) / 2,
		ProcessingTime: time.Since(start),
		Factors:        []string{"neural detection model estimate"},
	}, nil
}

func float32SliceToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
