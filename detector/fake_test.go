package detector

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-detect/detection"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gocv.io/x/gocv"
)

const (
	inputH = 8
	inputW = 12
)

var (
	testMean = [3]float32{123.675, 116.28, 103.53}
	testStd  = [3]float32{58.395, 57.12, 57.375}
)

// fakeInfer is an in-memory model with mmdeploy-style outputs. Row i of every
// forward pass holds i+1 detections labelled i.
type fakeInfer struct {
	input    *inference.Tensor
	outputs  []*inference.Tensor
	maxBatch int
	forwards int
	err      error
	closed   bool
}

func newFakeInfer(t testing.TB, maxBatch, outBatch int) *fakeInfer {
	t.Helper()
	input, err := inference.NewTensor("input", inference.Float, maxBatch, 3, inputH, inputW)
	require.NoError(t, err)
	dets, err := inference.NewTensor("dets", inference.Float, outBatch, detection.MaxBoxes, 5)
	require.NoError(t, err)
	labels, err := inference.NewTensor("labels", inference.Int32, outBatch, detection.MaxBoxes)
	require.NoError(t, err)
	return &fakeInfer{input: input, outputs: []*inference.Tensor{dets, labels}, maxBatch: maxBatch}
}

func (f *fakeInfer) loader() inference.Loader {
	return func(string) (inference.Infer, error) { return f, nil }
}

func (f *fakeInfer) Input(i int) *inference.Tensor {
	if i != 0 {
		return nil
	}
	return f.input
}

func (f *fakeInfer) Output(i int) *inference.Tensor {
	if i < 0 || i >= len(f.outputs) {
		return nil
	}
	return f.outputs[i]
}

func (f *fakeInfer) NumInput() int     { return 1 }
func (f *fakeInfer) NumOutput() int    { return len(f.outputs) }
func (f *fakeInfer) MaxBatchSize() int { return f.maxBatch }
func (f *fakeInfer) Print()            {}

func (f *fakeInfer) Forward(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.forwards++

	dets, _ := f.outputs[0].Float32s()
	labels, _ := f.outputs[1].Int32s()
	clear(dets)
	clear(labels)
	for i := 0; i < f.outputs[0].Dim(0); i++ {
		for j := 0; j <= i && j < detection.MaxBoxes; j++ {
			copy(dets[(i*detection.MaxBoxes+j)*5:], []float32{1, 2, 3, 4, 0.9})
			labels[i*detection.MaxBoxes+j] = int32(i)
		}
	}
	return nil
}

func (f *fakeInfer) Close() error {
	f.closed = true
	return nil
}

// observe routes the package logger to an in-memory core for the rest of the test.
func observe(t testing.TB) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	previous := logger.Log()
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(previous) })
	return logs
}

func newImage(t testing.TB, value float64) gocv.Mat {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), inputH*2, inputW*2, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { _ = img.Close() })
	return img
}
