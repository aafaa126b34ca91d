package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Krimson/neuro-risk/assessment-service/config"
	"github.com/Krimson/neuro-risk/assessment-service/internal/classifier"
	"github.com/Krimson/neuro-risk/assessment-service/internal/service"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		ClassifierMode:  config.ModeModel,
		ModalityTimeout: 5 * time.Second,
		AssessParallel:  true,
		ImageSize:       16,
		MockSeed:        7,
		ModelDir:        dir,
		SpiralArtifact:  "spiral.json",
		MRIArtifact:     "mri.json",
		ArtifactSource:  config.SourceFile,
		FeatureCache:    config.CacheMemory,
		CacheTTL:        time.Minute,
		InferenceAddr:   "localhost:50052",
	}
}

func writeArtifact(t *testing.T, dir, name string, modality models.Modality, method models.FeatureMethod, dim int, weight float64) {
	t.Helper()
	weights := make([]float64, dim)
	for i := range weights {
		weights[i] = weight
	}
	data, err := json.Marshal(classifier.Artifact{
		Modality:  modality,
		Method:    method,
		Version:   "test",
		Dimension: dim,
		Weights:   weights,
		Intercept: 0,
	})
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func whitePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestBuild_MockMode(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.ClassifierMode = config.ModeMock

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer app.Close()

	status := app.Service.ModelStatus()
	if status["spiral"] != "mock" || status["mri"] != "mock" {
		t.Errorf("Expected mock classifiers, got %v", status)
	}

	res, err := app.Service.Assess(context.Background(), service.Request{
		Spiral:  &models.ImageSample{Filename: "patient_spiral.png", Data: []byte{1}},
		Answers: map[string]string{"tremor": "yes"},
	})
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if res.Spiral.Result != models.LabelPositive {
		t.Errorf("Expected Positive from filename hint, got %q", res.Spiral.Result)
	}
}

func TestBuild_ModelModeMissingArtifacts(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Missing artifacts must not fail the build: %v", err)
	}
	defer app.Close()

	res, err := app.Service.Assess(context.Background(), service.Request{
		Spiral: &models.ImageSample{Filename: "spiral.png", Data: whitePNG(t)},
	})
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if res.Spiral.Result != models.LabelModelNotLoaded || res.Spiral.Confidence != 0 {
		t.Errorf("Expected model not loaded, got %+v", res.Spiral)
	}
	if res.RiskLevel.Level == "" {
		t.Error("Fusion should still produce a risk level")
	}
}

func TestBuild_AutoFallsBackToMock(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "spiral.json", models.ModalitySpiral, models.FeatureMethodHOG, 36, 0.1)

	cfg := testConfig(dir)
	cfg.ClassifierMode = config.ModeAuto

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer app.Close()

	status := app.Service.ModelStatus()
	if status["spiral"] != "ready" || status["mri"] != "mock" {
		t.Errorf("Expected ready spiral and mock MRI, got %v", status)
	}
}

func TestBuild_ModelModeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	// 16x16 HOG is 36 features, flatten is 256
	writeArtifact(t, dir, "spiral.json", models.ModalitySpiral, models.FeatureMethodHOG, 36, -1)
	writeArtifact(t, dir, "mri.json", models.ModalityMRI, models.FeatureMethodFlatten, 256, 0.01)

	app, err := Build(context.Background(), testConfig(dir))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer app.Close()

	data := whitePNG(t)
	res, err := app.Service.Assess(context.Background(), service.Request{
		Spiral:  &models.ImageSample{Filename: "spiral.png", Data: data},
		MRI:     &models.ImageSample{Filename: "mri.png", Data: data},
		Answers: map[string]string{"tremor": "yes", "stiffness": "yes", "slowness": "yes"},
	})
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	// A uniform image has zero gradients: decision value 0, class 0, p=0.5
	if res.Spiral.Result != models.LabelNegative || res.Spiral.Confidence != 0.5 {
		t.Errorf("Unexpected spiral outcome: %+v", res.Spiral)
	}
	// White pixels are 1.0: 256 * 0.01 = 2.56 > 0
	if res.MRI.Result != models.LabelPositive || res.MRI.Confidence != 0.93 {
		t.Errorf("Unexpected MRI outcome: %+v", res.MRI)
	}
	if res.Symptoms.Result != models.LabelPositive {
		t.Errorf("Unexpected symptoms outcome: %+v", res.Symptoms)
	}

	stats := app.Cache.GetStats()
	if stats["entries"].(int) != 2 {
		t.Errorf("Expected both feature vectors cached, got %v", stats)
	}
}

func TestBuild_RemoteMode(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.ClassifierMode = config.ModeRemote
	cfg.FeatureCache = config.CacheNone

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer app.Close()

	if app.Cache != nil {
		t.Error("Expected no feature cache")
	}
	if status := app.Service.ModelStatus(); status["spiral"] != "ready" {
		t.Errorf("Remote classifiers should report ready, got %v", status)
	}
}
