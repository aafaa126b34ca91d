package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("Expected HTTPPort 8080, got %s", cfg.HTTPPort)
	}
	if cfg.ClassifierMode != ModeModel {
		t.Errorf("Expected mode %s, got %s", ModeModel, cfg.ClassifierMode)
	}
	if cfg.ImageSize != 128 {
		t.Errorf("Expected ImageSize 128, got %d", cfg.ImageSize)
	}
	if cfg.MaxUploadBytes != 16*1024*1024 {
		t.Errorf("Expected 16MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ModalityTimeout != 10*time.Second {
		t.Errorf("Expected 10s modality timeout, got %v", cfg.ModalityTimeout)
	}
	if !cfg.AssessParallel {
		t.Error("Expected parallel assessment by default")
	}
	if cfg.FeatureCache != CacheMemory {
		t.Errorf("Expected memory feature cache, got %s", cfg.FeatureCache)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CLASSIFIER_MODE", "mock")
	t.Setenv("MODALITY_TIMEOUT", "250ms")
	t.Setenv("ASSESS_PARALLEL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != "9090" {
		t.Errorf("Expected HTTPPort 9090, got %s", cfg.HTTPPort)
	}
	if cfg.ClassifierMode != ModeMock {
		t.Errorf("Expected mode mock, got %s", cfg.ClassifierMode)
	}
	if cfg.ModalityTimeout != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.ModalityTimeout)
	}
	if cfg.AssessParallel {
		t.Error("Expected sequential assessment")
	}
}

func TestLoad_InvalidMode(t *testing.T) {
	t.Setenv("CLASSIFIER_MODE", "magic")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unknown classifier mode")
	}
}

func TestLoad_InvalidCache(t *testing.T) {
	t.Setenv("FEATURE_CACHE", "memcached")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unknown feature cache")
	}
}

func TestValidate_ImageSize(t *testing.T) {
	tests := []struct {
		size    int
		wantErr bool
	}{
		{128, false},
		{64, false},
		{16, false},
		{8, true},
		{100, true},
		{0, true},
	}

	for _, tt := range tests {
		cfg := &Config{
			ClassifierMode:  ModeModel,
			ArtifactSource:  "file",
			FeatureCache:    CacheNone,
			ImageSize:       tt.size,
			ModalityTimeout: time.Second,
			MaxUploadBytes:  1,
		}
		err := cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("ImageSize %d: expected error=%v, got %v", tt.size, tt.wantErr, err)
		}
	}
}
