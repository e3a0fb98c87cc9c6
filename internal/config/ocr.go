package config

import (
	"os"
	"strconv"
	"sync"
)

type OCRConfig struct {
	Tesseract   string // binary name or absolute path
	Lang        string
	MaxImageDim int // preprocessing resize cap, px
	Preprocess  bool
	WebhookURL  string // optional terminal-event webhook
}

var (
	ocrConfig *OCRConfig
	ocrOnce   sync.Once
)

func LoadOCRConfig() *OCRConfig {
	ocrOnce.Do(func() {
		ocrConfig = &OCRConfig{
			Tesseract:   envOrDefault("TESSERACT_PATH", "tesseract"),
			Lang:        envOrDefault("OCR_LANG", "eng"),
			MaxImageDim: envIntOrDefault("OCR_MAX_IMAGE_DIM", 2000),
			Preprocess:  envOrDefault("OCR_PREPROCESS", "true") != "false",
			WebhookURL:  os.Getenv("OCR_WEBHOOK_URL"),
		}
	})
	return ocrConfig
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
