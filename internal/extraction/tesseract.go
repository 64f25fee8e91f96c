package extraction

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TesseractEngine распознает текст чека локальным бинарником tesseract.
type TesseractEngine struct {
	binary string
}

// NewTesseractEngine создает OCR-движок; пустой путь означает tesseract из PATH.
func NewTesseractEngine(binary string) *TesseractEngine {
	if binary == "" {
		binary = "tesseract"
	}

	return &TesseractEngine{binary: binary}
}

// RecognizeText прогоняет изображение через tesseract и возвращает текст.
func (e *TesseractEngine) RecognizeText(ctx context.Context, imageBytes []byte) (string, error) {
	cmd := exec.CommandContext(ctx, e.binary, "stdin", "stdout")
	cmd.Stdin = bytes.NewReader(imageBytes)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message != "" {
			return "", fmt.Errorf("tesseract: %s: %w", message, err)
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
