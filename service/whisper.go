package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// ErrMissingOpenAIKey is a configuration failure surfaced before any network
// I/O is attempted.
var ErrMissingOpenAIKey = errors.New("OPENAI_API_KEY is not configured")

// Transcriber converts an audio byte stream into raw text. Backend errors
// propagate verbatim; retries, if any, belong to the caller.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type whisperTranscriber struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWhisperTranscriber(apiKey string) Transcriber {
	return &whisperTranscriber{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		client:  &http.Client{},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if t.apiKey == "" {
		return "", ErrMissingOpenAIKey
	}
	if filename == "" {
		filename = "audio.mp3"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := writer.WriteField("model", "whisper-1"); err != nil {
		return "", err
	}
	if err := writer.WriteField("language", "en"); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unexpected transcription response: %w", err)
	}

	return parsed.Text, nil
}
