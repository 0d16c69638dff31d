package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/pkg/sanitize"
	"github.com/oliulv/yc-eval-game/repository"
)

// ErrVideoNotFound signals that the two-step submit-then-transcribe flow is
// broken: there is no row to attach the transcript to and inserting one was
// not permitted.
var ErrVideoNotFound = errors.New("video not found to attach transcript")

const maxStoredErrorLen = 500

type TranscriptionResult struct {
	RawTranscript       string
	SanitizedTranscript string
}

type PersistOptions struct {
	AllowInsert bool
	Title       *string
	Accepted    bool
}

type TranscriptionService interface {
	TranscribeAndPersist(ctx context.Context, youtubeID string, opts PersistOptions) (*TranscriptionResult, error)
	GetOrCreateTranscript(ctx context.Context, youtubeID string) (transcript string, cached bool, err error)
	MarkDownloadFailure(ctx context.Context, youtubeID string, message string)
}

// AudioDownloader is the slice of the yt-dlp wrapper the pipeline needs.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, youtubeID string) ([]byte, string, error)
}

type transcriptionService struct {
	repo        repository.VideoRepository
	downloader  AudioDownloader
	transcriber Transcriber
	storage     *minio.Client
	audioBucket string
}

func NewTranscriptionService(
	repo repository.VideoRepository,
	downloader AudioDownloader,
	transcriber Transcriber,
	storage *minio.Client,
	audioBucket string,
) TranscriptionService {
	return &transcriptionService{
		repo:        repo,
		downloader:  downloader,
		transcriber: transcriber,
		storage:     storage,
		audioBucket: audioBucket,
	}
}

// IsDownloadFailure reports whether err came out of the audio acquisition
// step, in any of its classified forms.
func IsDownloadFailure(err error) bool {
	var downloadErr *DownloadError
	return errors.As(err, &downloadErr) || errors.Is(err, ErrBinaryNotFound)
}

func (s *transcriptionService) TranscribeAndPersist(ctx context.Context, youtubeID string, opts PersistOptions) (*TranscriptionResult, error) {
	audio, stderrText, err := s.downloader.DownloadAudio(ctx, youtubeID)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Str("youtube_id", youtubeID).
		Int("audio_bytes", len(audio)).
		Msg("audio downloaded")
	if stderrText != "" {
		zerolog.Ctx(ctx).Debug().Str("youtube_id", youtubeID).Str("stderr", stderrTail(stderrText, 5)).Msg("yt-dlp diagnostics")
	}

	s.archiveAudio(ctx, youtubeID, audio)

	raw, err := s.transcriber.Transcribe(ctx, audio, youtubeID+".mp3")
	if err != nil {
		return nil, err
	}

	result := &TranscriptionResult{
		RawTranscript:       raw,
		SanitizedTranscript: sanitize.Sanitize(raw),
	}

	if err := s.persist(ctx, youtubeID, result, opts); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *transcriptionService) GetOrCreateTranscript(ctx context.Context, youtubeID string) (string, bool, error) {
	existing, err := s.repo.FindVideoByYoutubeID(ctx, youtubeID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", false, err
	}
	if existing != nil && existing.Transcript != nil && *existing.Transcript != "" {
		return *existing.Transcript, true, nil
	}

	result, err := s.TranscribeAndPersist(ctx, youtubeID, PersistOptions{AllowInsert: true})
	if err != nil {
		if IsDownloadFailure(err) {
			s.MarkDownloadFailure(ctx, youtubeID, err.Error())
		}
		return "", false, err
	}

	return result.SanitizedTranscript, false, nil
}

// MarkDownloadFailure is an advisory write: it annotates the owning record
// with the failure but its own errors are logged and swallowed, never
// escalated, because the annotation is diagnostic, not correctness-critical.
func (s *transcriptionService) MarkDownloadFailure(ctx context.Context, youtubeID string, message string) {
	if len(message) > maxStoredErrorLen {
		message = message[:maxStoredErrorLen]
	}

	err := s.repo.UpdateVideoByYoutubeID(ctx, youtubeID, map[string]interface{}{
		"transcript_status":        constant.TranscriptStatusDownloadFailed,
		"last_transcription_error": message,
	})
	if err != nil && !isMissingStatusColumns(err) {
		zerolog.Ctx(ctx).Error().Err(err).Str("youtube_id", youtubeID).Msg("failed to record download failure")
	}
}

func (s *transcriptionService) persist(ctx context.Context, youtubeID string, result *TranscriptionResult, opts PersistOptions) error {
	now := time.Now().UTC()
	payload := map[string]interface{}{
		"transcript":               result.SanitizedTranscript,
		"raw_transcript":           result.RawTranscript,
		"transcribed_at":           now,
		"transcript_status":        constant.TranscriptStatusTranscribed,
		"last_transcription_error": nil,
	}

	_, err := s.repo.FindVideoByYoutubeID(ctx, youtubeID)
	switch {
	case err == nil:
		if updateErr := s.repo.UpdateVideoByYoutubeID(ctx, youtubeID, payload); updateErr != nil {
			if !isMissingStatusColumns(updateErr) {
				return updateErr
			}
			// schema drift: retry with only the unconditionally-present columns
			return s.repo.UpdateVideoByYoutubeID(ctx, youtubeID, map[string]interface{}{
				"transcript":     result.SanitizedTranscript,
				"raw_transcript": result.RawTranscript,
				"transcribed_at": now,
			})
		}
		return nil

	case errors.Is(err, repository.ErrNotFound):
		if !opts.AllowInsert {
			return ErrVideoNotFound
		}

		insert := map[string]interface{}{
			"youtube_id": youtubeID,
			"title":      opts.Title,
			"accepted":   opts.Accepted,
		}
		for k, v := range payload {
			insert[k] = v
		}
		if insertErr := s.repo.InsertVideoColumns(ctx, insert); insertErr != nil {
			if !isMissingStatusColumns(insertErr) {
				return insertErr
			}
			return s.repo.InsertVideoColumns(ctx, map[string]interface{}{
				"youtube_id":     youtubeID,
				"title":          opts.Title,
				"accepted":       opts.Accepted,
				"transcript":     result.SanitizedTranscript,
				"raw_transcript": result.RawTranscript,
				"transcribed_at": now,
			})
		}
		return nil

	default:
		return err
	}
}

// archiveAudio keeps the raw audio bytes in object storage so a video can be
// re-transcribed without another download. Advisory: failure is logged only.
func (s *transcriptionService) archiveAudio(ctx context.Context, youtubeID string, audio []byte) {
	if s.storage == nil {
		return
	}

	objectName := fmt.Sprintf("audio/%s.mp3", youtubeID)
	_, err := s.storage.PutObject(ctx, s.audioBucket, objectName, bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{
		ContentType: "audio/mpeg",
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("youtube_id", youtubeID).Msg("failed to archive audio")
		return
	}
	zerolog.Ctx(ctx).Debug().Str("object", objectName).Msg("audio archived")
}

func isMissingStatusColumns(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "transcript_status") || strings.Contains(msg, "last_transcription_error")
}
