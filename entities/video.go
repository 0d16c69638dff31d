package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/oliulv/yc-eval-game/constant"
)

// Video is one founder-pitch video with its ground-truth outcome. RawTranscript
// carries `json:"-"` so the unsanitized text can never leave through an API
// response, only the sanitized Transcript is exposed.
type Video struct {
	ID                     uuid.UUID                 `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	YoutubeID              string                    `json:"youtube_id" gorm:"type:varchar(20);not null;uniqueIndex:unique_youtube_id"`
	Title                  *string                   `json:"title" gorm:"type:text"`
	Transcript             *string                   `json:"transcript" gorm:"type:text"`
	RawTranscript          *string                   `json:"-" gorm:"column:raw_transcript;type:text"`
	Accepted               bool                      `json:"accepted" gorm:"not null"`
	TranscribedAt          *time.Time                `json:"transcribed_at" gorm:"type:timestamptz"`
	TranscriptStatus       constant.TranscriptStatus `json:"transcript_status" gorm:"type:varchar(20);default:'UNTRANSCRIBED'"`
	LastTranscriptionError *string                   `json:"last_transcription_error" gorm:"type:varchar(500)"`
	SubmittedBy            string                    `json:"submitted_by" gorm:"type:varchar(100)"`
	CreatedAt              time.Time                 `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Video) TableName() string {
	return "videos"
}

// AcceptedLabel maps the ground-truth outcome onto the label space models
// answer in.
func (v Video) AcceptedLabel() constant.Label {
	return constant.LabelFromAccepted(v.Accepted)
}
