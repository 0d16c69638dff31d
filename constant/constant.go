package constant

type TranscriptStatus string

const (
	TranscriptStatusUntranscribed  TranscriptStatus = "UNTRANSCRIBED"
	TranscriptStatusTranscribed    TranscriptStatus = "TRANSCRIBED"
	TranscriptStatusDownloadFailed TranscriptStatus = "DOWNLOAD_FAILED"
)

func (s TranscriptStatus) String() string {
	return string(s)
}

type Label string

const (
	LabelYes Label = "YES"
	LabelNo  Label = "NO"
)

func (l Label) String() string {
	return string(l)
}

// LabelFromAccepted maps the ground-truth accepted flag to the label a model
// must answer to be scored correct.
func LabelFromAccepted(accepted bool) Label {
	if accepted {
		return LabelYes
	}
	return LabelNo
}

type ModelKind string

const (
	ModelKindChat      ModelKind = "chat"
	ModelKindImage     ModelKind = "image"
	ModelKindEmbedding ModelKind = "embedding"
	ModelKindOther     ModelKind = "other"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
