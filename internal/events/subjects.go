package events

const (
	StreamName     = "RELIFE_TECHNICAL_EVENTS"
	StreamSubjects = "relife.technical.>"
	StreamMaxAge   = "720h" // 30 days

	SubjectRankingRejected = "relife.technical.ranking.rejected"
	SubjectStorageUploaded = "relife.technical.storage.uploaded"
)

func SubjectRankingCompleted(runID string) string {
	return "relife.technical.ranking." + runID + ".completed"
}

func SubjectPillarScored(pillar string) string {
	return "relife.technical.pillar." + pillar + ".scored"
}
