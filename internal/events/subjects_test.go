package events

import (
	"strings"
	"testing"
)

func TestSubjects(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SubjectRankingCompleted("abc"), "relife.technical.ranking.abc.completed"},
		{SubjectPillarScored("ee"), "relife.technical.pillar.ee.scored"},
		{SubjectRankingRejected, "relife.technical.ranking.rejected"},
		{SubjectStorageUploaded, "relife.technical.storage.uploaded"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestSubjectsCoveredByStream(t *testing.T) {
	prefix := strings.TrimSuffix(StreamSubjects, ">")
	for _, s := range []string{
		SubjectRankingCompleted("run"), SubjectPillarScored("fv"),
		SubjectRankingRejected, SubjectStorageUploaded,
	} {
		if !strings.HasPrefix(s, prefix) {
			t.Errorf("subject %s is outside stream %s", s, StreamSubjects)
		}
	}
}
