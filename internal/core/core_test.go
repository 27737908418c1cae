package core

import (
	"testing"
	"time"
)

func TestArticleBodyLength(t *testing.T) {
	article := Article{Body: "삼성전자 주가가 급등했다."}
	if got := article.BodyLength(); got != len([]rune("삼성전자 주가가 급등했다.")) {
		t.Errorf("BodyLength() = %d, want %d", got, len([]rune("삼성전자 주가가 급등했다.")))
	}
}

func TestArticleBodyLengthEmpty(t *testing.T) {
	var article Article
	if got := article.BodyLength(); got != 0 {
		t.Errorf("BodyLength() on empty article = %d, want 0", got)
	}
}

func TestIndexStateDefaults(t *testing.T) {
	state := IndexState{
		Name:       "primary",
		Dimensions: 768,
		Distance:   "dot",
		Active:     true,
		LastUpdated: time.Now(),
	}
	if state.Dimensions != 768 {
		t.Errorf("Dimensions = %d, want 768", state.Dimensions)
	}
	if !state.Active {
		t.Error("expected state to be active")
	}
}

func TestProcessingLogEntryPhases(t *testing.T) {
	entry := ProcessingLogEntry{
		Phase:     PhaseEmbed,
		Status:    "ok",
		Timestamp: time.Now(),
	}
	if entry.Phase != PhaseEmbed {
		t.Errorf("Phase = %v, want %v", entry.Phase, PhaseEmbed)
	}
}
