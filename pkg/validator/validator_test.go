package validator

import (
	"strings"
	"testing"
)

type message struct {
	Role string `json:"role" validate:"required,oneof=user assistant"`
}

type request struct {
	Messages  []message `json:"messages" validate:"required,min=1,dive"`
	EpisodeID string    `json:"episodeId,omitempty" validate:"omitempty,uuid"`
}

func TestValidate(t *testing.T) {
	v := New()

	if err := v.Validate(&request{Messages: []message{{Role: "user"}}}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	err := v.Validate(&request{Messages: []message{{Role: "robot"}}, EpisodeID: "x"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"validation failed", "messages[0].role: failed oneof", "episodeId: failed uuid"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}
