package transcript

import (
	"testing"
	"time"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

func buildMessage(id, chatID string, at time.Time) models.Message {
	return models.Message{
		ID:             id,
		ChatID:         chatID,
		SenderRole:     models.RoleUser,
		UserID:         "u1",
		NutritionistID: "n1",
		Text:           "text " + id,
		CreatedAt:      at,
	}
}

func TestMergeSortsAscendingAndDropsDuplicateIDs(t *testing.T) {
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	merged := Merge([]models.Message{
		buildMessage("m3", "n1-u1", base.Add(2*time.Second)),
		buildMessage("m1", "n1-u1", base),
		buildMessage("m2", "n1-u1", base.Add(time.Second)),
		buildMessage("m1", "n1-u1", base),
	})

	if got := len(merged); got != 3 {
		t.Fatalf("expected 3 unique messages, got %d", got)
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].CreatedAt.Before(merged[i-1].CreatedAt) {
			t.Fatalf("expected non-decreasing timestamps, got %v before %v",
				merged[i].CreatedAt, merged[i-1].CreatedAt)
		}
	}
	if merged[0].ID != "m1" || merged[1].ID != "m2" || merged[2].ID != "m3" {
		t.Errorf("unexpected order: %s, %s, %s", merged[0].ID, merged[1].ID, merged[2].ID)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	input := []models.Message{
		buildMessage("m2", "n1-u1", base.Add(time.Second)),
		buildMessage("m1", "n1-u1", base),
		buildMessage("m2", "n1-u1", base.Add(time.Second)),
	}

	once := Merge(input)
	twice := Merge(once)

	if len(once) != len(twice) {
		t.Fatalf("expected stable length, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("position %d changed: %s vs %s", i, once[i].ID, twice[i].ID)
		}
	}
}

func TestMergeEqualTimestampsKeepInputOrder(t *testing.T) {
	at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	merged := Merge([]models.Message{
		buildMessage("first", "n1-u1", at),
		buildMessage("second", "n1-u1", at),
	})

	if merged[0].ID != "first" || merged[1].ID != "second" {
		t.Errorf("expected input order on timestamp tie, got %s then %s", merged[0].ID, merged[1].ID)
	}
}

func TestMergeReadFlagIsSticky(t *testing.T) {
	at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	unread := buildMessage("m1", "n1-u1", at)
	read := unread
	read.IsRead = true

	merged := Merge([]models.Message{unread}, []models.Message{read})
	if !merged[0].IsRead {
		t.Errorf("expected read flag from later copy to be kept")
	}

	merged = Merge([]models.Message{read}, []models.Message{unread})
	if !merged[0].IsRead {
		t.Errorf("expected read flag not to flip back")
	}
}

func TestMergeConfirmedStatusWinsOverPending(t *testing.T) {
	at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	pending := buildMessage("m1", "n1-u1", at)
	pending.Status = models.StatusPending
	confirmed := pending
	confirmed.Status = models.StatusConfirmed

	merged := Merge([]models.Message{pending, confirmed})
	if merged[0].Status != models.StatusConfirmed {
		t.Errorf("expected confirmed status, got %q", merged[0].Status)
	}
}

func TestWithoutRemovesOnlyMatchingID(t *testing.T) {
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	messages := []models.Message{
		buildMessage("m1", "n1-u1", base),
		buildMessage("m2", "n1-u1", base.Add(time.Second)),
	}

	out := Without(messages, "m1")
	if len(out) != 1 || out[0].ID != "m2" {
		t.Fatalf("expected only m2 to remain, got %v", out)
	}

	out = Without(out, "missing")
	if len(out) != 1 {
		t.Errorf("expected removal of unknown id to be a no-op")
	}
}

func TestGroupSplitsByConversation(t *testing.T) {
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	a2 := buildMessage("a2", "n1-u1", base.Add(time.Second))
	a1 := buildMessage("a1", "n1-u1", base)
	b1 := buildMessage("b1", "n1-u2", base)
	b1.UserID = "u2"

	grouped := Group([]models.Message{a2, a1, b1, a1})

	if got := len(grouped); got != 2 {
		t.Fatalf("expected 2 conversations, got %d", got)
	}
	first := grouped["n1-u1"]
	if len(first) != 2 || first[0].ID != "a1" || first[1].ID != "a2" {
		t.Errorf("expected deduplicated ascending transcript for n1-u1, got %v", first)
	}
	if len(grouped["n1-u2"]) != 1 {
		t.Errorf("expected single message for n1-u2")
	}
}
