package translation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/queue"
	"github.com/owenstack/chat/internal/repo"
)

func TestResolve_GroupsByLanguageInJoinOrder(t *testing.T) {
	db := newPipelineDB(t)
	room := seedRoom(t, db, [][2]string{
		{"alice", "en"}, {"bruno", "es"}, {"carla", "es"}, {"dmitri", ""}, {"elodie", "fr"},
	})

	groups, err := NewResolver(db).Resolve(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, LanguageGroups{
		"en": {"alice"},
		"es": {"bruno", "carla"},
		"fr": {"elodie"},
	}, groups)
	assert.Equal(t, []domain.Language{"en", "es", "fr"}, groups.Languages())
	assert.Equal(t, 4, groups.Size())
}

func TestResolve_UnknownRoomIsEmpty(t *testing.T) {
	db := newPipelineDB(t)
	groups, err := NewResolver(db).Resolve(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestPlan_ExcludesAuthorAndEmptyGroups(t *testing.T) {
	d := NewDispatcher(nil, nil, PolicySkip)
	msg := &domain.Message{ID: "m1", RoomID: "r1", AuthorID: "alice", OriginalText: "hi", SourceLanguage: "en"}
	groups := LanguageGroups{
		"en": {"alice", "zoe"},
		"es": {"bruno", "carla"},
		"de": {"alice"}, // only the author reads German
	}

	jobs := d.Plan(msg, groups)
	require.Len(t, jobs, 1)
	assert.Equal(t, "es", jobs[0].TargetLanguage)
	assert.Equal(t, []string{"bruno", "carla"}, jobs[0].RecipientIDs)
	assert.Equal(t, domain.JobPending, jobs[0].State)
}

func TestPlan_TranslatePolicyKeepsSourceLanguage(t *testing.T) {
	d := NewDispatcher(nil, nil, PolicyTranslate)
	msg := &domain.Message{ID: "m1", AuthorID: "alice", OriginalText: "hi", SourceLanguage: "en"}
	jobs := d.Plan(msg, LanguageGroups{"en": {"alice", "zoe"}, "es": {"bruno"}})

	require.Len(t, jobs, 2)
	assert.Equal(t, "en", jobs[0].TargetLanguage)
	assert.Equal(t, []string{"zoe"}, jobs[0].RecipientIDs)
	assert.Equal(t, "es", jobs[1].TargetLanguage)
}

func TestDispatch_OneJobPerTargetLanguage(t *testing.T) {
	db := newPipelineDB(t)
	room := seedRoom(t, db, [][2]string{
		{"alice", "en"}, {"bruno", "es"}, {"carla", "es"}, {"elodie", "fr"}, {"zoe", "en"},
	})
	msg := seedMessageAt(t, db, room.ID, "alice", "good morning", "en", time.Now().UTC())
	groups, err := NewResolver(db).Resolve(context.Background(), room.ID)
	require.NoError(t, err)

	q := queue.NewMemory(16)
	d := NewDispatcher(db, q, PolicySkip)
	jobs, err := d.Dispatch(context.Background(), msg, groups)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, 2, q.Len())

	// Re-dispatch reuses the rows instead of creating new ones.
	again, err := d.Dispatch(context.Background(), msg, groups)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, jobs[0].ID, again[0].ID)
	assert.Equal(t, jobs[1].ID, again[1].ID)
	stored, err := repo.ListJobsForMessage(context.Background(), db, msg.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestDispatch_NoRecipientsNoJobs(t *testing.T) {
	db := newPipelineDB(t)
	room := seedRoom(t, db, [][2]string{{"alice", "en"}, {"zoe", "en"}})
	msg := seedMessageAt(t, db, room.ID, "alice", "hi", "en", time.Now().UTC())

	q := queue.NewMemory(4)
	jobs, err := NewDispatcher(db, q, PolicySkip).Dispatch(context.Background(), msg, LanguageGroups{"en": {"alice", "zoe"}})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, 0, q.Len())
}

func TestDispatch_EnqueueFailureMarksOnlyThatJob(t *testing.T) {
	db := newPipelineDB(t)
	room := seedRoom(t, db, [][2]string{{"alice", "en"}, {"bruno", "es"}, {"elodie", "fr"}})
	msg := seedMessageAt(t, db, room.ID, "alice", "hi", "en", time.Now().UTC())

	q := queue.NewMemory(1)
	jobs, err := NewDispatcher(db, q, PolicySkip).Dispatch(context.Background(), msg, LanguageGroups{
		"es": {"bruno"}, "fr": {"elodie"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrFull)
	require.Len(t, jobs, 2)

	es, err := repo.GetJob(context.Background(), db, jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, es.State)
	fr, err := repo.GetJob(context.Background(), db, jobs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, fr.State)
	assert.Contains(t, fr.Error, "enqueue")
}
