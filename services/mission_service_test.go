package services

import (
	"context"
	"testing"
	"time"

	"creator-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type missionFixture struct {
	*appFixture
	missions *MissionService
}

func newMissionFixture(t *testing.T) *missionFixture {
	f := newAppFixture(t)
	return &missionFixture{appFixture: f, missions: NewMissionService(f.db, f.hub, zap.NewNop())}
}

// approve files and approves an application for id.
func (f *missionFixture) approve(t *testing.T, id models.Identity) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, id, validSubmission())
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, admin, id.UserID, models.StatusApproved, "")
	require.NoError(t, err)
}

func futureDeadline() string {
	return time.Now().AddDate(0, 0, 7).Format("2006-01-02")
}

func TestParseDeadline(t *testing.T) {
	d, ok := ParseDeadline("2030-03-15")
	require.True(t, ok)
	assert.Equal(t, time.Date(2030, 3, 15, 23, 59, 59, 0, time.UTC), d)

	d, ok = ParseDeadline("15/03/2030")
	require.True(t, ok)
	assert.Equal(t, 15, d.Day())

	d, ok = ParseDeadline("2030-03-15T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 10, d.Hour())

	_, ok = ParseDeadline("end of the month")
	assert.False(t, ok)
}

func TestCreateMission_NotifiesApprovedCreatorsOnly(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()

	approved := models.Identity{UserID: "approved-1", Email: "a1@example.com"}
	pending := models.Identity{UserID: "pending-1", Email: "p1@example.com"}
	f.approve(t, approved)
	_, err := f.svc.Submit(ctx, pending, validSubmission())
	require.NoError(t, err)

	sub := f.hub.Subscribe(Filter{UserID: approved.UserID, Types: []EventType{EventNotificationCreated}})
	defer sub.Close()

	mission, err := f.missions.Create(ctx, admin, CreateMissionRequest{
		Brand:    "Acme Shoes",
		Task:     "Post a reel wearing the new runners.",
		Reward:   150,
		Deadline: futureDeadline(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MissionStatusOpen, mission.Status)
	assert.Equal(t, models.MissionTargetAllApproved, mission.Target)
	require.NotNil(t, mission.DeadlineAt)

	var approvedNotes, pendingNotes int64
	f.db.Model(&models.Notification{}).Where("user_id = ? AND kind = ?", approved.UserID, models.NotificationMission).Count(&approvedNotes)
	f.db.Model(&models.Notification{}).Where("user_id = ? AND kind = ?", pending.UserID, models.NotificationMission).Count(&pendingNotes)
	assert.Equal(t, int64(1), approvedNotes)
	assert.Zero(t, pendingNotes)

	select {
	case e := <-sub.C:
		assert.Equal(t, EventNotificationCreated, e.Type)
	case <-time.After(time.Second):
		t.Fatal("approved creator not notified")
	}
}

func TestCreateMission_Validation(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()

	_, err := f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Acme", Task: "x", Reward: 0, Deadline: futureDeadline()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Acme", Task: "x", Reward: 10, Deadline: "2001-01-01"})
	assert.ErrorIs(t, err, ErrValidation)

	// free-form deadlines are kept but never expire automatically
	m, err := f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Acme", Task: "x", Reward: 10, Deadline: "end of summer"})
	require.NoError(t, err)
	assert.Nil(t, m.DeadlineAt)
	assert.Equal(t, "end of summer", m.Deadline)
}

func TestAcceptMission(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()

	f.approve(t, creator)
	mission, err := f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Acme", Task: "Unbox it", Reward: 80, Deadline: futureDeadline()})
	require.NoError(t, err)

	open, err := f.missions.ListOpen(ctx, creator.UserID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	acceptance, err := f.missions.Accept(ctx, creator.UserID, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AcceptanceStatusAccepted, acceptance.Status)

	_, err = f.missions.Accept(ctx, creator.UserID, mission.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.missions.Accept(ctx, creator.UserID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := f.missions.ListAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1), all[0].AcceptedCount)
}

func TestMissions_ApprovedCreatorsOnly(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()

	mission, err := f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Acme", Task: "Unbox it", Reward: 80, Deadline: futureDeadline()})
	require.NoError(t, err)

	_, err = f.missions.ListOpen(ctx, creator.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Submit(ctx, creator, validSubmission())
	require.NoError(t, err)
	_, err = f.missions.Accept(ctx, creator.UserID, mission.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// revoked creators lose access again
	_, err = f.svc.Review(ctx, admin, creator.UserID, models.StatusApproved, "")
	require.NoError(t, err)
	_, err = f.svc.Revoke(ctx, admin, creator.UserID, "")
	require.NoError(t, err)
	_, err = f.missions.ListOpen(ctx, creator.UserID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAcceptMission_ClosedOrExpired(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()
	f.approve(t, creator)

	mission, err := f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Acme", Task: "t", Reward: 5, Deadline: futureDeadline()})
	require.NoError(t, err)

	_, err = f.missions.SetStatus(ctx, mission.ID, models.MissionStatusClosed)
	require.NoError(t, err)
	_, err = f.missions.Accept(ctx, creator.UserID, mission.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.missions.SetStatus(ctx, mission.ID, "paused")
	assert.ErrorIs(t, err, ErrValidation)

	// push the deadline into the past and sweep
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.db.Model(&models.Mission{}).Where("id = ?", mission.ID).
		Updates(map[string]interface{}{"status": models.MissionStatusOpen, "deadline_at": past}).Error)

	_, err = f.missions.Accept(ctx, creator.UserID, mission.ID)
	assert.ErrorIs(t, err, ErrConflict)

	n, err := f.missions.ExpireOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.missions.SetStatus(ctx, mission.ID, models.MissionStatusOpen)
	assert.ErrorIs(t, err, ErrConflict)

	open, err := f.missions.ListOpen(ctx, creator.UserID)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCompleteAcceptance_SnapshotsRewardAndTotals(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()
	f.approve(t, creator)

	m1, err := f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Acme", Task: "t1", Reward: 100, Deadline: futureDeadline()})
	require.NoError(t, err)
	m2, err := f.missions.Create(ctx, admin, CreateMissionRequest{Brand: "Globex", Task: "t2", Reward: 40, Deadline: futureDeadline()})
	require.NoError(t, err)

	a1, err := f.missions.Accept(ctx, creator.UserID, m1.ID)
	require.NoError(t, err)
	_, err = f.missions.Accept(ctx, creator.UserID, m2.ID)
	require.NoError(t, err)

	done, err := f.missions.Complete(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AcceptanceStatusCompleted, done.Status)
	assert.Equal(t, 100.0, done.RewardPaid)
	require.NotNil(t, done.CompletedAt)

	_, err = f.missions.Complete(ctx, a1.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// later reward edits do not change what was paid
	require.NoError(t, f.db.Model(&models.Mission{}).Where("id = ?", m1.ID).Update("reward", 999).Error)

	mine, err := f.missions.MyMissions(ctx, creator.UserID)
	require.NoError(t, err)
	assert.Len(t, mine.Acceptances, 2)
	assert.Equal(t, 1, mine.Completed)
	assert.Equal(t, 100.0, mine.TotalEarned)

	acceptances, err := f.missions.Acceptances(ctx, m1.ID)
	require.NoError(t, err)
	require.Len(t, acceptances, 1)
	assert.Equal(t, creator.UserID, acceptances[0].UserID)
}
