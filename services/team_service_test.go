package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matchday-app/matchday-system/models"
	"github.com/matchday-app/matchday-system/storage"
)

// fakeUploader records uploads in memory.
type fakeUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *fakeUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, err
	}
	u.mu.Lock()
	u.keys = append(u.keys, key)
	u.mu.Unlock()
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error { return nil }

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func newTestTeamService(store *memStore, uploader storage.FileUploader, locks *MatchLocks) TeamService {
	return NewTeamService(
		store,
		store,
		teamStore{store},
		assignmentStore{store},
		userStore{store},
		uploader,
		nil,
		locks,
		time.Second,
	)
}

func TestAvailablePositions(t *testing.T) {
	active := []models.TeamParticipant{{Position: 5}}
	got := AvailablePositions(11, active)

	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for _, pos := range got {
		if pos == 5 {
			t.Errorf("occupied position 5 listed as available: %v", got)
		}
	}
	if got[0] != 1 || got[len(got)-1] != 11 {
		t.Errorf("positions = %v, want 1..11 without 5", got)
	}
}

func TestAvailablePositionsEmptyRoster(t *testing.T) {
	got := AvailablePositions(3, nil)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("positions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("positions = %v, want %v", got, want)
		}
	}
}

func TestJoinTeamClaimsPosition(t *testing.T) {
	store := newMemStore()
	store.seedUser(1)
	store.seedUser(2)
	svc := newTestTeamService(store, nil, nil)
	ctx := context.Background()

	match := seedUpcomingMatch(store, 1, 10, time.Now().Add(time.Hour))
	team := store.seedTeam(models.Team{MatchID: match.ID, Name: "Reds", MaxPlayers: 5})

	got, err := svc.JoinTeam(ctx, match.ID, team.ID, 2, 3, "player")
	if err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}
	if got.CurrentPlayers != 1 {
		t.Errorf("CurrentPlayers = %d, want 1", got.CurrentPlayers)
	}
	for _, pos := range got.AvailablePositions {
		if pos == 3 {
			t.Errorf("claimed position 3 still available: %v", got.AvailablePositions)
		}
	}
}

func TestJoinTeamOrderedChecks(t *testing.T) {
	store := newMemStore()
	store.seedUser(1)
	store.seedUser(2)
	store.seedUser(3)
	svc := newTestTeamService(store, nil, nil)
	ctx := context.Background()

	match := seedUpcomingMatch(store, 1, 10, time.Now().Add(time.Hour))
	other := seedUpcomingMatch(store, 1, 10, time.Now().Add(time.Hour))
	team := store.seedTeam(models.Team{MatchID: match.ID, Name: "Reds", MaxPlayers: 5})
	second := store.seedTeam(models.Team{MatchID: match.ID, Name: "Blues", MaxPlayers: 5})

	if _, err := svc.JoinTeam(ctx, match.ID, 404, 2, 1, "player"); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("unknown team err = %v, want ErrTeamNotFound", err)
	}
	if _, err := svc.JoinTeam(ctx, other.ID, team.ID, 2, 1, "player"); !errors.Is(err, ErrTeamNotInMatch) {
		t.Errorf("cross-match err = %v, want ErrTeamNotInMatch", err)
	}
	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 2, 0, "player"); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("position 0 err = %v, want ErrPositionOutOfRange", err)
	}
	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 2, 6, "player"); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("position 6 err = %v, want ErrPositionOutOfRange", err)
	}

	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 2, 3, "player"); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}
	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 3, 3, "player"); !errors.Is(err, ErrPositionTaken) {
		t.Errorf("taken position err = %v, want ErrPositionTaken", err)
	}
	// Same user on a second team of the same match.
	if _, err := svc.JoinTeam(ctx, match.ID, second.ID, 2, 1, "player"); !errors.Is(err, ErrAlreadyRostered) {
		t.Errorf("double roster err = %v, want ErrAlreadyRostered", err)
	}

	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 404, 1, "player"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}

func TestLeaveTeamFreesPosition(t *testing.T) {
	store := newMemStore()
	store.seedUser(1)
	store.seedUser(2)
	svc := newTestTeamService(store, nil, nil)
	ctx := context.Background()

	match := seedUpcomingMatch(store, 1, 10, time.Now().Add(time.Hour))
	team := store.seedTeam(models.Team{MatchID: match.ID, Name: "Reds", MaxPlayers: 5})

	if _, err := svc.LeaveTeam(ctx, match.ID, 2); !errors.Is(err, ErrNotRostered) {
		t.Fatalf("leave before join err = %v, want ErrNotRostered", err)
	}

	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 2, 3, "player"); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}
	got, err := svc.LeaveTeam(ctx, match.ID, 2)
	if err != nil {
		t.Fatalf("LeaveTeam: %v", err)
	}
	if got.CurrentPlayers != 0 {
		t.Errorf("CurrentPlayers = %d, want 0", got.CurrentPlayers)
	}
	if len(got.AvailablePositions) != 5 {
		t.Errorf("AvailablePositions = %v, want all 5 free", got.AvailablePositions)
	}

	// Released position can be claimed again, by anyone.
	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 1, 3, "captain"); err != nil {
		t.Errorf("rejoin released position: %v", err)
	}
}

func TestGetAvailablePositions(t *testing.T) {
	store := newMemStore()
	store.seedUser(1)
	store.seedUser(2)
	svc := newTestTeamService(store, nil, nil)
	ctx := context.Background()

	match := seedUpcomingMatch(store, 1, 10, time.Now().Add(time.Hour))
	team := store.seedTeam(models.Team{MatchID: match.ID, Name: "Reds", MaxPlayers: 3})

	if _, err := svc.JoinTeam(ctx, match.ID, team.ID, 2, 2, "player"); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}

	got, err := svc.GetAvailablePositions(ctx, team.ID)
	if err != nil {
		t.Fatalf("GetAvailablePositions: %v", err)
	}
	want := []int{1, 3}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("positions = %v, want %v", got, want)
	}

	if _, err := svc.GetAvailablePositions(ctx, 404); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("unknown team err = %v, want ErrTeamNotFound", err)
	}
}

func TestUploadTeamLogo(t *testing.T) {
	store := newMemStore()
	store.seedUser(1)
	store.seedUser(2)
	uploader := &fakeUploader{}
	svc := newTestTeamService(store, uploader, nil)
	ctx := context.Background()

	match := seedUpcomingMatch(store, 1, 10, time.Now().Add(time.Hour))
	team := store.seedTeam(models.Team{MatchID: match.ID, Name: "Reds", MaxPlayers: 5})

	if _, err := svc.UploadTeamLogo(ctx, team.ID, 2, "image/png", strings.NewReader("png bytes")); !errors.Is(err, ErrNotMatchCreator) {
		t.Fatalf("upload by non-creator err = %v, want ErrNotMatchCreator", err)
	}
	if _, err := svc.UploadTeamLogo(ctx, team.ID, 1, "text/plain", strings.NewReader("nope")); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("bad content type err = %v, want ErrValidationFailed", err)
	}

	got, err := svc.UploadTeamLogo(ctx, team.ID, 1, "image/png", strings.NewReader("png bytes"))
	if err != nil {
		t.Fatalf("UploadTeamLogo: %v", err)
	}
	if got.LogoKey == nil || !strings.HasSuffix(*got.LogoKey, ".png") {
		t.Errorf("LogoKey = %v, want teams/.../logo.png", got.LogoKey)
	}
	if got.LogoURL == nil || !strings.HasPrefix(*got.LogoURL, "https://cdn.example.com/") {
		t.Errorf("LogoURL = %v, want public URL", got.LogoURL)
	}
	if len(uploader.keys) != 1 {
		t.Errorf("uploads = %d, want 1", len(uploader.keys))
	}
}
