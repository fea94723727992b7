package services

import (
	"context"
	"sync"
	"time"

	"github.com/matchday-app/matchday-system/models"
	"github.com/matchday-app/matchday-system/repositories"
)

// fakeClock is a manually advanced Clock for deterministic time tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// captureHub records everything broadcast during a test.
type captureHub struct {
	mu     sync.Mutex
	events []MatchEvent
}

func (h *captureHub) BroadcastToRoom(roomID string, message interface{}) {
	event, ok := message.(MatchEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func (h *captureHub) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]string, 0, len(h.events))
	for _, e := range h.events {
		types = append(types, e.Type)
	}
	return types
}

// memStore is an in-memory stand-in for the Postgres repositories. It
// implements every repository interface plus Transactor, and relies on the
// service-level match locks for cross-call atomicity, the same way the real
// stack relies on them to serialize writers.
type memStore struct {
	mu sync.Mutex

	nextMatchID       int
	nextParticipantID int
	nextTeamID        int
	nextAssignmentID  int

	matches      map[int]*models.Match
	participants map[int]*models.Participant
	teams        map[int]*models.Team
	assignments  map[int]*models.TeamParticipant
	users        map[int]*models.User

	// Optional fault hooks, keyed by match id.
	getMatchErr    map[int]error
	updateMatchErr map[int]error
}

func newMemStore() *memStore {
	return &memStore{
		matches:        make(map[int]*models.Match),
		participants:   make(map[int]*models.Participant),
		teams:          make(map[int]*models.Team),
		assignments:    make(map[int]*models.TeamParticipant),
		users:          make(map[int]*models.User),
		getMatchErr:    make(map[int]error),
		updateMatchErr: make(map[int]error),
	}
}

func (s *memStore) seedUser(id int) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Nickname: "player", Email: "player@example.com"}
	s.users[id] = u
	return u
}

func (s *memStore) seedMatch(m models.Match) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMatchID++
	m.ID = s.nextMatchID
	stored := m
	s.matches[m.ID] = &stored
	return &m
}

func (s *memStore) seedTeam(t models.Team) *models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTeamID++
	t.ID = s.nextTeamID
	stored := t
	s.teams[t.ID] = &stored
	return &t
}

func (s *memStore) matchByID(id int) models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.matches[id]
}

// Transactor

func (s *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// MatchRepository

func (s *memStore) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMatchID++
	match.ID = s.nextMatchID
	match.CreatedAt = time.Now()
	match.LastUpdatedAt = match.CreatedAt
	stored := *match
	s.matches[match.ID] = &stored
	return nil
}

func (s *memStore) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.getMatchErr[id]; err != nil {
		return nil, err
	}
	m, ok := s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *memStore) Update(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateMatchErr[match.ID]; err != nil {
		return err
	}
	if _, ok := s.matches[match.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	stored := *match
	s.matches[match.ID] = &stored
	return nil
}

func (s *memStore) List(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Match
	for id := 1; id <= s.nextMatchID; id++ {
		m, ok := s.matches[id]
		if !ok {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.CreatorID != nil && m.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.From != nil && m.ScheduledAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.ScheduledAt.After(*filter.To) {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else if filter.Offset >= len(out) {
		out = nil
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memStore) ListDueForSweep(ctx context.Context, status models.MatchStatus, now time.Time) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for id := 1; id <= s.nextMatchID; id++ {
		m, ok := s.matches[id]
		if !ok {
			continue
		}
		if m.Status == status && !m.ScheduledAt.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) IncrementViews(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.TotalViews++
	return nil
}

func (s *memStore) DeleteCascade(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(s.matches, id)
	for pid, p := range s.participants {
		if p.MatchID == id {
			delete(s.participants, pid)
		}
	}
	for tid, t := range s.teams {
		if t.MatchID == id {
			delete(s.teams, tid)
		}
	}
	for aid, a := range s.assignments {
		if a.MatchID == id {
			delete(s.assignments, aid)
		}
	}
	return nil
}

// participantStore adapts memStore to ParticipantRepository; the method set
// would otherwise collide with MatchRepository.
type participantStore struct{ *memStore }

func (s participantStore) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants {
		if existing.MatchID == p.MatchID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	s.nextParticipantID++
	p.ID = s.nextParticipantID
	p.JoinedAt = time.Now()
	stored := *p
	s.participants[p.ID] = &stored
	return nil
}

func (s participantStore) FindByMatchAndUser(ctx context.Context, exec repositories.SQLExecutor, matchID, userID int) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.MatchID == matchID && p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (s participantStore) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participant
	for id := 1; id <= s.nextParticipantID; id++ {
		p, ok := s.participants[id]
		if ok && p.MatchID == matchID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s participantStore) CountByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.participants {
		if p.MatchID == matchID {
			count++
		}
	}
	return count, nil
}

func (s participantStore) Delete(ctx context.Context, exec repositories.SQLExecutor, matchID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.participants {
		if p.MatchID == matchID && p.UserID == userID {
			delete(s.participants, id)
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

// teamStore adapts memStore to TeamRepository.
type teamStore struct{ *memStore }

func (s teamStore) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTeamID++
	team.ID = s.nextTeamID
	team.CreatedAt = time.Now()
	stored := *team
	s.teams[team.ID] = &stored
	return nil
}

func (s teamStore) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *t
	return &copied, nil
}

func (s teamStore) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Team
	for id := 1; id <= s.nextTeamID; id++ {
		t, ok := s.teams[id]
		if ok && t.MatchID == matchID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s teamStore) RecomputeStats(ctx context.Context, exec repositories.SQLExecutor, teamID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return 0, repositories.ErrTeamNotFound
	}
	count := 0
	for _, a := range s.assignments {
		if a.TeamID == teamID && a.IsActive {
			count++
		}
	}
	t.CurrentPlayers = count
	return count, nil
}

func (s teamStore) UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.LogoKey = logoKey
	return nil
}

// assignmentStore adapts memStore to TeamParticipantRepository, enforcing the
// two partial unique indexes the real schema carries.
type assignmentStore struct{ *memStore }

func (s assignmentStore) Create(ctx context.Context, exec repositories.SQLExecutor, tp *models.TeamParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if !a.IsActive {
			continue
		}
		if a.TeamID == tp.TeamID && a.Position == tp.Position {
			return repositories.ErrAssignmentPositionConflict
		}
		if a.MatchID == tp.MatchID && a.UserID == tp.UserID {
			return repositories.ErrAssignmentUserConflict
		}
	}
	s.nextAssignmentID++
	tp.ID = s.nextAssignmentID
	tp.IsActive = true
	tp.JoinedAt = time.Now()
	stored := *tp
	s.assignments[tp.ID] = &stored
	return nil
}

func (s assignmentStore) FindActiveByMatchAndUser(ctx context.Context, exec repositories.SQLExecutor, matchID, userID int) (*models.TeamParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.IsActive && a.MatchID == matchID && a.UserID == userID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repositories.ErrAssignmentNotFound
}

func (s assignmentStore) ListActiveByTeam(ctx context.Context, exec repositories.SQLExecutor, teamID int) ([]models.TeamParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TeamParticipant
	for id := 1; id <= s.nextAssignmentID; id++ {
		a, ok := s.assignments[id]
		if ok && a.IsActive && a.TeamID == teamID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s assignmentStore) Deactivate(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok || !a.IsActive {
		return repositories.ErrAssignmentNotFound
	}
	a.IsActive = false
	return nil
}

// userStore adapts memStore to UserRepository.
type userStore struct{ *memStore }

func (s userStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.ID = len(s.users) + 1
	user.CreatedAt = time.Now()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s userStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s userStore) Exists(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}
