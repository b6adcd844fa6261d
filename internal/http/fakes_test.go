package httpx

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/models"
)

// fakeStore is an in-memory Store with the same ordering and cascade rules
// as the Postgres one.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	clock    time.Time
	users    map[int64]string
	posts    map[int64]*models.Post
	media    map[int64][]models.Media
	comments []models.Comment
	likes    map[[2]int64]bool
	dislikes map[[2]int64]bool
	reports  []models.Report
	pingErr  error

	// delay stalls CountPosts to simulate a slow query.
	delay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:    make(map[int64]string),
		posts:    make(map[int64]*models.Post),
		media:    make(map[int64][]models.Media),
		likes:    make(map[[2]int64]bool),
		dislikes: make(map[[2]int64]bool),
	}
}

func (f *fakeStore) tick() (int64, time.Time) {
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	return f.nextID, f.clock
}

// view returns a copy of p with its counters filled in. Callers hold mu.
func (f *fakeStore) view(p *models.Post) models.Post {
	out := *p
	out.Author = f.users[p.AuthorID]
	out.Likes, out.Dislikes, out.Comments = 0, 0, 0
	for k := range f.likes {
		if k[0] == p.ID {
			out.Likes++
		}
	}
	for k := range f.dislikes {
		if k[0] == p.ID {
			out.Dislikes++
		}
	}
	for _, c := range f.comments {
		if c.PostID == p.ID {
			out.Comments++
		}
	}
	return out
}

func (f *fakeStore) CountPosts(_ context.Context, authorID int64) (int, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.posts {
		if authorID == 0 || p.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListPosts(_ context.Context, authorID int64, limit, offset int) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Post
	for _, p := range f.posts {
		if authorID != 0 && p.AuthorID != authorID {
			continue
		}
		v := f.view(p)
		if ms := f.media[p.ID]; len(ms) > 0 {
			first := ms[0]
			v.FirstMedia = &first
		}
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeStore) GetPost(_ context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	v := f.view(p)
	v.Media = append([]models.Media(nil), f.media[id]...)
	return &v, nil
}

func (f *fakeStore) CreatePost(_ context.Context, p *models.Post, media []models.Media) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID, p.CreatedAt = f.tick()
	stored := *p
	f.posts[p.ID] = &stored
	for _, m := range media {
		m.ID, m.CreatedAt = f.tick()
		m.PostID = p.ID
		f.media[p.ID] = append(f.media[p.ID], m)
	}
	return p.ID, nil
}

func (f *fakeStore) UpdatePost(_ context.Context, id int64, title, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return db.ErrNotFound
	}
	p.Title, p.Content = title, content
	return nil
}

func (f *fakeStore) DeletePost(_ context.Context, id int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return nil, db.ErrNotFound
	}
	var files []string
	for _, m := range f.media[id] {
		if m.File != "" {
			files = append(files, m.File)
		}
	}
	delete(f.posts, id)
	delete(f.media, id)
	kept := f.comments[:0]
	for _, c := range f.comments {
		if c.PostID != id {
			kept = append(kept, c)
		}
	}
	f.comments = kept
	for k := range f.likes {
		if k[0] == id {
			delete(f.likes, k)
		}
	}
	for k := range f.dislikes {
		if k[0] == id {
			delete(f.dislikes, k)
		}
	}
	reps := f.reports[:0]
	for _, r := range f.reports {
		if r.PostID != id {
			reps = append(reps, r)
		}
	}
	f.reports = reps
	return files, nil
}

func (f *fakeStore) AddComment(_ context.Context, c *models.Comment) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[c.PostID]; !ok {
		return 0, db.ErrNotFound
	}
	c.ID, c.CreatedAt = f.tick()
	c.Author = f.users[c.UserID]
	f.comments = append(f.comments, *c)
	return c.ID, nil
}

func (f *fakeStore) ListComments(_ context.Context, postID int64) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Comment
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ToggleReaction(_ context.Context, postID, userID int64, kind models.Reaction) (models.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[postID]; !ok {
		return models.ReactionNone, db.ErrNotFound
	}
	same, other := f.likes, f.dislikes
	switch kind {
	case models.ReactionLike:
	case models.ReactionDislike:
		same, other = f.dislikes, f.likes
	default:
		return models.ReactionNone, fmt.Errorf("unknown reaction %d", kind)
	}
	k := [2]int64{postID, userID}
	delete(other, k)
	if same[k] {
		delete(same, k)
		return models.ReactionNone, nil
	}
	same[k] = true
	return kind, nil
}

func (f *fakeStore) ReactionOf(_ context.Context, postID, userID int64) (models.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{postID, userID}
	switch {
	case f.likes[k]:
		return models.ReactionLike, nil
	case f.dislikes[k]:
		return models.ReactionDislike, nil
	}
	return models.ReactionNone, nil
}

func (f *fakeStore) CreateReport(_ context.Context, r *models.Report) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[r.PostID]
	if !ok {
		return 0, db.ErrNotFound
	}
	r.ID, r.CreatedAt = f.tick()
	r.PostTitle = p.Title
	f.reports = append(f.reports, *r)
	return r.ID, nil
}

func (f *fakeStore) ListReportsByUser(_ context.Context, userID int64) ([]models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Report
	for i := len(f.reports) - 1; i >= 0; i-- {
		if f.reports[i].UserID == userID {
			out = append(out, f.reports[i])
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

// fakeIdentity keeps accounts and sessions in memory. Passwords are stored
// as given.
type fakeIdentity struct {
	mu        sync.Mutex
	store     *fakeStore
	users     map[int64]*models.User
	passwords map[int64]string
	sessions  map[string]int64
	nextSID   int
	throttled bool
}

func newFakeIdentity(store *fakeStore) *fakeIdentity {
	return &fakeIdentity{
		store:     store,
		users:     make(map[int64]*models.User),
		passwords: make(map[int64]string),
		sessions:  make(map[string]int64),
	}
}

func (f *fakeIdentity) byName(name string) *models.User {
	for _, u := range f.users {
		if u.Username == name {
			return u
		}
	}
	return nil
}

func (f *fakeIdentity) Register(_ context.Context, username, email, password string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byName(username) != nil {
		return 0, auth.ErrUsernameTaken
	}
	f.store.mu.Lock()
	id, joined := f.store.tick()
	f.store.users[id] = username
	f.store.mu.Unlock()
	f.users[id] = &models.User{ID: id, Username: username, Email: email, DateJoined: joined}
	f.passwords[id] = password
	return id, nil
}

func (f *fakeIdentity) Login(_ context.Context, username, password string) (string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.throttled {
		return "", 0, auth.ErrThrottled
	}
	u := f.byName(username)
	if u == nil || f.passwords[u.ID] != password {
		return "", 0, auth.ErrInvalidLogin
	}
	f.nextSID++
	sid := fmt.Sprintf("sid-%d", f.nextSID)
	f.sessions[sid] = u.ID
	return sid, u.ID, nil
}

func (f *fakeIdentity) Logout(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sid)
	return nil
}

func (f *fakeIdentity) UserFromSession(_ context.Context, sid string) (*models.User, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.sessions[sid]
	if !ok {
		return nil, time.Time{}, auth.ErrNoSession
	}
	u := *f.users[uid]
	return &u, time.Now().Add(time.Hour), nil
}

func (f *fakeIdentity) User(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, auth.ErrNoUser
	}
	cp := *u
	return &cp, nil
}

func (f *fakeIdentity) UpdateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.users[u.ID]
	if !ok {
		return auth.ErrNoUser
	}
	if other := f.byName(u.Username); other != nil && other.ID != u.ID {
		return auth.ErrUsernameTaken
	}
	cur.Username, cur.Email, cur.FirstName, cur.LastName = u.Username, u.Email, u.FirstName, u.LastName
	return nil
}

func (f *fakeIdentity) ChangePassword(_ context.Context, uid int64, keepSID, old, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.passwords[uid] != old {
		return auth.ErrWrongPassword
	}
	f.passwords[uid] = next
	for sid, owner := range f.sessions {
		if owner == uid && sid != keepSID {
			delete(f.sessions, sid)
		}
	}
	return nil
}

func (f *fakeIdentity) Lifetime() time.Duration { return time.Hour }
