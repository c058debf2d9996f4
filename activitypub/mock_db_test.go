package activitypub

import (
	"database/sql"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
)

// MockDatabase is an in-memory mock implementation of the Database interface for testing.
// It stores data in maps and provides full CRUD operations without requiring a real database.
type MockDatabase struct {
	mu sync.RWMutex

	Users          map[uuid.UUID]*domain.User
	UsersByUri     map[string]*domain.User
	Keypairs       map[uuid.UUID]*domain.Keypair
	Followings     map[string]*domain.Following
	FollowRequests map[string]*domain.FollowRequest
	Blockings      map[string]bool
	Notes          map[uuid.UUID]*domain.Note
	NotesByURI     map[string]*domain.Note
	Likes          map[string]*domain.Like
	Bites          map[uuid.UUID]*domain.Bite
	BitesByURI     map[string]*domain.Bite
	Notifications  []*domain.Notification
	Instances      map[string]time.Time
	Activities     map[string]*domain.Activity
	DeliveryQueue  []*domain.DeliveryJob

	// Error injection for testing error handling
	ForceError error
}

// NewMockDatabase creates a new mock database with initialized maps
func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		Users:          make(map[uuid.UUID]*domain.User),
		UsersByUri:     make(map[string]*domain.User),
		Keypairs:       make(map[uuid.UUID]*domain.Keypair),
		Followings:     make(map[string]*domain.Following),
		FollowRequests: make(map[string]*domain.FollowRequest),
		Blockings:      make(map[string]bool),
		Notes:          make(map[uuid.UUID]*domain.Note),
		NotesByURI:     make(map[string]*domain.Note),
		Likes:          make(map[string]*domain.Like),
		Bites:          make(map[uuid.UUID]*domain.Bite),
		BitesByURI:     make(map[string]*domain.Bite),
		Instances:      make(map[string]time.Time),
		Activities:     make(map[string]*domain.Activity),
	}
}

func pairKey(a, b uuid.UUID) string {
	return a.String() + "|" + b.String()
}

// AddUser adds a user to the mock database
func (m *MockDatabase) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[user.Id] = user
	if user.Uri != "" {
		m.UsersByUri[user.Uri] = user
	}
}

// User operations

func (m *MockDatabase) ReadUserById(id uuid.UUID) (error, *domain.User) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if user, ok := m.Users[id]; ok {
		return nil, user
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadUserByUri(uri string) (error, *domain.User) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if user, ok := m.UsersByUri[uri]; ok {
		return nil, user
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadUserByProfileUrl(url string) (error, *domain.User) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, user := range m.Users {
		if user.ProfileUrl != "" && user.ProfileUrl == url {
			return nil, user
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadUserByAcct(username, host string) (error, *domain.User) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, user := range m.Users {
		if user.Username == username && user.Host == host {
			return nil, user
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) CreateUser(user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if user.Uri != "" {
		if _, exists := m.UsersByUri[user.Uri]; exists {
			return &mockConstraintError{}
		}
	}
	m.Users[user.Id] = user
	if user.Uri != "" {
		m.UsersByUri[user.Uri] = user
	}
	return nil
}

func (m *MockDatabase) UpdateUser(user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Users[user.Id] = user
	if user.Uri != "" {
		m.UsersByUri[user.Uri] = user
	}
	return nil
}

func (m *MockDatabase) DeleteUser(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if user, ok := m.Users[id]; ok {
		delete(m.UsersByUri, user.Uri)
		delete(m.Users, id)
	}
	return nil
}

func (m *MockDatabase) TouchUserFetchedAt(id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if user, ok := m.Users[id]; ok {
		user.LastFetchedAt = at
	}
	return nil
}

func (m *MockDatabase) IncrementFollowersCount(id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if user, ok := m.Users[id]; ok {
		user.FollowersCount += delta
	}
	return nil
}

func (m *MockDatabase) IncrementFollowingCount(id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if user, ok := m.Users[id]; ok {
		user.FollowingCount += delta
	}
	return nil
}

// Keypair operations

func (m *MockDatabase) ReadKeypairByUserId(userId uuid.UUID) (error, *domain.Keypair) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if kp, ok := m.Keypairs[userId]; ok {
		return nil, kp
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) CreateKeypair(kp *domain.Keypair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Keypairs[kp.UserId] = kp
	return nil
}

// Following operations

func (m *MockDatabase) CreateFollowing(f *domain.Following) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	key := pairKey(f.FollowerId, f.FolloweeId)
	if _, exists := m.Followings[key]; exists {
		return false, nil
	}
	m.Followings[key] = f
	return true, nil
}

func (m *MockDatabase) ReadFollowing(followerId, followeeId uuid.UUID) (error, *domain.Following) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if f, ok := m.Followings[pairKey(followerId, followeeId)]; ok {
		return nil, f
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadFollowersByUserId(followeeId uuid.UUID) (error, *[]domain.Following) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var out []domain.Following
	for _, f := range m.Followings {
		if f.FolloweeId == followeeId {
			out = append(out, *f)
		}
	}
	return nil, &out
}

func (m *MockDatabase) DeleteFollowing(followerId, followeeId uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return 0, m.ForceError
	}
	key := pairKey(followerId, followeeId)
	if _, ok := m.Followings[key]; ok {
		delete(m.Followings, key)
		return 1, nil
	}
	return 0, nil
}

func (m *MockDatabase) DeleteFollowingsByUserId(userId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	for key, f := range m.Followings {
		if f.FollowerId == userId || f.FolloweeId == userId {
			delete(m.Followings, key)
		}
	}
	return nil
}

// Follow request operations

func (m *MockDatabase) CreateFollowRequest(fr *domain.FollowRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	key := pairKey(fr.FollowerId, fr.FolloweeId)
	if _, exists := m.FollowRequests[key]; exists {
		return false, nil
	}
	m.FollowRequests[key] = fr
	return true, nil
}

func (m *MockDatabase) ReadFollowRequest(followerId, followeeId uuid.UUID) (error, *domain.FollowRequest) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if fr, ok := m.FollowRequests[pairKey(followerId, followeeId)]; ok {
		return nil, fr
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) DeleteFollowRequest(followerId, followeeId uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return 0, m.ForceError
	}
	key := pairKey(followerId, followeeId)
	if _, ok := m.FollowRequests[key]; ok {
		delete(m.FollowRequests, key)
		return 1, nil
	}
	return 0, nil
}

// Blocking operations

func (m *MockDatabase) IsBlocking(blockerId, blockeeId uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	return m.Blockings[pairKey(blockerId, blockeeId)], nil
}

// SetBlocking records a block edge for tests
func (m *MockDatabase) SetBlocking(blockerId, blockeeId uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blockings[pairKey(blockerId, blockeeId)] = true
}

// Note operations

func (m *MockDatabase) ReadNoteById(id uuid.UUID) (error, *domain.Note) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if note, ok := m.Notes[id]; ok {
		return nil, note
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadNoteByURI(uri string) (error, *domain.Note) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if note, ok := m.NotesByURI[uri]; ok {
		return nil, note
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) CreateNote(note *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if note.URI != "" {
		if _, exists := m.NotesByURI[note.URI]; exists {
			return &mockConstraintError{}
		}
	}
	m.Notes[note.Id] = note
	if note.URI != "" {
		m.NotesByURI[note.URI] = note
	}
	return nil
}

func (m *MockDatabase) UpdateNoteContent(uri, content string, ownerId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if note, ok := m.NotesByURI[uri]; ok && note.UserId == ownerId {
		note.Content = content
	}
	return nil
}

func (m *MockDatabase) DeleteNoteByURI(uri string, ownerId uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return 0, m.ForceError
	}
	if note, ok := m.NotesByURI[uri]; ok && note.UserId == ownerId {
		delete(m.NotesByURI, uri)
		delete(m.Notes, note.Id)
		return 1, nil
	}
	return 0, nil
}

func (m *MockDatabase) DeleteRenote(userId, renoteId uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return 0, m.ForceError
	}
	var removed int64
	for id, note := range m.Notes {
		if note.UserId == userId && note.RenoteId != nil && *note.RenoteId == renoteId {
			delete(m.Notes, id)
			delete(m.NotesByURI, note.URI)
			removed++
		}
	}
	return removed, nil
}

func (m *MockDatabase) IncrementLikeCount(noteId uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if note, ok := m.Notes[noteId]; ok {
		note.LikeCount += delta
	}
	return nil
}

func (m *MockDatabase) IncrementRenoteCount(noteId uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if note, ok := m.Notes[noteId]; ok {
		note.RenoteCount += delta
	}
	return nil
}

func (m *MockDatabase) IncrementReplyCountByURI(parentURI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if note, ok := m.NotesByURI[parentURI]; ok {
		note.ReplyCount++
	}
	return nil
}

// Like operations

func (m *MockDatabase) CreateLike(like *domain.Like) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	key := pairKey(like.UserId, like.NoteId)
	if _, exists := m.Likes[key]; exists {
		return false, nil
	}
	m.Likes[key] = like
	return true, nil
}

func (m *MockDatabase) DeleteLike(userId, noteId uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return 0, m.ForceError
	}
	key := pairKey(userId, noteId)
	if _, ok := m.Likes[key]; ok {
		delete(m.Likes, key)
		return 1, nil
	}
	return 0, nil
}

// Bite operations

func (m *MockDatabase) CreateBite(bite *domain.Bite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if err := bite.Validate(); err != nil {
		return err
	}
	if bite.URI != "" {
		if _, exists := m.BitesByURI[bite.URI]; exists {
			return &mockConstraintError{}
		}
	}
	m.Bites[bite.Id] = bite
	if bite.URI != "" {
		m.BitesByURI[bite.URI] = bite
	}
	return nil
}

func (m *MockDatabase) ReadBiteById(id uuid.UUID) (error, *domain.Bite) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if bite, ok := m.Bites[id]; ok {
		return nil, bite
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadBiteByURI(uri string) (error, *domain.Bite) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if bite, ok := m.BitesByURI[uri]; ok {
		return nil, bite
	}
	return sql.ErrNoRows, nil
}

// Notification operations

func (m *MockDatabase) CreateNotification(n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Notifications = append(m.Notifications, n)
	return nil
}

func (m *MockDatabase) DeleteNotification(accountId, actorId uuid.UUID, ntype domain.NotificationType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	kept := m.Notifications[:0]
	for _, n := range m.Notifications {
		if n.AccountId == accountId && n.ActorId == actorId && n.NotificationType == ntype {
			continue
		}
		kept = append(kept, n)
	}
	m.Notifications = kept
	return nil
}

// Instance operations

func (m *MockDatabase) UpsertInstance(host string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Instances[host] = seenAt
	return nil
}

// Activity log operations

func (m *MockDatabase) CreateActivity(activity *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if _, exists := m.Activities[activity.ActivityURI]; exists {
		return &mockConstraintError{}
	}
	m.Activities[activity.ActivityURI] = activity
	return nil
}

func (m *MockDatabase) UpdateActivity(activity *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Activities[activity.ActivityURI] = activity
	return nil
}

func (m *MockDatabase) ReadActivityByURI(uri string) (error, *domain.Activity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	if a, ok := m.Activities[uri]; ok {
		return nil, a
	}
	return sql.ErrNoRows, nil
}

// Delivery queue operations

func (m *MockDatabase) EnqueueDeliveryJob(job *domain.DeliveryJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.DeliveryQueue = append(m.DeliveryQueue, job)
	return nil
}

func (m *MockDatabase) ReadPendingDeliveryJobs(limit int) (error, *[]domain.DeliveryJob) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var out []domain.DeliveryJob
	for i, job := range m.DeliveryQueue {
		if i >= limit {
			break
		}
		out = append(out, *job)
	}
	return nil, &out
}

// mockConstraintError mimics the sqlite duplicate-row error text the
// production paths match on.
type mockConstraintError struct{}

func (e *mockConstraintError) Error() string {
	return "constraint failed: UNIQUE constraint failed"
}

// MockHTTPClient serves canned responses keyed by URL. Requests to unknown
// URLs get a 404. Every request is recorded for call-count assertions.
type MockHTTPClient struct {
	mu        sync.Mutex
	Responses map[string]*MockResponse
	Requests  []string
}

// MockResponse is one canned answer
type MockResponse struct {
	StatusCode  int
	Body        string
	ContentType string
	FinalURL    string // simulates a redirect when set
}

// NewMockHTTPClient creates an empty mock client
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{Responses: make(map[string]*MockResponse)}
}

// Do implements HTTPClient
func (c *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	// Match on the URL without its query string so webfinger endpoints are
	// easy to register, but record the full URL.
	fullURL := req.URL.String()
	c.Requests = append(c.Requests, fullURL)
	mock, ok := c.Responses[fullURL]
	if !ok {
		bare := *req.URL
		bare.RawQuery = ""
		mock, ok = c.Responses[bare.String()]
	}
	c.mu.Unlock()

	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	finalReq := req
	if mock.FinalURL != "" && mock.FinalURL != fullURL {
		redirected := *req
		u := *req.URL
		finalReq = &redirected
		if parsed, err := u.Parse(mock.FinalURL); err == nil {
			finalReq.URL = parsed
		}
	}

	ct := mock.ContentType
	if ct == "" {
		ct = ContentTypeActivityJSON
	}
	header := make(http.Header)
	header.Set("Content-Type", ct)
	return &http.Response{
		StatusCode: mock.StatusCode,
		Body:       io.NopCloser(strings.NewReader(mock.Body)),
		Header:     header,
		Request:    finalReq,
	}, nil
}

// RequestCount returns how many requests were made
func (c *MockHTTPClient) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}
