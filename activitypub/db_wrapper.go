package activitypub

import (
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/db"
	"github.com/loxodon-net/loxodon/domain"
)

// DBWrapper wraps the real database to implement the Database interface.
// This adapter allows the production code to use the existing db.GetDB() singleton
// while also supporting dependency injection for tests.
type DBWrapper struct {
	db *db.DB
}

// NewDBWrapper creates a new database wrapper around the singleton database
func NewDBWrapper() *DBWrapper {
	return &DBWrapper{db: db.GetDB()}
}

// User operations

func (w *DBWrapper) ReadUserById(id uuid.UUID) (error, *domain.User) {
	return w.db.ReadUserById(id)
}

func (w *DBWrapper) ReadUserByUri(uri string) (error, *domain.User) {
	return w.db.ReadUserByUri(uri)
}

func (w *DBWrapper) ReadUserByProfileUrl(url string) (error, *domain.User) {
	return w.db.ReadUserByProfileUrl(url)
}

func (w *DBWrapper) ReadUserByAcct(username, host string) (error, *domain.User) {
	return w.db.ReadUserByAcct(username, host)
}

func (w *DBWrapper) CreateUser(user *domain.User) error {
	return w.db.CreateUser(user)
}

func (w *DBWrapper) UpdateUser(user *domain.User) error {
	return w.db.UpdateUser(user)
}

func (w *DBWrapper) DeleteUser(id uuid.UUID) error {
	return w.db.DeleteUser(id)
}

func (w *DBWrapper) TouchUserFetchedAt(id uuid.UUID, at time.Time) error {
	return w.db.TouchUserFetchedAt(id, at)
}

func (w *DBWrapper) IncrementFollowersCount(id uuid.UUID, delta int) error {
	return w.db.IncrementFollowersCount(id, delta)
}

func (w *DBWrapper) IncrementFollowingCount(id uuid.UUID, delta int) error {
	return w.db.IncrementFollowingCount(id, delta)
}

// Keypair operations

func (w *DBWrapper) ReadKeypairByUserId(userId uuid.UUID) (error, *domain.Keypair) {
	return w.db.ReadKeypairByUserId(userId)
}

func (w *DBWrapper) CreateKeypair(kp *domain.Keypair) error {
	return w.db.CreateKeypair(kp)
}

// Following operations

func (w *DBWrapper) CreateFollowing(f *domain.Following) (bool, error) {
	return w.db.CreateFollowing(f)
}

func (w *DBWrapper) ReadFollowing(followerId, followeeId uuid.UUID) (error, *domain.Following) {
	return w.db.ReadFollowing(followerId, followeeId)
}

func (w *DBWrapper) ReadFollowersByUserId(followeeId uuid.UUID) (error, *[]domain.Following) {
	return w.db.ReadFollowersByUserId(followeeId)
}

func (w *DBWrapper) DeleteFollowing(followerId, followeeId uuid.UUID) (int64, error) {
	return w.db.DeleteFollowing(followerId, followeeId)
}

func (w *DBWrapper) DeleteFollowingsByUserId(userId uuid.UUID) error {
	return w.db.DeleteFollowingsByUserId(userId)
}

// Follow request operations

func (w *DBWrapper) CreateFollowRequest(fr *domain.FollowRequest) (bool, error) {
	return w.db.CreateFollowRequest(fr)
}

func (w *DBWrapper) ReadFollowRequest(followerId, followeeId uuid.UUID) (error, *domain.FollowRequest) {
	return w.db.ReadFollowRequest(followerId, followeeId)
}

func (w *DBWrapper) DeleteFollowRequest(followerId, followeeId uuid.UUID) (int64, error) {
	return w.db.DeleteFollowRequest(followerId, followeeId)
}

// Blocking operations

func (w *DBWrapper) IsBlocking(blockerId, blockeeId uuid.UUID) (bool, error) {
	return w.db.IsBlocking(blockerId, blockeeId)
}

// Note operations

func (w *DBWrapper) ReadNoteById(id uuid.UUID) (error, *domain.Note) {
	return w.db.ReadNoteById(id)
}

func (w *DBWrapper) ReadNoteByURI(uri string) (error, *domain.Note) {
	return w.db.ReadNoteByURI(uri)
}

func (w *DBWrapper) CreateNote(note *domain.Note) error {
	return w.db.CreateNote(note)
}

func (w *DBWrapper) UpdateNoteContent(uri, content string, ownerId uuid.UUID) error {
	return w.db.UpdateNoteContent(uri, content, ownerId)
}

func (w *DBWrapper) DeleteNoteByURI(uri string, ownerId uuid.UUID) (int64, error) {
	return w.db.DeleteNoteByURI(uri, ownerId)
}

func (w *DBWrapper) DeleteRenote(userId, renoteId uuid.UUID) (int64, error) {
	return w.db.DeleteRenote(userId, renoteId)
}

func (w *DBWrapper) IncrementLikeCount(noteId uuid.UUID, delta int) error {
	return w.db.IncrementLikeCount(noteId, delta)
}

func (w *DBWrapper) IncrementRenoteCount(noteId uuid.UUID, delta int) error {
	return w.db.IncrementRenoteCount(noteId, delta)
}

func (w *DBWrapper) IncrementReplyCountByURI(parentURI string) error {
	return w.db.IncrementReplyCountByURI(parentURI)
}

// Like operations

func (w *DBWrapper) CreateLike(like *domain.Like) (bool, error) {
	return w.db.CreateLike(like)
}

func (w *DBWrapper) DeleteLike(userId, noteId uuid.UUID) (int64, error) {
	return w.db.DeleteLike(userId, noteId)
}

// Bite operations

func (w *DBWrapper) CreateBite(bite *domain.Bite) error {
	return w.db.CreateBite(bite)
}

func (w *DBWrapper) ReadBiteById(id uuid.UUID) (error, *domain.Bite) {
	return w.db.ReadBiteById(id)
}

func (w *DBWrapper) ReadBiteByURI(uri string) (error, *domain.Bite) {
	return w.db.ReadBiteByURI(uri)
}

// Notification operations

func (w *DBWrapper) CreateNotification(n *domain.Notification) error {
	return w.db.CreateNotification(n)
}

func (w *DBWrapper) DeleteNotification(accountId, actorId uuid.UUID, ntype domain.NotificationType) error {
	return w.db.DeleteNotification(accountId, actorId, ntype)
}

// Instance operations

func (w *DBWrapper) UpsertInstance(host string, seenAt time.Time) error {
	return w.db.UpsertInstance(host, seenAt)
}

// Activity log operations

func (w *DBWrapper) CreateActivity(activity *domain.Activity) error {
	return w.db.CreateActivity(activity)
}

func (w *DBWrapper) UpdateActivity(activity *domain.Activity) error {
	return w.db.UpdateActivity(activity)
}

func (w *DBWrapper) ReadActivityByURI(uri string) (error, *domain.Activity) {
	return w.db.ReadActivityByURI(uri)
}

// Delivery queue operations

func (w *DBWrapper) EnqueueDeliveryJob(job *domain.DeliveryJob) error {
	return w.db.EnqueueDeliveryJob(job)
}

func (w *DBWrapper) ReadPendingDeliveryJobs(limit int) (error, *[]domain.DeliveryJob) {
	return w.db.ReadPendingDeliveryJobs(limit)
}
